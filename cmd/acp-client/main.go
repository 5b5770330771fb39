// Command acp-client is acpkit's reference Client: a terminal front end for
// driving an ACP agent subprocess (e.g. cmd/acp-agent), replacing bytesmith's
// Wails desktop shell with stdout/stdin. It connects to an agent, starts a
// session, sends one prompt, streams session/update notifications to
// stdout, answers permission requests (auto-approving when -auto-approve is
// set, otherwise prompting on stdin), and prints the final stop reason.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"acpkit/acp"
	"acpkit/internal/agentmgr"
	"acpkit/internal/fsprovider"
	"acpkit/internal/logging"
	"acpkit/internal/termprovider"
)

func main() {
	agentName := flag.String("agent", "acp-agent", "name of the configured agent to connect to")
	cwd := flag.String("cwd", ".", "working directory to hand the agent")
	prompt := flag.String("prompt", "", "prompt text to send (required)")
	autoApprove := flag.Bool("auto-approve", false, "automatically grant every permission request")
	flag.Parse()

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "acp-client: -prompt is required")
		os.Exit(2)
	}

	if err := run(*agentName, *cwd, *prompt, *autoApprove); err != nil {
		fmt.Fprintf(os.Stderr, "acp-client: %v\n", err)
		os.Exit(1)
	}
}

func run(agentName, cwd, prompt string, autoApprove bool) error {
	configPath := agentmgr.ConfigPath()
	cfg, err := agentmgr.LoadConfig(configPath)
	if err != nil {
		logging.Default.Warn("acp-client: failed to load config, using defaults: %v", err)
		cfg = agentmgr.DefaultConfig()
	}

	fs := fsprovider.NewProvider()
	term := termprovider.NewProvider()
	stdin := bufio.NewReader(os.Stdin)

	fs.OnFileChanged(func(c fsprovider.FileChange) {
		fmt.Printf("[file] %s (session %s)\n", c.Path, c.SessionID)
	})
	term.OnOutput(func(terminalID string, data string) {
		fmt.Printf("[terminal %s] %s", terminalID, data)
	})

	handlers := acp.ClientHandlers{
		OnSessionUpdate:       func(ctx context.Context, p acp.SessionUpdateParams) { printUpdate(p) },
		OnRequestPermission:   func(ctx context.Context, p acp.RequestPermissionParams) (acp.RequestPermissionResult, error) { return decidePermission(p, autoApprove, stdin) },
		OnReadTextFile:        fs.HandleReadTextFile,
		OnWriteTextFile:       fs.HandleWriteTextFile,
		OnCreateTerminal:      term.HandleCreate,
		OnTerminalOutput:      term.HandleOutput,
		OnWaitForTerminalExit: term.HandleWaitForExit,
		OnKillTerminal:        term.HandleKill,
		OnReleaseTerminal:     term.HandleRelease,
	}

	manager := agentmgr.NewManager(cfg, handlers)
	defer func() {
		term.CloseAll()
		manager.DisconnectAll()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := manager.Connect(ctx, agentName, cwd, acp.ClientCapabilities{
		FS:       acp.FSCapabilities{ReadTextFile: true, WriteTextFile: true},
		Terminal: true,
	})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", agentName, err)
	}

	sess, err := conn.Client.NewSession(ctx, acp.SessionNewParams{CWD: cwd})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	conn.AddSession(sess.SessionID)

	promptCtx, cancelPrompt := context.WithCancel(ctx)
	defer cancelPrompt()
	go func() {
		<-ctx.Done()
		cancelPrompt()
	}()

	result, err := conn.Client.Prompt(promptCtx, acp.SessionPromptParams{
		SessionID: sess.SessionID,
		Prompt:    []acp.ContentBlock{acp.NewTextBlock(prompt)},
	})
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}

	fmt.Printf("\n[done] stopReason=%s\n", result.StopReason)
	return nil
}

func printUpdate(p acp.SessionUpdateParams) {
	switch p.Update.Kind {
	case "agent_message_chunk":
		if p.Update.Content != nil {
			fmt.Print(p.Update.Content.Text)
		}
	case "agent_thought_chunk":
		if p.Update.Content != nil {
			fmt.Printf("\n[thought] %s\n", p.Update.Content.Text)
		}
	case "tool_call":
		if p.Update.ToolCall != nil {
			fmt.Printf("\n[tool_call] %s: %s (%s)\n", p.Update.ToolCall.ToolCallID, p.Update.ToolCall.Title, p.Update.ToolCall.Status)
		}
	case "tool_call_update":
		if p.Update.ToolCallUpdate != nil {
			u := p.Update.ToolCallUpdate
			status := ""
			if u.Status != nil {
				status = string(*u.Status)
			}
			fmt.Printf("\n[tool_call_update] %s: %s\n", u.ToolCallID, status)
		}
	case "plan":
		fmt.Printf("\n[plan] %d step(s)\n", len(p.Update.Entries))
	default:
		fmt.Printf("\n[update] %s\n", p.Update.Kind)
	}
}

// decidePermission auto-grants every permission request when autoApprove is
// set; otherwise it prints the options and blocks on a line from stdin.
func decidePermission(p acp.RequestPermissionParams, autoApprove bool, stdin *bufio.Reader) (acp.RequestPermissionResult, error) {
	if len(p.Options) == 0 {
		return acp.RequestPermissionResult{Outcome: acp.CancelledOutcome}, nil
	}

	if autoApprove {
		return acp.RequestPermissionResult{Outcome: acp.NewSelectedOutcome(p.Options[0].OptionID)}, nil
	}

	fmt.Printf("\n[permission] %s requests approval:\n", p.ToolCall.ToolCallID)
	for i, opt := range p.Options {
		fmt.Printf("  %d) %s (%s)\n", i+1, opt.Name, opt.OptionID)
	}
	fmt.Print("choice> ")

	line, err := stdin.ReadString('\n')
	if err != nil {
		return acp.RequestPermissionResult{Outcome: acp.CancelledOutcome}, nil
	}
	line = strings.TrimSpace(line)

	for _, opt := range p.Options {
		if opt.OptionID == line {
			return acp.RequestPermissionResult{Outcome: acp.NewSelectedOutcome(opt.OptionID)}, nil
		}
	}
	return acp.RequestPermissionResult{Outcome: acp.CancelledOutcome}, nil
}
