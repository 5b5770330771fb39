// Package termprovider implements the client-side handlers for the
// terminal/* methods: spawning a real pseudo-terminal on behalf of a
// connected agent, capturing its output, and exposing output/wait/kill/
// release operations.
package termprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"acpkit/acp"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

const defaultByteLimit = 1024 * 1024 // 1 MiB

// Terminal represents a single subprocess spawned on behalf of an agent,
// run under a real pseudo-terminal so interactive commands see a tty.
type Terminal struct {
	ID         string
	SessionID  string
	Command    string
	Args       []string
	CWD        string
	Output     bytes.Buffer
	Truncated  bool
	ByteLimit  int
	ExitStatus *acp.TerminalExitStatus

	cmd  *exec.Cmd
	ptmx *os.File
	done chan struct{}
	mu   sync.Mutex
}

// Provider manages terminal instances created by agents. It starts
// subprocesses under a pty, captures their output, and provides methods to
// query output, wait for exit, kill, and release.
type Provider struct {
	mu        sync.RWMutex
	terminals map[string]*Terminal
	onOutput  func(terminalID string, data string)
}

// NewProvider creates a new Provider.
func NewProvider() *Provider {
	return &Provider{terminals: make(map[string]*Terminal)}
}

// HandleCreate implements acp.ClientHandlers.OnCreateTerminal: it starts
// params.Command under a pseudo-terminal and begins capturing its output.
// Output is truncated from the beginning once it exceeds
// params.OutputByteLimit (default 1 MiB).
func (p *Provider) HandleCreate(ctx context.Context, params acp.TerminalCreateParams) (acp.TerminalCreateResult, error) {
	id := uuid.New().String()

	cmd := exec.Command(params.Command, params.Args...)
	if params.CWD != "" {
		cmd.Dir = params.CWD
	}
	for _, e := range params.Env {
		cmd.Env = append(cmd.Env, e.Name+"="+e.Value)
	}

	byteLimit := params.OutputByteLimit
	if byteLimit <= 0 {
		byteLimit = defaultByteLimit
	}

	t := &Terminal{
		ID:        id,
		SessionID: params.SessionID,
		Command:   params.Command,
		Args:      params.Args,
		CWD:       params.CWD,
		ByteLimit: byteLimit,
		cmd:       cmd,
		done:      make(chan struct{}),
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return acp.TerminalCreateResult{}, fmt.Errorf("termprovider: start %q under pty: %w", params.Command, err)
	}
	t.ptmx = ptmx

	p.mu.Lock()
	p.terminals[id] = t
	p.mu.Unlock()

	go p.readOutput(t, ptmx)
	go p.waitForProcess(t)

	return acp.TerminalCreateResult{TerminalID: id}, nil
}

func (p *Provider) readOutput(t *Terminal, r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]

			t.mu.Lock()
			t.Output.Write(chunk)
			if t.Output.Len() > t.ByteLimit {
				data := t.Output.Bytes()
				excess := len(data) - t.ByteLimit
				t.Output.Reset()
				t.Output.Write(data[excess:])
				t.Truncated = true
			}
			t.mu.Unlock()

			p.mu.RLock()
			handler := p.onOutput
			p.mu.RUnlock()
			if handler != nil {
				handler(t.ID, string(chunk))
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *Provider) waitForProcess(t *Terminal) {
	err := t.cmd.Wait()
	_ = t.ptmx.Close()

	t.mu.Lock()
	defer t.mu.Unlock()

	status := acp.TerminalExitStatus{}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			status.ExitCode = &code
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				sig := ws.Signal().String()
				status.Signal = &sig
			}
		} else {
			code := -1
			status.ExitCode = &code
		}
	} else {
		code := 0
		status.ExitCode = &code
	}

	t.ExitStatus = &status
	close(t.done)
}

func (p *Provider) get(id string) (*Terminal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.terminals[id]
	if !ok {
		return nil, fmt.Errorf("termprovider: terminal %q not found", id)
	}
	return t, nil
}

// HandleOutput implements acp.ClientHandlers.OnTerminalOutput.
func (p *Provider) HandleOutput(ctx context.Context, params acp.TerminalOutputParams) (acp.TerminalOutputResult, error) {
	t, err := p.get(params.TerminalID)
	if err != nil {
		return acp.TerminalOutputResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return acp.TerminalOutputResult{
		Output:     t.Output.String(),
		Truncated:  t.Truncated,
		ExitStatus: t.ExitStatus,
	}, nil
}

// HandleWaitForExit implements acp.ClientHandlers.OnWaitForTerminalExit. It
// blocks until the terminal's subprocess exits.
func (p *Provider) HandleWaitForExit(ctx context.Context, params acp.TerminalWaitForExitParams) (acp.TerminalWaitForExitResult, error) {
	t, err := p.get(params.TerminalID)
	if err != nil {
		return acp.TerminalWaitForExitResult{}, err
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		return acp.TerminalWaitForExitResult{}, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return acp.TerminalWaitForExitResult{ExitStatus: *t.ExitStatus}, nil
}

// HandleKill implements acp.ClientHandlers.OnKillTerminal: sends SIGTERM,
// escalating to SIGKILL if the process is still alive after 5 seconds.
func (p *Provider) HandleKill(ctx context.Context, params acp.TerminalKillParams) (acp.TerminalKillResult, error) {
	t, err := p.get(params.TerminalID)
	if err != nil {
		return acp.TerminalKillResult{}, err
	}

	t.mu.Lock()
	alreadyExited := t.ExitStatus != nil
	process := t.cmd.Process
	t.mu.Unlock()

	if alreadyExited || process == nil {
		return acp.TerminalKillResult{}, nil
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return acp.TerminalKillResult{}, nil // likely already exited
	}

	select {
	case <-t.done:
	case <-time.After(5 * time.Second):
		_ = process.Signal(syscall.SIGKILL)
		<-t.done
	}
	return acp.TerminalKillResult{}, nil
}

// HandleRelease implements acp.ClientHandlers.OnReleaseTerminal: kills the
// subprocess if still running and frees the terminal's resources.
func (p *Provider) HandleRelease(ctx context.Context, params acp.TerminalReleaseParams) (acp.TerminalReleaseResult, error) {
	t, err := p.get(params.TerminalID)
	if err != nil {
		return acp.TerminalReleaseResult{}, err
	}

	_, _ = p.HandleKill(ctx, acp.TerminalKillParams{TerminalID: t.ID})

	p.mu.Lock()
	delete(p.terminals, params.TerminalID)
	p.mu.Unlock()

	return acp.TerminalReleaseResult{}, nil
}

// OnOutput registers a callback invoked whenever new output is read from any
// terminal. Only one handler is supported; subsequent calls replace the
// previous one.
func (p *Provider) OnOutput(handler func(terminalID string, data string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onOutput = handler
}

// CloseAll kills and releases all active terminals.
func (p *Provider) CloseAll() {
	p.mu.RLock()
	ids := make([]string, 0, len(p.terminals))
	for id := range p.terminals {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	for _, id := range ids {
		_, _ = p.HandleRelease(context.Background(), acp.TerminalReleaseParams{TerminalID: id})
	}
}
