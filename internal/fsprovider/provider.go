// Package fsprovider implements the client-side handlers for
// fs/read_text_file and fs/write_text_file: reading and writing files on
// disk on behalf of a connected agent, tracking every write for review, and
// notifying a caller-supplied callback when a file changes.
package fsprovider

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"acpkit/acp"
)

// FileChange records a single file modification made by an agent.
type FileChange struct {
	Path       string
	OldContent string
	NewContent string
	Timestamp  time.Time
	SessionID  string
}

// Provider handles fs/read_text_file and fs/write_text_file requests. It
// reads and writes files on disk, tracks all modifications, and emits
// events when files are changed.
type Provider struct {
	mu            sync.RWMutex
	changes       []FileChange
	onFileChanged func(FileChange)
}

// NewProvider creates a new Provider.
func NewProvider() *Provider {
	return &Provider{changes: make([]FileChange, 0)}
}

// OnFileChanged registers a callback invoked whenever a file is written.
// Only one handler is supported; subsequent calls replace the previous one.
func (p *Provider) OnFileChanged(handler func(FileChange)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFileChanged = handler
}

// GetChanges returns a copy of all recorded file changes.
func (p *Provider) GetChanges() []FileChange {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]FileChange, len(p.changes))
	copy(out, p.changes)
	return out
}

// HandleReadTextFile implements acp.ClientHandlers.OnReadTextFile. Line is
// 1-based; if absent or non-positive it defaults to 1. If Limit is absent or
// non-positive, all lines from Line onward are returned.
func (p *Provider) HandleReadTextFile(ctx context.Context, params acp.FSReadTextFileParams) (acp.FSReadTextFileResult, error) {
	f, err := os.Open(params.Path)
	if err != nil {
		return acp.FSReadTextFileResult{}, fmt.Errorf("fsprovider: open %s: %w", params.Path, err)
	}
	defer f.Close()

	var allLines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return acp.FSReadTextFileResult{}, fmt.Errorf("fsprovider: read %s: %w", params.Path, err)
	}

	totalLines := len(allLines)

	offset := 1
	if params.Line != nil && *params.Line > 0 {
		offset = *params.Line
	}
	if offset > totalLines {
		return acp.FSReadTextFileResult{Content: ""}, nil
	}

	startIdx := offset - 1
	endIdx := totalLines

	if params.Limit != nil && *params.Limit > 0 {
		candidate := startIdx + *params.Limit
		if candidate < endIdx {
			endIdx = candidate
		}
	}

	selected := allLines[startIdx:endIdx]
	content := strings.Join(selected, "\n")
	if endIdx == totalLines && totalLines > 0 {
		content += "\n"
	}

	return acp.FSReadTextFileResult{Content: content}, nil
}

// HandleWriteTextFile implements acp.ClientHandlers.OnWriteTextFile. It
// reads the existing content first to record the change, creates parent
// directories as needed, writes the file, and notifies OnFileChanged.
func (p *Provider) HandleWriteTextFile(ctx context.Context, params acp.FSWriteTextFileParams) (acp.FSWriteTextFileResult, error) {
	var oldContent string
	if data, err := os.ReadFile(params.Path); err == nil {
		oldContent = string(data)
	}

	dir := filepath.Dir(params.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return acp.FSWriteTextFileResult{}, fmt.Errorf("fsprovider: create directories for %s: %w", params.Path, err)
	}

	if err := os.WriteFile(params.Path, []byte(params.Content), 0o644); err != nil {
		return acp.FSWriteTextFileResult{}, fmt.Errorf("fsprovider: write %s: %w", params.Path, err)
	}

	change := FileChange{
		Path:       params.Path,
		OldContent: oldContent,
		NewContent: params.Content,
		Timestamp:  time.Now(),
		SessionID:  params.SessionID,
	}

	p.mu.Lock()
	p.changes = append(p.changes, change)
	handler := p.onFileChanged
	p.mu.Unlock()

	if handler != nil {
		handler(change)
	}

	return acp.FSWriteTextFileResult{}, nil
}
