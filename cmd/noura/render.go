package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/alwatan/noura/internal/orchestrator"
)

var (
	bannerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E8B57"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E8B57"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4682B4"))
	indexStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#CC3333")).Bold(true)
	dividerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
)

// transcript prints conversation snapshots incrementally. It is safe for
// use from the orchestrator, playback and capture goroutines.
type transcript struct {
	mu             sync.Mutex
	out            io.Writer
	assistantName  string
	conversationID string
	shown          int
	loading        bool
	pending        string
}

func newTranscript(out io.Writer, assistantName string) *transcript {
	return &transcript{out: out, assistantName: assistantName}
}

// Render prints whatever changed since the previous snapshot
func (t *transcript) Render(s orchestrator.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.ConversationID != t.conversationID {
		if t.conversationID != "" {
			fmt.Fprintln(t.out, dividerStyle.Render(strings.Repeat("─", 40)))
		}
		t.conversationID = s.ConversationID
		t.shown = 0
	}

	for i := t.shown; i < len(s.Messages); i++ {
		fmt.Fprintln(t.out, t.formatMessage(i, s.Messages[i]))
	}
	t.shown = len(s.Messages)

	if s.Loading && !t.loading {
		fmt.Fprintln(t.out, statusStyle.Render(t.assistantName+" تكتب..."))
	}
	t.loading = s.Loading

	if s.PendingInput != t.pending {
		t.pending = s.PendingInput
		if s.PendingInput != "" {
			fmt.Fprintln(t.out, statusStyle.Render("🎤 "+s.PendingInput+"  (Enter للإرسال)"))
		}
	}
}

func (t *transcript) formatMessage(i int, m orchestrator.Message) string {
	index := indexStyle.Render(fmt.Sprintf("[%d]", i))
	if m.Role == orchestrator.RoleUser {
		return fmt.Sprintf("%s %s %s", index, userStyle.Bold(true).Render("أنت:"), userStyle.Render(m.Content))
	}
	return fmt.Sprintf("%s %s %s", index, assistantStyle.Bold(true).Render(t.assistantName+":"), assistantStyle.Render(m.Content))
}

// Status prints a one-line notice
func (t *transcript) Status(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, statusStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints a one-line error
func (t *transcript) Error(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, errorStyle.Render(err.Error()))
}
