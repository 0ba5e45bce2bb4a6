// Package display provides terminal formatting for inboxctl output.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

var (
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	Warning  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
)

// StatusDot returns a colored dot for a connection state.
func StatusDot(connected bool) string {
	if connected {
		return Success.Render("●")
	}
	return ErrStyle.Render("○")
}

// StatusLabel returns a styled connection label.
func StatusLabel(connected bool) string {
	if connected {
		return Success.Render("connected")
	}
	return ErrStyle.Render("disconnected")
}

// SelectionLabel describes a selection the way the console's picker does.
func SelectionLabel(v inbox.View) string {
	switch {
	case v.IsAllSelected:
		return "All inboxes"
	case v.SelectedCount == 1:
		for _, in := range v.AvailableInboxes {
			if in.ID == v.SelectedInboxIDs[0] {
				return in.Name
			}
		}
		return v.SelectedInboxIDs[0]
	default:
		return fmt.Sprintf("%d inboxes", v.SelectedCount)
	}
}

// RenderView prints the session header followed by one line per inbox.
func RenderView(w io.Writer, v inbox.View) {
	if v.Error != nil {
		style := Warning
		if v.Error.Critical {
			style = ErrStyle
		}
		fmt.Fprintf(w, "%s %s\n", style.Render("!"), v.Error.Message)
		return
	}
	if v.Context == nil {
		fmt.Fprintln(w, Muted.Render("No session context"))
		return
	}

	ctx := v.Context
	fmt.Fprintf(w, "%s  %s\n", Bold.Render("Account "+ctx.AccountID), Muted.Render(string(ctx.UserType)))
	fmt.Fprintf(w, "%s %s  %s\n", StatusDot(v.IsConnected), SelectionLabel(v), StatusLabel(v.IsConnected))
	fmt.Fprintf(w, "%s\n\n", Dim.Render(fmt.Sprintf("%d unread · %d selected", v.TotalUnreadCount, v.SelectedCount)))

	if len(v.AvailableInboxes) == 0 {
		fmt.Fprintln(w, Muted.Render("No inboxes"))
		return
	}

	selected := make(map[string]bool, len(v.SelectedInboxIDs))
	for _, id := range v.SelectedInboxIDs {
		selected[id] = true
	}
	for _, in := range v.AvailableInboxes {
		fmt.Fprintln(w, InboxLine(in, selected[in.ID], in.ID == ctx.InboxID))
	}
}

// InboxLine formats one inbox row: selection mark, status dot, name, phone,
// unread count and an active marker.
func InboxLine(in model.InboxSummary, selected, active bool) string {
	mark := " "
	if selected {
		mark = "✓"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s %s %-24s", mark, StatusDot(in.IsConnected), Truncate(in.Name, 24)))
	if in.PhoneNumber != "" {
		b.WriteString("  " + Muted.Render(in.PhoneNumber))
	}
	if in.UnreadCount > 0 {
		b.WriteString("  " + Bold.Render(fmt.Sprintf("%d unread", in.UnreadCount)))
	}
	if active {
		b.WriteString("  " + Dim.Render("(active)"))
	}
	return b.String()
}

// RenderNotification prints one notification with a level marker.
func RenderNotification(w io.Writer, n model.Notification) {
	var marker string
	switch n.Level {
	case model.NotificationLevelSuccess:
		marker = Success.Render("✓")
	case model.NotificationLevelWarning:
		marker = Warning.Render("!")
	default:
		marker = ErrStyle.Render("✗")
	}
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(w, "%s %s %s\n", Dim.Render(at.Format("15:04:05")), marker, n.Message)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Truncate shortens a string to maxLen, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
