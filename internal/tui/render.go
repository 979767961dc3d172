package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"pdfchat/internal/chat"
	"pdfchat/internal/domain"
)

// markdown renders assistant replies, falling back to plain text.
type markdown struct {
	renderer *glamour.TermRenderer
}

func newMarkdown(width int) *markdown {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &markdown{}
	}
	return &markdown{renderer: r}
}

func (md *markdown) render(content string) string {
	if md == nil || md.renderer == nil {
		return content
	}
	out, err := md.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func renderTranscript(messages []domain.Message, md *markdown) string {
	if len(messages) == 0 {
		return mutedStyle.Render("No messages yet. Upload a PDF with /upload, then ask a question.")
	}
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		stamp := msg.Timestamp.Local().Format("2006-01-02 15:04")
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You") + " " + mutedStyle.Render(stamp) + "\n")
			b.WriteString(msg.Content)
		default:
			b.WriteString(assistantStyle.Render("Assistant") + " " + mutedStyle.Render(stamp) + "\n")
			b.WriteString(md.render(msg.Content))
		}
	}
	return b.String()
}

func renderSidebar(snap chat.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Conversations") + "\n")
	for i, c := range snap.Conversations {
		line := fmt.Sprintf("%d. %s", i+1, truncate(c.Title, sidebarWidth-8))
		if c.Documents > 0 {
			line += fmt.Sprintf(" (%d)", c.Documents)
		}
		if c.Current {
			line = currentStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + titleStyle.Render("Documents") + "\n")
	if len(snap.Documents) == 0 {
		b.WriteString(mutedStyle.Render("none"))
	}
	for _, d := range snap.Documents {
		name := truncate(d.Name, sidebarWidth-6)
		if d.SourceMissing {
			name += " (missing)"
		}
		b.WriteString("- " + name + "\n")
	}
	return b.String()
}

func documentList(docs []domain.DocumentRecord) string {
	if len(docs) == 0 {
		return "No documents in this conversation."
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		entry := fmt.Sprintf("%s (%s, %s)", d.Name, humanSize(d.ByteSize), d.UploadedAt.Local().Format("2006-01-02 15:04"))
		if d.SourceMissing {
			entry += " [source missing]"
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, "; ")
}

func humanSize(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1f MB", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
