package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfchat/internal/chat"
	"pdfchat/internal/domain"
)

// ChatPort is the TUI-facing subset of the conversation controller.
type ChatPort interface {
	NewConversation() (*domain.Conversation, error)
	SwitchTo(position int) error
	Next()
	Prev()
	Rename(title string) error
	Delete() error
	Upload(ctx context.Context, files []chat.File) []chat.UploadResult
	RemoveDocument(ctx context.Context, name string) ([]error, error)
	SendMessage(ctx context.Context, text string) (domain.Message, []error)
	Snapshot() chat.Snapshot
}

// actionDoneMsg carries the outcome of one action back to Update.
type actionDoneMsg struct {
	status string
	snap   chat.Snapshot
	quit   bool
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	port     ChatPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	markdown *markdown
	snap     chat.Snapshot
	status   string
	busy     bool
	ready    bool
	width    int
	height   int
}

// New creates a new TUI model instance. notice is shown in the status line
// on first render.
func New(port ChatPort, notice string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents, or /help"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	status := notice
	if status == "" {
		status = "Ready. /upload a PDF to begin."
	}
	return Model{
		port:     port,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		markdown: newMarkdown(80),
		snap:     port.Snapshot(),
		status:   status,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and action results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil
	case actionDoneMsg:
		m.busy = false
		m.snap = msg.snap
		m.status = msg.status
		m.refresh()
		if msg.quit {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m.dispatch(line)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dispatch parses a line and starts the matching action.
func (m Model) dispatch(line string) (tea.Model, tea.Cmd) {
	c, err := parseCommand(line)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	switch c.kind {
	case cmdHelp:
		m.status = "Commands shown in the transcript."
		m.viewport.SetContent(helpText)
		return m, nil
	case cmdDocs:
		m.status = documentList(m.snap.Documents)
		return m, nil
	case cmdQuit:
		return m, tea.Quit
	}
	m.busy = true
	m.status = busyLabel(c)
	return m, tea.Batch(m.spinner.Tick, runAction(m.port, c))
}

func busyLabel(c command) string {
	switch c.kind {
	case cmdMessage:
		return "Thinking..."
	case cmdUpload:
		return "Processing documents..."
	}
	return "Working..."
}

// runAction executes c off the UI goroutine. Input is blocked until the
// resulting actionDoneMsg arrives.
func runAction(port ChatPort, c command) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		status := ""
		switch c.kind {
		case cmdMessage:
			_, notices := port.SendMessage(ctx, c.arg)
			status = describeAll(notices)
		case cmdNew:
			conv, err := port.NewConversation()
			status = "Created " + conv.Title
			if err != nil {
				status = describe(err)
			}
		case cmdSwitch:
			if err := port.SwitchTo(c.index); err != nil {
				status = describe(err)
			}
		case cmdNext:
			port.Next()
		case cmdPrev:
			port.Prev()
		case cmdRename:
			if err := port.Rename(c.arg); err != nil {
				status = describe(err)
			}
		case cmdDelete:
			if err := port.Delete(); err != nil {
				status = describe(err)
			} else {
				status = "Conversation deleted."
			}
		case cmdUpload:
			status = upload(ctx, port, c.args)
		case cmdRemove:
			warnings, err := port.RemoveDocument(ctx, c.arg)
			switch {
			case err != nil:
				status = describe(err)
			case len(warnings) > 0:
				status = "Removed " + c.arg + ". " + describeAll(warnings)
			default:
				status = "Removed " + c.arg
			}
		}
		return actionDoneMsg{status: status, snap: port.Snapshot()}
	}
}

func upload(ctx context.Context, port ChatPort, patterns []string) string {
	files, errs := readFiles(patterns)
	var added []string
	for _, r := range port.Upload(ctx, files) {
		if r.Record != nil {
			added = append(added, r.Name)
		}
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	var parts []string
	if len(added) > 0 {
		parts = append(parts, fmt.Sprintf("Added %s.", strings.Join(added, ", ")))
	}
	if len(errs) > 0 {
		parts = append(parts, describeAll(errs))
	}
	return strings.Join(parts, " ")
}

// View renders the sidebar, transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	side := sidebarStyle.Height(max(3, m.height-2)).Render(renderSidebar(m.snap))
	header := titleStyle.Render(m.snap.CurrentTitle) + "  " +
		mutedStyle.Render(fmt.Sprintf("%d document(s), %d chunk(s)", len(m.snap.Documents), m.snap.Chunks))
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	main := lipgloss.JoinVertical(lipgloss.Left, header, transcript, input, status)
	return lipgloss.JoinHorizontal(lipgloss.Top, side, main)
}

func (m *Model) layout() {
	sideW, _ := sidebarStyle.GetFrameSize()
	mainW := max(20, m.width-sidebarWidth-sideW)
	_, th := transcriptBoxStyle.GetFrameSize()
	_, qh := queryBoxStyle.GetFrameSize()
	reserved := 1 + 1 + qh + 1 // header, input line, status
	m.viewport.Width = max(20, mainW-2)
	m.viewport.Height = max(3, m.height-reserved-th)
	m.input.Width = max(10, mainW-6)
	m.markdown = newMarkdown(m.viewport.Width - 2)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.snap.Messages, m.markdown))
	m.viewport.GotoBottom()
}

var (
	sidebarWidth       = 28
	sidebarStyle       = lipgloss.NewStyle().Width(sidebarWidth).Border(lipgloss.RoundedBorder()).Padding(0, 1)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle         = lipgloss.NewStyle().Bold(true)
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	currentStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
