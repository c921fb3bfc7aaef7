package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/service"
	"ragqa/internal/textnorm"
)

// Asker is the TUI-facing subset of the QA service.
type Asker interface {
	Ask(ctx context.Context, question string) (service.Answer, error)
}

type answerMsg struct {
	question string
	answer   service.Answer
	err      error
}

// Model is the Bubble Tea model for the TUI application. Page 0 shows the answer,
// the following pages show the retrieved excerpts one by one.
type Model struct {
	service  Asker
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	answer   *service.Answer
	summary  string
	status   string
	page     int
	ready    bool
	asking   bool
}

// New creates a new TUI model instance. summary is shown under the title.
func New(svc Asker, summary string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "اكتب سؤالك ثم اضغط Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return Model{service: svc, timeout: timeout, input: ti, viewport: vp, spinner: sp, summary: summary, status: "Ready. Ask a question."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		ans, err := m.service.Ask(ctx, q)
		return answerMsg{question: q, answer: ans, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderPage())
		return m, nil
	case answerMsg:
		m.asking = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			ans := msg.answer
			m.answer = &ans
			m.status = fmt.Sprintf("%s  %q  (%d excerpts)", ans.Status, msg.question, len(ans.Units))
		}
		m.page = 0
		m.viewport.SetContent(m.renderPage())
		m.viewport.GotoTop()
		return m, nil
	case spinner.TickMsg:
		if !m.asking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.asking {
				m.asking = true
				m.status = "Searching the library..."
				return m, tea.Batch(m.ask(q), m.spinner.Tick)
			}
		case "tab", "right":
			if n := m.pages(); n > 1 {
				m.page = (m.page + 1) % n
				m.viewport.SetContent(m.renderPage())
				m.viewport.GotoTop()
				return m, nil
			}
		case "shift+tab", "left":
			if n := m.pages(); n > 1 {
				m.page = (m.page - 1 + n) % n
				m.viewport.SetContent(m.renderPage())
				m.viewport.GotoTop()
				return m, nil
			}
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current page.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Library Q&A")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	statusText := m.status
	if m.asking {
		statusText = m.spinner.View() + " " + statusText
	}
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(statusText)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) pages() int {
	if m.answer == nil {
		return 0
	}
	return 1 + len(m.answer.Units)
}

func (m Model) renderPage() string {
	if m.answer == nil {
		return "No answer yet."
	}
	a := m.answer
	if m.page == 0 {
		title := fmt.Sprintf("Answer [%s]  (tab: excerpts 1-%d)", a.Status, len(a.Units))
		return title + "\n\n" + a.Text
	}
	u := a.Units[m.page-1]
	attr := u.Attribution()
	title := fmt.Sprintf("Excerpt %d/%d  %s | %s | ج %s | ص %s", m.page, len(a.Units), attr.Author, attr.Book, attr.Part, attr.Page)
	return title + "\n\n" + highlightSentences(u.Content, a.Keywords)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sentenceRe     = regexp.MustCompile(`[^.!?؟؛]+(?:[.!?؟؛]+|$)`)
)

// highlightSentences renders every sentence of text that contains a keyword in the
// highlight style.
func highlightSentences(text string, keywords []string) string {
	if strings.TrimSpace(text) == "" || len(keywords) == 0 {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return text
	}
	for i, s := range sentences {
		sent := strings.TrimSpace(s)
		if containsKeyword(textnorm.Normalize(sent), keywords) {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func containsKeyword(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}
