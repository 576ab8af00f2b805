package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// chatCmd starts an interactive question and answer session
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question and answer session",
	Long: `Start an interactive chat session against the ragd server.

Each question is sent to the server and the answer is appended to the
running transcript. Press Ctrl+C or Ctrl+D to exit.

Examples:
  # Start a chat session
  ragctl chat

  # Chat with a different server
  ragctl chat --server http://localhost:9090`,
	RunE: runChat,
}

// runChat handles the chat command
func runChat(cmd *cobra.Command, args []string) error {
	if _, err := tea.NewProgram(newChatModel(postAsk)).Run(); err != nil {
		return fmt.Errorf("chat session failed: %w", err)
	}
	return nil
}

// answerMsg carries the server's reply for one question.
type answerMsg struct {
	question string
	answer   string
	err      error
}

// chatModel is the Bubble Tea model for the chat session.
type chatModel struct {
	ask        func(question string) (string, error)
	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	status     string
	ready      bool
	waiting    bool
}

func newChatModel(ask func(string) (string, error)) chatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return chatModel{ask: ask, input: ti, viewport: vp, status: "Server: " + serverURL}
}

// Init initializes the model (text input cursor blink).
func (m chatModel) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events and updates the view state.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around transcript and question boxes
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		totalHeaderLines := 1                                    // title
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.transcript = append(m.transcript, renderExchange(msg.question, msg.answer))
			m.status = fmt.Sprintf("Answered %q", msg.question)
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.waiting = true
				m.status = "Waiting for answer..."
				m.input.Reset()
				return m, sendQuestion(m.ask, q)
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout and the running transcript.
func (m chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := lipgloss.NewStyle().Bold(true).Render("ragd chat")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := questionBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return title + "\n" + transcript + "\n" + input + "\n" + status
}

func (m chatModel) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No questions yet."
	}
	joined := strings.Join(m.transcript, "\n\n")
	width := m.viewport.Width - 2
	if width < 20 {
		return joined
	}
	return lipgloss.NewStyle().Width(width).Render(joined)
}

func renderExchange(question, answer string) string {
	return questionStyle.Render("You: "+question) + "\n" + answer
}

// sendQuestion performs the HTTP round trip off the UI loop and delivers
// the reply as an answerMsg.
func sendQuestion(ask func(string) (string, error), question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := ask(question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
