package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pamgate/pamgate"
	"github.com/pamgate/pamgate/bridge"
	"github.com/pamgate/pamgate/errors"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateConnecting modelState = iota
	stateWaiting
	stateInput
	stateDone
)

type interactiveModel struct {
	auth    *bridge.Authenticator
	cfg     *Config
	conv    *pamgate.Conversation
	err     error
	input   textinput.Model
	history []string
	result  string
	state   modelState
}

func newInteractiveModel(auth *bridge.Authenticator, cfg *Config) *interactiveModel {
	return &interactiveModel{
		auth:  auth,
		cfg:   cfg,
		state: stateConnecting,
	}
}

type convStartedMsg struct {
	conv *pamgate.Conversation
	err  error
}

type convMsg struct {
	msg pamgate.Message
	err error
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.startConversation
}

func (m *interactiveModel) startConversation() tea.Msg {
	conv, err := m.auth.Chat(m.cfg.Service, m.cfg.User)
	return convStartedMsg{conv: conv, err: err}
}

func (m *interactiveModel) awaitMessage() tea.Cmd {
	conv := m.conv
	timeout := m.cfg.ChatTimeout
	return func() tea.Msg {
		msg, err := conv.Recv(timeout)
		return convMsg{msg: msg, err: err}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.conv != nil {
				m.conv.Close()
			}
			return m, tea.Quit

		case "q":
			if m.state != stateInput {
				if m.conv != nil {
					m.conv.Close()
				}
				return m, tea.Quit
			}

		case "enter":
			switch m.state {
			case stateInput:
				return m, m.answer()
			case stateDone:
				return m, tea.Quit
			}
		}

	case convStartedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateDone
			return m, nil
		}
		m.conv = msg.conv
		m.state = stateWaiting
		return m, m.awaitMessage()

	case convMsg:
		return m.handleMessage(msg)
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) handleMessage(msg convMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.IsClosed(msg.err) {
			m.result = "conversation closed"
		} else {
			m.err = msg.err
		}
		m.state = stateDone
		return m, nil
	}

	switch msg.msg.Kind {
	case pamgate.MsgEcho, pamgate.MsgNoEcho:
		ti := textinput.New()
		ti.Prompt = msg.msg.Text + " "
		ti.Width = 40
		if msg.msg.Kind == pamgate.MsgNoEcho {
			ti.EchoMode = textinput.EchoPassword
		}
		ti.Focus()
		m.input = ti
		m.state = stateInput
		return m, textinput.Blink

	case pamgate.MsgInfo:
		m.history = append(m.history, infoStyle.Render(msg.msg.Text))
		return m, m.awaitMessage()

	case pamgate.MsgError:
		m.history = append(m.history, errorStyle.Render(msg.msg.Text))
		return m, m.awaitMessage()

	case pamgate.MsgAuthenticated:
		m.result = successStyle.Render(fmt.Sprintf("Authenticated %s for service %s", m.cfg.User, m.cfg.Service))
		m.state = stateDone
		return m, nil

	case pamgate.MsgAuthenticationFailed, pamgate.MsgValidationFailed:
		m.result = errorStyle.Render(msg.msg.String())
		m.state = stateDone
		return m, nil
	}

	return m, m.awaitMessage()
}

func (m *interactiveModel) answer() tea.Cmd {
	value := m.input.Value()
	echoed := m.input.Prompt + strings.Repeat("*", len(value))
	if m.input.EchoMode == textinput.EchoNormal {
		echoed = m.input.Prompt + value
	}
	m.history = append(m.history, promptStyle.Render(echoed))
	m.state = stateWaiting

	conv := m.conv
	timeout := m.cfg.SendTimeout
	await := m.awaitMessage()
	return func() tea.Msg {
		if err := conv.Answer(value, timeout); err != nil {
			return convMsg{err: err}
		}
		return await()
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("pamgate"))
	b.WriteString(fmt.Sprintf(" %s @ %s\n\n", m.cfg.User, m.cfg.Service))

	for _, line := range m.history {
		b.WriteString(line)
		b.WriteString("\n")
	}

	switch m.state {
	case stateConnecting:
		b.WriteString("Starting conversation...\n")

	case stateWaiting:
		b.WriteString(helpStyle.Render("waiting for module..."))
		b.WriteString("\n")

	case stateInput:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter submit • esc cancel"))

	case stateDone:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else if m.result != "" {
			b.WriteString(m.result)
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter or q to quit"))
	}

	return b.String()
}

func runInteractive(auth *bridge.Authenticator, cfg *Config) error {
	p := tea.NewProgram(newInteractiveModel(auth, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
