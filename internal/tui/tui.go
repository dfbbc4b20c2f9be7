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

	"github.com/imgstudio/imgstudio/internal/provider"
	"github.com/imgstudio/imgstudio/internal/render"
	"github.com/imgstudio/imgstudio/internal/studio"
	"github.com/imgstudio/imgstudio/pkg/models"
)

type focusZone int

const (
	focusInput focusZone = iota
	focusCards
	focusHistory
)

type generateDoneMsg struct{ err error }

type upscaleDoneMsg struct {
	index int
	err   error
}

type downloadDoneMsg struct {
	path string
	err  error
}

type keySelectedMsg struct{ err error }

// Options wires the model to the controller. ProviderFactory rebuilds
// the provider after a new API key was selected; nil disables
// reselection.
type Options struct {
	Controller      *studio.Controller
	ProviderFactory func() (provider.Provider, error)
}

type Model struct {
	ctrl    *studio.Controller
	rebuild func() (provider.Provider, error)

	textInput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model

	focus       focusZone
	selCard     int
	selHistory  int
	factor      int
	width       int
	height      int
	lastSaved   string
	selectorErr string
}

func NewModel(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Enter prompt"
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		ctrl:      opts.Controller,
		rebuild:   opts.ProviderFactory,
		textInput: ti,
		spinner:   s,
		viewport:  viewport.New(0, 0),
		factor:    2,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.width
		m.viewport.Height = m.height - 8

	case tea.KeyMsg:
		return m.handleKey(msg)

	case generateDoneMsg:
		m.selCard = 0
		return m, nil

	case upscaleDoneMsg:
		return m, nil

	case downloadDoneMsg:
		if msg.err == nil {
			m.lastSaved = msg.path
		}
		return m, nil

	case keySelectedMsg:
		if msg.err != nil {
			m.selectorErr = msg.err.Error()
		} else {
			m.selectorErr = ""
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	cmds = append(cmds, cmd)
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.ctrl.Snapshot()

	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "tab":
		m.focus = (m.focus + 1) % 3
		if m.focus == focusInput {
			m.textInput.Focus()
		} else {
			m.textInput.Blur()
		}
		return m, nil

	case "enter":
		switch m.focus {
		case focusInput:
			m.ctrl.SetPrompt(m.textInput.Value())
			return m, tea.Batch(m.generateCmd(), m.spinner.Tick)
		case focusHistory:
			if err := m.ctrl.UseHistory(m.selHistory); err == nil {
				m.textInput.SetValue(m.ctrl.Snapshot().Prompt)
				m.focus = focusInput
				m.textInput.Focus()
			}
			return m, nil
		case focusCards:
			return m, m.downloadCmd(m.selCard)
		}

	case "up":
		switch m.focus {
		case focusCards:
			if m.selCard > 0 {
				m.selCard--
			}
		case focusHistory:
			if m.selHistory > 0 {
				m.selHistory--
			}
		}
		return m, nil

	case "down":
		switch m.focus {
		case focusCards:
			if m.selCard < len(st.Cards)-1 {
				m.selCard++
			}
		case focusHistory:
			if m.selHistory < len(st.History)-1 {
				m.selHistory++
			}
		}
		return m, nil
	}

	// Action keys apply outside the prompt field so typing stays free.
	if m.focus != focusInput {
		switch msg.String() {
		case "u":
			return m, tea.Batch(m.upscaleCmd(m.selCard, m.factor), m.spinner.Tick)
		case "f":
			m.factor++
			if m.factor > 4 {
				m.factor = 2
			}
			return m, nil
		case "d":
			return m, m.downloadCmd(m.selCard)
		case "r":
			return m, tea.Batch(m.retryCmd(), m.spinner.Tick)
		case "t":
			m.ctrl.ToggleTheme()
			return m, nil
		case "a":
			m.cycleAspect(st.AspectRatio)
			return m, nil
		case "k":
			if st.NeedsKey {
				return m, m.selectKeyCmd()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) cycleAspect(current models.AspectRatio) {
	ratios := models.ValidAspectRatios()
	for i, r := range ratios {
		if r == current {
			m.ctrl.SetAspectRatio(ratios[(i+1)%len(ratios)])
			return
		}
	}
	m.ctrl.SetAspectRatio(ratios[0])
}

func (m Model) generateCmd() tea.Cmd {
	return func() tea.Msg {
		return generateDoneMsg{err: m.ctrl.Generate(context.Background())}
	}
}

func (m Model) retryCmd() tea.Cmd {
	return func() tea.Msg {
		return generateDoneMsg{err: m.ctrl.Retry(context.Background())}
	}
}

func (m Model) upscaleCmd(index, factor int) tea.Cmd {
	return func() tea.Msg {
		return upscaleDoneMsg{index: index, err: m.ctrl.Upscale(context.Background(), index, factor)}
	}
}

func (m Model) downloadCmd(index int) tea.Cmd {
	return func() tea.Msg {
		path, err := m.ctrl.Download(context.Background(), index, "")
		return downloadDoneMsg{path: path, err: err}
	}
}

// selectKeyCmd runs the host's key selector and swaps in a provider
// built from the new key.
func (m Model) selectKeyCmd() tea.Cmd {
	return func() tea.Msg {
		sel := m.ctrl.Selector()
		if sel == nil || m.rebuild == nil {
			return keySelectedMsg{err: fmt.Errorf("no key selector available")}
		}
		if err := sel.Open(context.Background()); err != nil {
			return keySelectedMsg{err: err}
		}
		prov, err := m.rebuild()
		if err != nil {
			return keySelectedMsg{err: err}
		}
		m.ctrl.SetProvider(prov)
		return keySelectedMsg{}
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	st := m.ctrl.Snapshot()
	th := render.ByName(st.Theme)

	var b strings.Builder
	b.WriteString(th.Title.Render("imgstudio"))
	b.WriteString("\n\n")

	b.WriteString(m.promptView(st, th))
	b.WriteString("\n")
	b.WriteString(render.ControlsBar(st, th))
	b.WriteString("\n")
	b.WriteString(m.statusView(st, th))
	b.WriteString("\n\n")

	b.WriteString(render.Cards(st, th, m.width))
	b.WriteString("\n\n")

	b.WriteString(th.Label.Render("History"))
	b.WriteString("\n")
	b.WriteString(render.HistoryList(st, th, 8))
	b.WriteString("\n\n")
	b.WriteString(m.helpView(st, th))

	return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
}

func (m Model) promptView(st studio.State, th render.Theme) string {
	if m.focus == focusInput {
		return m.textInput.View()
	}
	prompt := st.Prompt
	if prompt == "" {
		prompt = m.textInput.Value()
	}
	return th.Muted.Render("Prompt: ") + th.Value.Render(prompt)
}

func (m Model) statusView(st studio.State, th render.Theme) string {
	line := render.StatusLine(st, th)
	if st.Loading {
		line = m.spinner.View() + " " + line
	}
	if m.lastSaved != "" {
		line += "  " + th.Info.Render("saved "+m.lastSaved)
	}
	if m.selectorErr != "" {
		line += "  " + th.Error.Render(m.selectorErr)
	}
	return line
}

func (m Model) helpView(st studio.State, th render.Theme) string {
	parts := []string{
		"tab focus", "enter generate/use", "u upscale", fmt.Sprintf("f factor (%dx)", m.factor),
		"d download", "r retry", "a aspect", "t theme", "esc quit",
	}
	if st.NeedsKey {
		parts = append(parts, "k select key")
	}
	return th.Muted.Render(strings.Join(parts, " · "))
}

// Run starts the interactive studio and blocks until it exits.
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
