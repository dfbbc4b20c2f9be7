package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imgstudio/imgstudio/internal/config"
	"github.com/imgstudio/imgstudio/internal/studio"
	"github.com/imgstudio/imgstudio/internal/upscale"
)

// Theme bundles the styles one color scheme uses. Every render
// function takes the state and a theme and returns a string; nothing
// here mutates anything.
type Theme struct {
	Name      string
	Title     lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Info      lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	CardBox   lipgloss.Style
	Action    lipgloss.Style
	Disabled  lipgloss.Style
	HistoryIx lipgloss.Style
}

func DarkTheme() Theme {
	return Theme{
		Name:      config.ThemeDark,
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Value:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Info:      lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		CardBox:   lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("205")).Padding(0, 1),
		Action:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		Disabled:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true),
		HistoryIx: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func LightTheme() Theme {
	return Theme{
		Name:      config.ThemeLight,
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("127")),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Value:     lipgloss.NewStyle().Foreground(lipgloss.Color("235")),
		Info:      lipgloss.NewStyle().Foreground(lipgloss.Color("29")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("247")),
		CardBox:   lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("127")).Padding(0, 1),
		Action:    lipgloss.NewStyle().Foreground(lipgloss.Color("29")),
		Disabled:  lipgloss.NewStyle().Foreground(lipgloss.Color("247")).Strikethrough(true),
		HistoryIx: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// ByName falls back to the dark theme for unknown names.
func ByName(name string) Theme {
	if config.NormalizeTheme(name) == config.ThemeLight {
		return LightTheme()
	}
	return DarkTheme()
}

// StatusLine renders the status message styled by severity. A loading
// state gets a spinner-adjacent hint even with no message set.
func StatusLine(st studio.State, th Theme) string {
	switch {
	case st.Status == "" && st.Loading:
		return th.Info.Render("Working...")
	case st.Status == "":
		return th.Muted.Render("Ready.")
	case st.StatusLevel == studio.LevelError:
		return th.Error.Render(st.Status)
	default:
		return th.Info.Render(st.Status)
	}
}

// ControlsBar renders the option values; dimmed while a request is in
// flight.
func ControlsBar(st studio.State, th Theme) string {
	style := th.Value
	if !st.ControlsEnabled {
		style = th.Muted
	}

	parts := []string{
		fmt.Sprintf("%s %s", th.Label.Render("model:"), style.Render(st.Model)),
		fmt.Sprintf("%s %s", th.Label.Render("aspect:"), style.Render(st.AspectRatio.String())),
		fmt.Sprintf("%s %s", th.Label.Render("count:"), style.Render(fmt.Sprintf("%d", st.Count))),
		fmt.Sprintf("%s %s", th.Label.Render("format:"), style.Render(st.Format.String())),
	}
	if st.Resolution != "" {
		parts = append(parts, fmt.Sprintf("%s %s", th.Label.Render("resolution:"), style.Render(st.Resolution.String())))
	}
	if st.Quality != "" {
		parts = append(parts, fmt.Sprintf("%s %s", th.Label.Render("quality:"), style.Render(st.Quality.String())))
	}
	return strings.Join(parts, "  ")
}

// Cards renders one box per generated image with its upscale and
// download affordances.
func Cards(st studio.State, th Theme, width int) string {
	if len(st.Cards) == 0 {
		return th.Muted.Render("No images yet. Enter a prompt and generate.")
	}

	boxes := make([]string, 0, len(st.Cards))
	for i, card := range st.Cards {
		boxes = append(boxes, renderCard(i, card, th, width))
	}
	return strings.Join(boxes, "\n")
}

func renderCard(index int, card studio.Card, th Theme, width int) string {
	var b strings.Builder
	b.WriteString(th.Title.Render(fmt.Sprintf("#%d", index+1)))
	b.WriteString(" ")
	b.WriteString(th.Value.Render(truncate(card.Prompt, max(20, width-12))))
	b.WriteString("\n")
	b.WriteString(upscaleLine(card, th))
	b.WriteString("\n")
	b.WriteString(actionLine(card, th))
	return th.CardBox.Render(b.String())
}

func upscaleLine(card studio.Card, th Theme) string {
	switch card.UpscaleState {
	case upscale.InFlight:
		return th.Info.Render(fmt.Sprintf("upscaling %dx...", card.UpscaleFactor))
	case upscale.Succeeded:
		return th.Info.Render(fmt.Sprintf("upscaled %dx", card.UpscaleFactor))
	case upscale.Failed:
		return th.Error.Render(fmt.Sprintf("upscale failed: %s (press u to retry)", truncate(card.UpscaleErr, 40)))
	default:
		return th.Muted.Render("not upscaled")
	}
}

func actionLine(card studio.Card, th Theme) string {
	download := th.Action.Render("[ Download ]")
	var up string
	switch card.UpscaleState {
	case upscale.Succeeded:
		up = th.Disabled.Render("[ Upscale ]")
	case upscale.InFlight:
		up = th.Muted.Render("[ Upscaling ]")
	default:
		up = th.Action.Render("[ Upscale ]")
	}
	return download + " " + up
}

// HistoryList renders the prompt history newest first, numbered for
// quick recall.
func HistoryList(st studio.State, th Theme, limit int) string {
	if len(st.History) == 0 {
		return th.Muted.Render("No prompt history.")
	}

	n := len(st.History)
	if limit > 0 && n > limit {
		n = limit
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf("%s %s",
			th.HistoryIx.Render(fmt.Sprintf("%2d.", i+1)),
			th.Value.Render(truncate(st.History[i], 60))))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		if len(s) <= n {
			return s
		}
		return s[:n]
	}
	return s[:n-3] + "..."
}
