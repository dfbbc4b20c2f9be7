package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imgstudio/imgstudio/internal/studio"
	"github.com/imgstudio/imgstudio/pkg/models"
)

type nopProvider struct{}

func (nopProvider) Name() string         { return "nop" }
func (nopProvider) ListModels() []string { return nil }
func (nopProvider) Generate(context.Context, *models.Request) (*models.Response, error) {
	return nil, errors.New("not wired")
}
func (nopProvider) Upscale(context.Context, *models.UpscaleRequest) (*models.Response, error) {
	return nil, errors.New("not wired")
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	ctrl := studio.NewController(studio.Options{Provider: nopProvider{}})
	return NewModel(Options{Controller: ctrl})
}

func TestNewModel_Defaults(t *testing.T) {
	m := newTestModel(t)
	if m.factor != 2 {
		t.Errorf("initial factor = %d, want 2", m.factor)
	}
	if m.focus != focusInput {
		t.Errorf("initial focus = %v, want input", m.focus)
	}
}

func TestView_BeforeSize(t *testing.T) {
	m := newTestModel(t)
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() before size = %q", got)
	}
}

func TestView_RendersSections(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(Model)

	out := m.View()
	for _, want := range []string{"imgstudio", "History", "No images yet"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestHandleKey_FactorCycles(t *testing.T) {
	m := newTestModel(t)
	m.focus = focusCards

	for _, want := range []int{3, 4, 2} {
		updated, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
		m = updated.(Model)
		if m.factor != want {
			t.Errorf("factor = %d, want %d", m.factor, want)
		}
	}
}

func TestHandleKey_TabCyclesFocus(t *testing.T) {
	m := newTestModel(t)
	for _, want := range []focusZone{focusCards, focusHistory, focusInput} {
		updated, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyTab})
		m = updated.(Model)
		if m.focus != want {
			t.Errorf("focus = %v, want %v", m.focus, want)
		}
	}
}

func TestHandleKey_ThemeToggle(t *testing.T) {
	m := newTestModel(t)
	m.focus = focusCards

	updated, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	m = updated.(Model)
	if got := m.ctrl.Snapshot().Theme; got != "light" {
		t.Errorf("theme after toggle = %q, want light", got)
	}
}
