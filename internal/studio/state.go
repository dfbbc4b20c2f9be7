package studio

import (
	"github.com/imgstudio/imgstudio/internal/provider"
	"github.com/imgstudio/imgstudio/internal/upscale"
	"github.com/imgstudio/imgstudio/pkg/models"
)

// StatusLevel tells renderers how to style the status line.
type StatusLevel int

const (
	LevelNone StatusLevel = iota
	LevelInfo
	LevelError
)

// Card is a render-ready view of one generated image: the bytes to
// show, the prompt that made them, and the card's upscale progress.
type Card struct {
	ID            string
	Prompt        string
	Image         []byte
	MimeType      string
	Path          string
	UpscaleState  upscale.State
	UpscaleFactor int
	UpscaleErr    string
}

// State is an explicit snapshot of everything the UI renders. Render
// functions consume it read-only; only the controller mutates the
// underlying data.
type State struct {
	Prompt      string
	Model       string
	AspectRatio models.AspectRatio
	Resolution  models.Resolution
	Quality     models.Quality
	Count       int
	Format      models.OutputFormat

	// ControlsEnabled is false only while a generation request is in
	// flight; it is restored on every exit path.
	ControlsEnabled bool
	Loading         bool

	Status      string
	StatusLevel StatusLevel
	ErrorKind   provider.Kind
	Retryable   bool
	NeedsKey    bool

	Cards   []Card
	History []string
	Theme   string
}
