package studio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/imgstudio/imgstudio/internal/config"
	"github.com/imgstudio/imgstudio/internal/gallery"
	"github.com/imgstudio/imgstudio/internal/history"
	img "github.com/imgstudio/imgstudio/internal/image"
	"github.com/imgstudio/imgstudio/internal/keys"
	"github.com/imgstudio/imgstudio/internal/provider"
	"github.com/imgstudio/imgstudio/internal/security"
	"github.com/imgstudio/imgstudio/internal/upscale"
	"github.com/imgstudio/imgstudio/pkg/models"
)

// ErrBusy rejects a generation request while another one is still in
// flight.
var ErrBusy = errors.New("a request is already in progress")

type cardEntry struct {
	id       string
	prompt   string
	image    []byte
	mimeType string
	path     string
	job      *upscale.Job
}

// Controller owns the studio state and drives every operation the UI
// exposes. All mutation happens here; views only read snapshots.
type Controller struct {
	mu   sync.Mutex
	busy bool

	prov     provider.Provider
	registry *models.ModelRegistry
	history  *history.Store
	gallery  *gallery.Manager
	selector keys.Selector
	saver    *img.Saver

	settingsDir string
	state       State
	cards       []*cardEntry
}

type Options struct {
	Provider provider.Provider
	Registry *models.ModelRegistry
	History  *history.Store
	Gallery  *gallery.Manager
	Selector keys.Selector
	// SettingsDir is where the theme preference is persisted. Empty
	// disables persistence.
	SettingsDir string
}

func NewController(opts Options) *Controller {
	registry := opts.Registry
	if registry == nil {
		registry = models.DefaultRegistry()
	}

	c := &Controller{
		prov:        opts.Provider,
		registry:    registry,
		history:     opts.History,
		gallery:     opts.Gallery,
		selector:    opts.Selector,
		saver:       img.NewSaver(),
		settingsDir: opts.SettingsDir,
		state: State{
			Model:           models.DefaultModel,
			AspectRatio:     models.RatioSquare,
			Count:           1,
			Format:          models.FormatPNG,
			ControlsEnabled: true,
			Theme:           config.ThemeDark,
		},
	}

	if opts.SettingsDir != "" {
		c.state.Theme = config.LoadSettings(opts.SettingsDir).Theme
	}
	if opts.History != nil {
		c.state.History = opts.History.Load()
	}
	return c
}

// Snapshot returns a copy of the current state safe for rendering.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state
	st.History = slices.Clone(c.state.History)
	st.Cards = make([]Card, len(c.cards))
	for i, entry := range c.cards {
		card := Card{
			ID:       entry.id,
			Prompt:   entry.prompt,
			Image:    entry.image,
			MimeType: entry.mimeType,
			Path:     entry.path,
		}
		if entry.job != nil {
			card.UpscaleState = entry.job.State()
			card.UpscaleFactor = entry.job.Factor()
			if err := entry.job.Err(); err != nil {
				card.UpscaleErr = err.Error()
			}
		}
		st.Cards[i] = card
	}
	return st
}

// Generate runs one generation request. The prompt is validated before
// any network call, a second call while one is in flight returns
// ErrBusy, and the controls are re-enabled on every exit path.
func (c *Controller) Generate(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}

	prompt := strings.TrimSpace(c.state.Prompt)
	if prompt == "" {
		c.setStatusLocked("Enter a prompt first.", LevelError, provider.KindEmptyInput, false)
		c.mu.Unlock()
		return models.ErrEmptyPrompt
	}

	c.busy = true
	c.state.ControlsEnabled = false
	c.state.Loading = true
	c.state.NeedsKey = false
	c.setStatusLocked("Generating...", LevelInfo, provider.KindUnknown, false)
	req := c.buildRequestLocked(prompt)
	prov := c.prov
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.state.ControlsEnabled = true
		c.state.Loading = false
		c.mu.Unlock()
	}()

	if caps, ok := c.registry.Get(req.Model); ok {
		caps.ApplyDefaults(req)
		if err := caps.Validate(req); err != nil {
			c.mu.Lock()
			c.setStatusLocked(err.Error(), LevelError, provider.Classify(err), false)
			c.mu.Unlock()
			return err
		}
	}

	if prov == nil {
		c.mu.Lock()
		c.routeErrorLocked("Generation", provider.ErrAPIKeyRequired)
		c.mu.Unlock()
		return provider.ErrAPIKeyRequired
	}

	resp, err := prov.Generate(ctx, req)
	if err != nil {
		c.mu.Lock()
		c.routeErrorLocked("Generation", err)
		c.mu.Unlock()
		return err
	}

	entries := make([]*cardEntry, 0, len(resp.Images))
	for i := range resp.Images {
		image := &resp.Images[i]
		entry := &cardEntry{
			id:       uuid.NewString(),
			prompt:   prompt,
			image:    image.Data,
			mimeType: image.MimeType,
		}
		if c.gallery != nil {
			if card, gerr := c.gallery.RecordGeneration(ctx, image, req.Model); gerr == nil {
				entry.id = card.ID
				entry.path = card.ImagePath
			}
		}
		entries = append(entries, entry)
	}

	var histErr error
	var updated []string
	if c.history != nil {
		updated, histErr = c.history.Record(prompt)
	}

	c.mu.Lock()
	c.cards = append(entries, c.cards...)
	if c.history != nil && histErr == nil {
		c.state.History = updated
	}
	c.setStatusLocked(fmt.Sprintf("Generated %d image(s).", len(entries)), LevelInfo, provider.KindUnknown, false)
	c.mu.Unlock()
	return nil
}

// Retry re-runs generation with the current state. A failed attempt
// leaves everything needed for a fresh one.
func (c *Controller) Retry(ctx context.Context) error {
	return c.Generate(ctx)
}

// Upscale drives a card's upscale state machine. A card that already
// succeeded is terminal; a failed one keeps its original image and
// factor so retrying needs no new input.
func (c *Controller) Upscale(ctx context.Context, index, factor int) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if index < 0 || index >= len(c.cards) {
		c.mu.Unlock()
		return fmt.Errorf("no card at index %d", index)
	}

	if c.prov == nil {
		c.routeErrorLocked("Upscale", provider.ErrAPIKeyRequired)
		c.mu.Unlock()
		return provider.ErrAPIKeyRequired
	}

	entry := c.cards[index]
	job := entry.job
	if job == nil || (job.State() == upscale.Failed && job.Factor() != factor) {
		w, h, err := img.Dimensions(entry.image)
		if err != nil {
			c.setStatusLocked("Cannot upscale: unreadable image dimensions.", LevelError, provider.KindUnknown, false)
			c.mu.Unlock()
			return fmt.Errorf("%w: %v", models.ErrUnknownDimensions, err)
		}
		job, err = upscale.NewJob(entry.image, entry.mimeType, entry.prompt, factor, w, h)
		if err != nil {
			c.setStatusLocked(err.Error(), LevelError, provider.KindUnknown, false)
			c.mu.Unlock()
			return err
		}
		entry.job = job
	}

	if err := job.Start(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.setStatusLocked(fmt.Sprintf("Upscaling %dx...", factor), LevelInfo, provider.KindUnknown, false)
	req := job.Request()
	parentID, prompt, model := entry.id, entry.prompt, c.state.Model
	prov := c.prov
	c.mu.Unlock()

	resp, err := prov.Upscale(ctx, req)
	if err != nil || len(resp.Images) == 0 {
		if err == nil {
			err = provider.ErrNoImageReturned
		}
		c.mu.Lock()
		job.Fail(err)
		c.routeErrorLocked("Upscale", err)
		c.mu.Unlock()
		return err
	}

	result := &resp.Images[0]
	var path string
	if c.gallery != nil {
		if card, gerr := c.gallery.RecordUpscale(ctx, result, model, parentID, prompt); gerr == nil {
			path = card.ImagePath
		}
	}

	c.mu.Lock()
	job.Complete(result)
	if path != "" {
		entry.path = path
	}
	c.setStatusLocked(fmt.Sprintf("Upscaled %dx.", factor), LevelInfo, provider.KindUnknown, false)
	c.mu.Unlock()
	return nil
}

// Download writes a card's current image to disk: the upscaled bytes
// once an upscale succeeded, the original otherwise. An empty path
// derives a filename from the prompt.
func (c *Controller) Download(ctx context.Context, index int, path string) (string, error) {
	c.mu.Lock()
	if index < 0 || index >= len(c.cards) {
		c.mu.Unlock()
		return "", fmt.Errorf("no card at index %d", index)
	}
	entry := c.cards[index]
	data, mime := entry.image, entry.mimeType
	if entry.job != nil {
		data, mime = entry.job.Image()
	}
	prompt := entry.prompt
	c.mu.Unlock()

	switch {
	case path == "":
		path = img.GenerateFilename(prompt, 0, models.FormatFromMime(mime))
	case !filepath.IsAbs(path):
		// Relative destinations resolve against the working directory
		// and must not escape it. Absolute ones are an explicit choice.
		if err := security.ValidateSavePath(path); err != nil {
			return "", err
		}
	}

	out := &models.GeneratedImage{Data: data, MimeType: mime, SourcePrompt: prompt}
	if err := c.saver.Save(ctx, out, path); err != nil {
		return "", err
	}
	return path, nil
}

// UseHistory copies a history entry back into the prompt field.
func (c *Controller) UseHistory(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.state.History) {
		return fmt.Errorf("no history entry at index %d", index)
	}
	c.state.Prompt = c.state.History[index]
	return nil
}

func (c *Controller) ClearHistory() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.history != nil {
		if err := c.history.Clear(); err != nil {
			return err
		}
	}
	c.state.History = nil
	return nil
}

// ToggleTheme flips between dark and light and persists the choice.
func (c *Controller) ToggleTheme() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Theme == config.ThemeDark {
		c.state.Theme = config.ThemeLight
	} else {
		c.state.Theme = config.ThemeDark
	}
	if c.settingsDir != "" {
		_ = config.Settings{Theme: c.state.Theme}.Save(c.settingsDir)
	}
	return c.state.Theme
}

// SetProvider swaps in a provider built with a freshly selected key and
// clears the key-needed flag.
func (c *Controller) SetProvider(p provider.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prov = p
	c.state.NeedsKey = false
	c.setStatusLocked("API key updated.", LevelInfo, provider.KindUnknown, false)
}

func (c *Controller) Selector() keys.Selector {
	return c.selector
}

func (c *Controller) SetPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Prompt = prompt
}

func (c *Controller) SetModel(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if _, ok := c.registry.Get(name); !ok {
		return fmt.Errorf("unknown model %q", name)
	}
	c.state.Model = name
	return nil
}

func (c *Controller) SetAspectRatio(ratio models.AspectRatio) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if !ratio.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidAspectRatio, ratio)
	}
	c.state.AspectRatio = ratio
	return nil
}

func (c *Controller) SetResolution(res models.Resolution) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if res != "" && !res.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidResolution, res)
	}
	c.state.Resolution = res
	return nil
}

func (c *Controller) SetQuality(q models.Quality) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if q != "" && !q.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidQuality, q)
	}
	c.state.Quality = q
	return nil
}

func (c *Controller) SetCount(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if n < 1 {
		return models.ErrInvalidCount
	}
	if caps, ok := c.registry.Get(c.state.Model); ok && n > caps.MaxImages {
		return fmt.Errorf("%w: max %d", models.ErrCountExceedsMax, caps.MaxImages)
	}
	c.state.Count = n
	return nil
}

func (c *Controller) SetFormat(f models.OutputFormat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if !f.IsValid() {
		return fmt.Errorf("invalid output format %q", f)
	}
	c.state.Format = f
	return nil
}

func (c *Controller) buildRequestLocked(prompt string) *models.Request {
	return &models.Request{
		Prompt:      prompt,
		Model:       c.state.Model,
		AspectRatio: c.state.AspectRatio,
		Resolution:  c.state.Resolution,
		Quality:     c.state.Quality,
		Count:       c.state.Count,
		Format:      c.state.Format,
	}
}

func (c *Controller) setStatusLocked(msg string, level StatusLevel, kind provider.Kind, retryable bool) {
	c.state.Status = msg
	c.state.StatusLevel = level
	c.state.ErrorKind = kind
	c.state.Retryable = retryable
}

// routeErrorLocked maps a provider failure to the status the UI shows.
// Classification goes through structured error kinds; raw message
// matching only kicks in for errors no sentinel covers.
func (c *Controller) routeErrorLocked(verb string, err error) {
	kind := provider.Classify(err)
	switch kind {
	case provider.KindPermission:
		if c.selector != nil {
			c.setStatusLocked("API key rejected (permission denied). Select a different key to continue.", LevelError, kind, false)
			c.state.NeedsKey = true
		} else {
			c.setStatusLocked(keys.InstructionalMessage(config.APIKeyEnv), LevelError, kind, false)
		}
	case provider.KindNoImage:
		c.setStatusLocked("The model returned no image. Adjust the prompt and try again.", LevelError, kind, true)
	default:
		c.setStatusLocked(fmt.Sprintf("%s failed: %v. Try again.", verb, err), LevelError, kind, true)
	}
}
