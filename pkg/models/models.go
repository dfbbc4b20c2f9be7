package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrEmptyPrompt        = errors.New("prompt cannot be empty")
	ErrInvalidCount       = errors.New("count must be at least 1")
	ErrCountExceedsMax    = errors.New("count exceeds maximum for model")
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
	ErrInvalidResolution  = errors.New("invalid resolution for model")
	ErrInvalidQuality     = errors.New("invalid quality for model")
	ErrNoImageData        = errors.New("image data is required for upscaling")
	ErrInvalidFactor      = errors.New("upscale factor must be 2, 3 or 4")
	ErrUnknownDimensions  = errors.New("source image dimensions are required")
)

type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatWebP OutputFormat = "webp"
)

func ValidFormats() []OutputFormat {
	return []OutputFormat{FormatPNG, FormatJPEG, FormatWebP}
}

func (f OutputFormat) IsValid() bool {
	return slices.Contains(ValidFormats(), f)
}

func (f OutputFormat) String() string {
	return string(f)
}

func (f OutputFormat) MimeType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// FormatFromMime maps a response MIME type back to an output format,
// defaulting to png for anything unrecognized.
func FormatFromMime(mime string) OutputFormat {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/webp":
		return FormatWebP
	default:
		return FormatPNG
	}
}

type AspectRatio string

const (
	RatioSquare    AspectRatio = "1:1"
	RatioWide      AspectRatio = "16:9"
	RatioTall      AspectRatio = "9:16"
	RatioLandscape AspectRatio = "4:3"
	RatioPortrait  AspectRatio = "3:4"
)

func ValidAspectRatios() []AspectRatio {
	return []AspectRatio{RatioSquare, RatioWide, RatioTall, RatioLandscape, RatioPortrait}
}

func (a AspectRatio) IsValid() bool {
	return slices.Contains(ValidAspectRatios(), a)
}

func (a AspectRatio) String() string {
	return string(a)
}

type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"
)

func ValidResolutions() []Resolution {
	return []Resolution{Resolution1K, Resolution2K, Resolution4K}
}

func (r Resolution) IsValid() bool {
	return slices.Contains(ValidResolutions(), r)
}

func (r Resolution) String() string {
	return string(r)
}

type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

func ValidQualities() []Quality {
	return []Quality{QualityStandard, QualityHigh}
}

func (q Quality) IsValid() bool {
	return slices.Contains(ValidQualities(), q)
}

func (q Quality) String() string {
	return string(q)
}

// Request carries one generation call's worth of option values. It is
// built fresh for every call and never retained.
type Request struct {
	Prompt      string
	Model       string
	AspectRatio AspectRatio
	Resolution  Resolution
	Quality     Quality
	Count       int
	Format      OutputFormat
}

func NewRequest(prompt string) *Request {
	return &Request{
		Prompt:      prompt,
		AspectRatio: RatioSquare,
		Count:       1,
		Format:      FormatPNG,
	}
}

// UpscaleRequest re-submits an existing image with an advisory
// target-resolution prompt. The returned image's actual dimensions are
// not verified against the target.
type UpscaleRequest struct {
	Image    []byte
	MimeType string
	Prompt   string
	Factor   int
	Width    int
	Height   int
	Format   OutputFormat
}

func NewUpscaleRequest(image []byte, mimeType string, factor int) *UpscaleRequest {
	return &UpscaleRequest{
		Image:    image,
		MimeType: mimeType,
		Factor:   factor,
		Format:   FormatPNG,
	}
}

func (r *UpscaleRequest) Validate() error {
	if len(r.Image) == 0 {
		return ErrNoImageData
	}
	if r.Factor < 2 || r.Factor > 4 {
		return fmt.Errorf("%w: got %d", ErrInvalidFactor, r.Factor)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return ErrUnknownDimensions
	}
	return nil
}

func (r *UpscaleRequest) TargetWidth() int {
	return r.Width * r.Factor
}

func (r *UpscaleRequest) TargetHeight() int {
	return r.Height * r.Factor
}

// BuildPrompt renders the instruction sent alongside the source image.
func (r *UpscaleRequest) BuildPrompt() string {
	return fmt.Sprintf(
		"Upscale this image to exactly %dx%d pixels (%dx). Preserve the original content, composition and style; increase detail and sharpness only.",
		r.TargetWidth(), r.TargetHeight(), r.Factor)
}

type Response struct {
	Images  []GeneratedImage
	Refusal string
}

type GeneratedImage struct {
	Data         []byte
	MimeType     string
	SourcePrompt string
	Index        int
	Filename     string
}

type ModelCapabilities struct {
	Name              string
	AspectRatios      []AspectRatio
	Resolutions       []Resolution
	Qualities         []Quality
	MaxImages         int
	DefaultRatio      AspectRatio
	DefaultResolution Resolution
	SupportsUpscale   bool
}

func (c *ModelCapabilities) Validate(req *Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrEmptyPrompt
	}

	if req.Count < 1 {
		return ErrInvalidCount
	}

	if req.Count > c.MaxImages {
		return fmt.Errorf("%w: max %d, got %d", ErrCountExceedsMax, c.MaxImages, req.Count)
	}

	if req.AspectRatio != "" && !slices.Contains(c.AspectRatios, req.AspectRatio) {
		return fmt.Errorf("%w: %q not in %v", ErrInvalidAspectRatio, req.AspectRatio, c.AspectRatios)
	}

	if req.Resolution != "" && len(c.Resolutions) > 0 && !slices.Contains(c.Resolutions, req.Resolution) {
		return fmt.Errorf("%w: %q not in %v", ErrInvalidResolution, req.Resolution, c.Resolutions)
	}

	if req.Quality != "" && len(c.Qualities) > 0 && !slices.Contains(c.Qualities, req.Quality) {
		return fmt.Errorf("%w: %q not in %v", ErrInvalidQuality, req.Quality, c.Qualities)
	}

	return nil
}

func (c *ModelCapabilities) ApplyDefaults(req *Request) {
	if req.Model == "" {
		req.Model = c.Name
	}
	if req.AspectRatio == "" {
		req.AspectRatio = c.DefaultRatio
	}
	if req.Resolution == "" && c.DefaultResolution != "" {
		req.Resolution = c.DefaultResolution
	}
}

type ModelRegistry struct {
	models map[string]*ModelCapabilities
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]*ModelCapabilities),
	}
}

func (r *ModelRegistry) Register(cap *ModelCapabilities) {
	r.models[cap.Name] = cap
}

func (r *ModelRegistry) Get(name string) (*ModelCapabilities, bool) {
	cap, ok := r.models[name]
	return cap, ok
}

func (r *ModelRegistry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

const DefaultModel = "gemini-2.5-flash-image"

func DefaultRegistry() *ModelRegistry {
	r := NewModelRegistry()

	r.Register(&ModelCapabilities{
		Name:              "gemini-2.5-flash-image",
		AspectRatios:      ValidAspectRatios(),
		Resolutions:       ValidResolutions(),
		Qualities:         ValidQualities(),
		MaxImages:         4,
		DefaultRatio:      RatioSquare,
		DefaultResolution: Resolution1K,
		SupportsUpscale:   true,
	})

	r.Register(&ModelCapabilities{
		Name:         "gemini-2.0-flash-image",
		AspectRatios: []AspectRatio{RatioSquare, RatioWide, RatioTall},
		Resolutions:  []Resolution{Resolution1K},
		MaxImages:    4,
		DefaultRatio: RatioSquare,
	})

	return r
}
