package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/imgstudio/imgstudio/pkg/models"
)

var (
	ErrAPIKeyRequired   = errors.New("API key is required")
	ErrGenerationFailed = errors.New("image generation failed")
	ErrUpscaleFailed    = errors.New("image upscale failed")
	ErrNoImageReturned  = errors.New("no image returned")
	ErrPermissionDenied = errors.New("permission denied")
)

// Provider is the single external collaborator that performs image
// synthesis. Implementations are opaque transports.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *models.Request) (*models.Response, error)
	Upscale(ctx context.Context, req *models.UpscaleRequest) (*models.Response, error)
	ListModels() []string
}

type Config struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
	Verbose    bool
}

// Kind is the structured failure classification consumed at the
// controller boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindEmptyInput
	KindPermission
	KindNoImage
)

func (k Kind) String() string {
	switch k {
	case KindEmptyInput:
		return "empty-input"
	case KindPermission:
		return "permission"
	case KindNoImage:
		return "no-image"
	default:
		return "unknown"
	}
}

// Classify maps an error to its Kind. Sentinel checks come first; string
// matching on "403"/"permission" remains only as a fallback for errors
// that reach the boundary unwrapped.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, models.ErrEmptyPrompt):
		return KindEmptyInput
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrAPIKeyRequired):
		return KindPermission
	case errors.Is(err, ErrNoImageReturned):
		return KindNoImage
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "403") || strings.Contains(msg, "permission") {
		return KindPermission
	}

	return KindUnknown
}
