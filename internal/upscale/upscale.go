// Package upscale models the per-card upscale flow as an explicit state
// machine: Idle -> InFlight -> {Succeeded, Failed}. Succeeded is terminal;
// Failed keeps the original inputs so a retry re-enters InFlight with the
// exact same image and factor.
package upscale

import (
	"errors"
	"fmt"

	"github.com/imgstudio/imgstudio/pkg/models"
)

type State int

const (
	Idle State = iota
	InFlight
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in-flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrAlreadyInFlight = errors.New("upscale already in flight")
	ErrTerminal        = errors.New("upscale already succeeded")
	ErrNotInFlight     = errors.New("upscale is not in flight")
)

// Job tracks one card's upscale. The source image, factor and dimensions
// are fixed at creation and survive failures unchanged.
type Job struct {
	state State

	source   []byte
	mimeType string
	prompt   string
	factor   int
	width    int
	height   int

	result  *models.GeneratedImage
	lastErr error
}

func NewJob(source []byte, mimeType, prompt string, factor, width, height int) (*Job, error) {
	req := models.NewUpscaleRequest(source, mimeType, factor)
	req.Width = width
	req.Height = height
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return &Job{
		source:   source,
		mimeType: mimeType,
		prompt:   prompt,
		factor:   factor,
		width:    width,
		height:   height,
	}, nil
}

func (j *Job) State() State {
	return j.state
}

func (j *Job) Factor() int {
	return j.factor
}

// Err returns the failure from the most recent attempt, nil otherwise.
func (j *Job) Err() error {
	return j.lastErr
}

// Start moves the job into InFlight. Valid from Idle and Failed (retry);
// a retry carries the original image and factor.
func (j *Job) Start() error {
	switch j.state {
	case InFlight:
		return ErrAlreadyInFlight
	case Succeeded:
		return ErrTerminal
	}
	j.state = InFlight
	j.lastErr = nil
	return nil
}

// Request builds the provider request for the current attempt.
func (j *Job) Request() *models.UpscaleRequest {
	req := models.NewUpscaleRequest(j.source, j.mimeType, j.factor)
	req.Prompt = j.prompt
	req.Width = j.width
	req.Height = j.height
	return req
}

// Complete records the upscaled image and moves to the terminal
// Succeeded state.
func (j *Job) Complete(img *models.GeneratedImage) error {
	if j.state != InFlight {
		return ErrNotInFlight
	}
	j.state = Succeeded
	j.result = img
	return nil
}

// Fail records the error and returns to a retryable state.
func (j *Job) Fail(err error) error {
	if j.state != InFlight {
		return ErrNotInFlight
	}
	j.state = Failed
	j.lastErr = err
	return nil
}

// Image returns the bytes the card's download action should use: the
// upscaled result once Succeeded, the original otherwise.
func (j *Job) Image() ([]byte, string) {
	if j.state == Succeeded && j.result != nil {
		return j.result.Data, j.result.MimeType
	}
	return j.source, j.mimeType
}

// Result returns the upscaled image, nil unless Succeeded.
func (j *Job) Result() *models.GeneratedImage {
	if j.state != Succeeded {
		return nil
	}
	return j.result
}
