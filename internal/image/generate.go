package image

import (
	"context"
	"errors"
	"fmt"
	stdimage "image"
	"strconv"
	"strings"
)

const (
	DefaultSteps    = 50
	DefaultGuidance = 7.5
)

var ErrEmptyPrompt = &ValidationError{Field: "prompt", Reason: "must not be empty"}

// Params is a single generation request. It is built per attempt and never reused.
type Params struct {
	Prompt   string
	Width    int
	Height   int
	Steps    int
	Guidance float64
}

func NewParams(prompt string, size Size) Params {
	return Params{
		Prompt:   prompt,
		Width:    size.Width,
		Height:   size.Height,
		Steps:    DefaultSteps,
		Guidance: DefaultGuidance,
	}
}

func (p Params) Validate() error {
	switch {
	case strings.TrimSpace(p.Prompt) == "":
		return ErrEmptyPrompt
	case p.Width <= 0:
		return &ValidationError{Field: "width", Reason: "must be positive"}
	case p.Height <= 0:
		return &ValidationError{Field: "height", Reason: "must be positive"}
	case p.Steps <= 0:
		return &ValidationError{Field: "num_inference_steps", Reason: "must be positive"}
	case p.Guidance <= 0:
		return &ValidationError{Field: "guidance_scale", Reason: "must be positive"}
	}
	return nil
}

type parameters struct {
	Steps    int     `json:"num_inference_steps"`
	Guidance float64 `json:"guidance_scale"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

type payload struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

func (p Params) payload() payload {
	return payload{
		Inputs: p.Prompt,
		Parameters: parameters{
			Steps:    p.Steps,
			Guidance: p.Guidance,
			Width:    p.Width,
			Height:   p.Height,
		},
	}
}

// Generated holds the raw response body alongside its decoded form.
type Generated struct {
	Data   []byte
	Format string
	Image  stdimage.Image
}

type Generator interface {
	Generate(context.Context, Params) (*Generated, error)
}

type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses "<width>x<height>".
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q: expected <width>x<height>", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, fmt.Errorf("invalid size %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Size{}, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return Size{}, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return Size{Width: width, Height: height}, nil
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status code: %d", e.StatusCode)
}

type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("API request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("response is not a valid image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsValidation reports whether err was produced before any request was sent.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
