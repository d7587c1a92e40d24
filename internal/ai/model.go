// Package ai wraps the generative model collaborator behind a narrow interface.
package ai

import (
	"context"
)

// Image is an inline image payload sent alongside a prompt.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request is one prompt for the model, optionally carrying an image.
type Request struct {
	Prompt string
	Image  *Image
}

// Model provides an interface for generative text operations.
// This interface enables mocking and testing of the routing and advisory layers.
type Model interface {
	// Generate sends the request to the model and returns its text response.
	// Failures wrap domain.ErrExternalService.
	Generate(ctx context.Context, req Request) (string, error)
}

// ModelFunc adapts a plain function to Model.
type ModelFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
