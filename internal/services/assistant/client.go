package assistant

import (
	"context"
)

// Image is an encoded picture attached to a prompt.
type Image struct {
	MIMEType string
	Data     []byte
}

type LLMClient interface {
	Generate(ctx context.Context, prompt string, image *Image) (string, error)
}
