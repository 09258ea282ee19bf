package ai

import "context"

// GenerateInput carries everything a provider needs to produce one image.
type GenerateInput struct {
	Prompt          string
	BaseImage       []byte
	ReferenceImages [][]byte
	Size            string
}

// GenerateResult is the image payload returned by a provider.
type GenerateResult struct {
	ImageBytes []byte
	MimeType   string
}

// ImageGenerator describes an external provider capable of turning a prompt into an image.
type ImageGenerator interface {
	Generate(ctx context.Context, input GenerateInput) (GenerateResult, error)
}
