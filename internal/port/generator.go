package port

import "context"

// Generator produces answer text from a composed prompt via an external
// language model.
type Generator interface {
	// Generate returns the model output for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the generation model.
	ModelName() string
}
