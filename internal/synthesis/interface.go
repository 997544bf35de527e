package synthesis

import "context"

// Converter turns text into audio bytes of the requested output format.
type Converter interface {
	Convert(ctx context.Context, text, format string) ([]byte, error)
}

var _ Converter = (*Manager)(nil)
