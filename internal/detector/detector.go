package detector

import (
	"context"
	"fmt"
)

// Frame is one delivery from the tracking collaborator: zero, one or two hands.
type Frame struct {
	Hands     []HandLandmarks `json:"hands"`
	Timestamp int64           `json:"timestamp"` // milliseconds
}

// Source defines the interface for anything that delivers landmark frames.
type Source interface {
	// Next blocks until the next frame is available.
	// Returns io.EOF when the source is exhausted.
	Next(ctx context.Context) (Frame, error)

	// Close releases any resources held by the source.
	Close() error
}

// Config holds configuration options for frame sources.
type Config struct {
	// MaxHands is the maximum number of hands accepted per frame (default: 2).
	MaxHands int

	// MinConfidence drops scored hands whose tracking score is below it
	// (0.0-1.0). Hands without a score are always kept.
	MinConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:      2,
		MinConfidence: 0.5,
	}
}

// Filter validates a raw frame and drops scored hands below the confidence floor.
// A frame carrying more than MaxHands hands, or an invalid hand, is malformed.
func (c Config) Filter(f Frame) (Frame, error) {
	if c.MaxHands > 0 && len(f.Hands) > c.MaxHands {
		return Frame{}, fmt.Errorf("%w: %d hands, at most %d allowed", ErrMalformedFrame, len(f.Hands), c.MaxHands)
	}

	out := Frame{Timestamp: f.Timestamp}
	for i := range f.Hands {
		if err := f.Hands[i].Validate(); err != nil {
			return Frame{}, fmt.Errorf("hand %d: %w", i, err)
		}
		if score := f.Hands[i].Score; score > 0 && score < c.MinConfidence {
			continue
		}
		out.Hands = append(out.Hands, f.Hands[i])
	}
	return out, nil
}
