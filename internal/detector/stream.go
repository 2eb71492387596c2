package detector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// maxLineSize bounds a single JSON frame line.
const maxLineSize = 1 << 20

// StreamSource reads newline-delimited JSON frames from a reader.
// Each line has the shape {"hands":[{"points":[{"x":..,"y":..,"z":..},...],"handedness":"Left","score":0.9}],"timestamp":123}.
type StreamSource struct {
	config  Config
	scanner *bufio.Scanner
	closer  io.Closer
	mu      sync.Mutex
}

// NewStreamSource creates a StreamSource over r. If r is an io.Closer it is
// closed by Close.
func NewStreamSource(r io.Reader, config Config) *StreamSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	s := &StreamSource{
		config:  config,
		scanner: sc,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next frame. Blank lines are skipped. A line that fails to
// parse or validate yields an error wrapping ErrMalformedFrame; the stream
// itself stays usable.
func (s *StreamSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Frame{}, fmt.Errorf("read frame: %w", err)
			}
			return Frame{}, io.EOF
		}

		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		return decodeFrame(line, s.config)
	}
}

// Close closes the underlying reader if it is closable.
func (s *StreamSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// DecodeFrame parses one JSON frame and filters it with config.
func DecodeFrame(data []byte, config Config) (Frame, error) {
	return decodeFrame(data, config)
}

func decodeFrame(data []byte, config Config) (Frame, error) {
	var raw jsonFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, fmt.Errorf("%w: parse: %v", ErrMalformedFrame, err)
	}

	frame := Frame{Timestamp: raw.Timestamp}
	if frame.Timestamp == 0 {
		frame.Timestamp = time.Now().UnixMilli()
	}

	for i, h := range raw.Hands {
		lm, err := h.toHandLandmarks()
		if err != nil {
			return Frame{}, fmt.Errorf("hand %d: %w", i, err)
		}
		frame.Hands = append(frame.Hands, lm)
	}

	return config.Filter(frame)
}

// jsonFrame represents the JSON structure emitted by trackers.
type jsonFrame struct {
	Hands     []jsonHand `json:"hands"`
	Timestamp int64      `json:"timestamp"`
}

type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() (HandLandmarks, error) {
	if len(h.Points) != NumLandmarks {
		return HandLandmarks{}, fmt.Errorf("%w: expected %d landmarks, got %d", ErrMalformedFrame, NumLandmarks, len(h.Points))
	}

	lm := HandLandmarks{
		Handedness: Handedness(h.Handedness),
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks; i++ {
		lm.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return lm, nil
}
