package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// maxConsecutiveErrors stops Run when a source does nothing but fail.
const maxConsecutiveErrors = 100

// Mode selects what the pipeline does with each frame.
type Mode int

const (
	// ModePredict classifies frames and emits detections.
	ModePredict Mode = iota
	// ModeTrain routes frames to the training controller.
	ModeTrain
)

func (m Mode) String() string {
	switch m {
	case ModePredict:
		return "predict"
	case ModeTrain:
		return "train"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Detection is emitted for every frame the classifier recognises.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

// Mode returns the current pipeline mode.
func (a *App) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// LastDetection returns the most recent detection, if any.
func (a *App) LastDetection() (Detection, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastDetection == nil {
		return Detection{}, false
	}
	return *a.lastDetection, true
}

// Subscribe registers fn to receive every detection. Detections are not
// debounced; consumers that need hold times implement them.
func (a *App) Subscribe(fn func(Detection)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subscribers, id)
	}
}

// ProcessFrame runs one frame through the pipeline. In train mode a capturing
// session stores the frame as an example; in predict mode a confident
// prediction is emitted as a Detection. Frames without hands are ignored.
// The only error is detector.ErrMalformedFrame, and it never changes state.
func (a *App) ProcessFrame(frame detector.Frame) error {
	filtered, err := a.config.Detector.Filter(frame)
	if err != nil {
		return err
	}

	a.mu.RLock()
	enabled, mode := a.enabled, a.mode
	a.mu.RUnlock()

	if !enabled || len(filtered.Hands) == 0 {
		return nil
	}

	v := gesture.Extract(filtered.Hands)

	switch mode {
	case ModeTrain:
		if label, ok := a.trainer.Capture(v); ok {
			a.mu.Lock()
			a.captured[label]++
			a.mu.Unlock()
		}

	case ModePredict:
		p, ok := a.classifier.Predict(v)
		if !ok {
			return nil
		}
		a.emit(Detection{
			Label:      p.Label,
			Confidence: p.Confidence,
			Timestamp:  filtered.Timestamp,
		})
	}

	return nil
}

func (a *App) emit(d Detection) {
	a.mu.Lock()
	a.lastDetection = &d
	subs := make([]func(Detection), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	a.logger.Debugw("sign detected", "label", d.Label, "confidence", d.Confidence)

	for _, fn := range subs {
		fn(d)
	}
	a.dispatcher.Detection(d.Label, d.Confidence, d.Timestamp)
}

// Run drives ProcessFrame from source until it is exhausted or ctx is done.
// Malformed frames and transient source errors are logged and skipped. The
// source is closed on return.
func (a *App) Run(ctx context.Context, source detector.Source) error {
	defer func() {
		if err := source.Close(); err != nil {
			a.logger.Warnw("error closing frame source", "error", err)
		}
	}()

	failures := 0
	for {
		frame, err := source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.logger.Infow("frame source exhausted")
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			failures++
			if failures >= maxConsecutiveErrors {
				return fmt.Errorf("frame source failed %d times in a row: %w", failures, err)
			}
			a.logger.Warnw("skipping frame", "error", err)
			continue
		}
		failures = 0

		if err := a.ProcessFrame(frame); err != nil {
			a.logger.Warnw("skipping malformed frame", "error", err)
		}
	}
}
