// Package detector provides hand landmark types and the frame sources that deliver them.
package detector

import (
	"errors"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness tags which hand an observation belongs to.
type Handedness string

const (
	// Left marks a left hand.
	Left Handedness = "Left"
	// Right marks a right hand.
	Right Handedness = "Right"
)

// Valid reports whether h is one of the known handedness tags.
func (h Handedness) Valid() bool {
	return h == Left || h == Right
}

// ErrMalformedFrame is returned when a delivered frame cannot be used.
var ErrMalformedFrame = errors.New("malformed frame")

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns p translated by d.
func (p Point3D) Add(d Point3D) Point3D {
	return Point3D{X: p.X + d.X, Y: p.Y + d.Y, Z: p.Z + d.Z}
}

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// HandLandmarks represents the 21 hand landmarks of one tracked hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness Handedness            `json:"handedness"`

	// Score is the tracker's confidence in the hand. Zero means the tracker
	// did not report one.
	Score float64 `json:"score,omitempty"`
}

// RelativeToWrist returns a copy of the hand with every landmark expressed
// relative to the wrist. No scaling is applied, so distance to the camera
// still affects magnitudes.
func (h *HandLandmarks) RelativeToWrist() *HandLandmarks {
	if h == nil {
		return nil
	}

	rel := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		rel.Points[i] = h.Points[i].Sub(wrist)
	}

	return rel
}

// Translate returns a copy of the hand with every landmark moved by d.
func (h HandLandmarks) Translate(d Point3D) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i] = out.Points[i].Add(d)
	}
	return out
}

// Validate checks the handedness tag and that every coordinate is finite.
func (h *HandLandmarks) Validate() error {
	if !h.Handedness.Valid() {
		return fmt.Errorf("%w: handedness must be 'Left' or 'Right', got %q", ErrMalformedFrame, h.Handedness)
	}
	for i, p := range h.Points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return fmt.Errorf("%w: landmark %d is not finite", ErrMalformedFrame, i)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
