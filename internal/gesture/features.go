// Package gesture provides sign feature extraction, the online classifier and
// the training session controller.
package gesture

import (
	"github.com/ayusman/mudra/internal/detector"
)

const (
	// HandSlotSize is the number of values one hand contributes (21 x 3).
	HandSlotSize = detector.NumLandmarks * 3
	// FeatureSize is the length of every feature vector: a Left slot then a Right slot.
	FeatureSize = 2 * HandSlotSize
)

// FeatureVector is the fixed-size encoding of one frame's hand geometry.
type FeatureVector [FeatureSize]float64

// slotOffset returns where a hand of the given handedness is packed.
func slotOffset(h detector.Handedness) (int, bool) {
	switch h {
	case detector.Left:
		return 0, true
	case detector.Right:
		return HandSlotSize, true
	default:
		return 0, false
	}
}

// Extract packs up to two hands into a FeatureVector. Each hand is made
// wrist-relative and written into its handedness slot; an absent hand leaves
// its slot zero. When two hands report the same handedness the later one
// overwrites the earlier. Hands with an unknown handedness are ignored.
func Extract(hands []detector.HandLandmarks) FeatureVector {
	var v FeatureVector

	for i := range hands {
		offset, ok := slotOffset(hands[i].Handedness)
		if !ok {
			continue
		}

		rel := hands[i].RelativeToWrist()
		for j, p := range rel.Points {
			base := offset + j*3
			v[base] = p.X
			v[base+1] = p.Y
			v[base+2] = p.Z
		}
	}

	return v
}

// Slot returns the 63 values of the given hand's slot.
func (v *FeatureVector) Slot(h detector.Handedness) []float64 {
	offset, ok := slotOffset(h)
	if !ok {
		return nil
	}
	return v[offset : offset+HandSlotSize]
}

// IsZero reports whether every entry is zero, i.e. no hand contributed.
func (v *FeatureVector) IsZero() bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
