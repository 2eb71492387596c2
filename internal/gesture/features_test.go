package gesture

import (
	"math"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
)

func allZero(vals []float64) bool {
	for _, v := range vals {
		if v != 0 {
			return false
		}
	}
	return true
}

func TestExtract_NoHands(t *testing.T) {
	v := Extract(nil)
	if !v.IsZero() {
		t.Error("expected an all-zero vector for an empty frame")
	}
	if len(v) != FeatureSize {
		t.Errorf("expected %d entries, got %d", FeatureSize, len(v))
	}
}

func TestExtract_RightOnly(t *testing.T) {
	v := Extract([]detector.HandLandmarks{detector.ThumbsUpLandmarks()})

	if !allZero(v[:HandSlotSize]) {
		t.Error("expected indices [0,63) to be zero for a Right-only frame")
	}
	if allZero(v[HandSlotSize:]) {
		t.Error("expected indices [63,126) to be populated for a Right-only frame")
	}
}

func TestExtract_LeftOnly(t *testing.T) {
	left := detector.WithHandedness(detector.ThumbsUpLandmarks(), detector.Left)
	v := Extract([]detector.HandLandmarks{left})

	if allZero(v[:HandSlotSize]) {
		t.Error("expected indices [0,63) to be populated for a Left-only frame")
	}
	if !allZero(v[HandSlotSize:]) {
		t.Error("expected indices [63,126) to be zero for a Left-only frame")
	}

	// Mirror image of the Right-only encoding
	right := Extract([]detector.HandLandmarks{detector.ThumbsUpLandmarks()})
	for i := 0; i < HandSlotSize; i++ {
		if v[i] != right[HandSlotSize+i] {
			t.Fatalf("index %d: left slot %f != right slot %f", i, v[i], right[HandSlotSize+i])
		}
	}
}

func TestExtract_BothHands(t *testing.T) {
	left := detector.WithHandedness(detector.OpenPalmLandmarks(), detector.Left)
	right := detector.ThumbsUpLandmarks()

	v := Extract([]detector.HandLandmarks{right, left})

	leftOnly := Extract([]detector.HandLandmarks{left})
	rightOnly := Extract([]detector.HandLandmarks{right})

	for i := 0; i < HandSlotSize; i++ {
		if v[i] != leftOnly[i] {
			t.Fatalf("left slot index %d mismatch", i)
		}
		if v[HandSlotSize+i] != rightOnly[HandSlotSize+i] {
			t.Fatalf("right slot index %d mismatch", i)
		}
	}
}

func TestExtract_WristRelative(t *testing.T) {
	hand := detector.ThumbsUpLandmarks()
	v := Extract([]detector.HandLandmarks{hand})

	wrist := v.Slot(detector.Right)[:3]
	if !allZero(wrist) {
		t.Errorf("expected wrist entries to be zero, got %v", wrist)
	}

	tip := hand.Points[detector.ThumbTip].Sub(hand.Points[detector.Wrist])
	base := HandSlotSize + detector.ThumbTip*3
	if v[base] != tip.X || v[base+1] != tip.Y || v[base+2] != tip.Z {
		t.Errorf("thumb tip: expected %+v, got (%f, %f, %f)", tip, v[base], v[base+1], v[base+2])
	}
}

func TestExtract_TranslationInvariant(t *testing.T) {
	offsets := []detector.Point3D{
		{X: 0.25, Y: 0.25, Z: 0.25},
		{X: -0.5, Y: 0.125, Z: 0},
		{X: 0, Y: 0, Z: -2},
	}

	left := detector.WithHandedness(detector.OpenPalmLandmarks(), detector.Left)
	right := detector.ThumbsUpLandmarks()
	base := Extract([]detector.HandLandmarks{left, right})

	for _, off := range offsets {
		moved := Extract([]detector.HandLandmarks{left.Translate(off), right.Translate(off)})
		for i := range base {
			if math.Abs(base[i]-moved[i]) > 1e-12 {
				t.Fatalf("offset %+v index %d: %f != %f", off, i, base[i], moved[i])
			}
		}
	}
}

func TestExtract_NotScaleInvariant(t *testing.T) {
	hand := detector.ThumbsUpLandmarks()
	wrist := hand.Points[detector.Wrist]

	// Same pose twice as large, as if closer to the camera
	bigger := hand
	for i := range bigger.Points {
		d := bigger.Points[i].Sub(wrist)
		bigger.Points[i] = wrist.Add(detector.Point3D{X: 2 * d.X, Y: 2 * d.Y, Z: 2 * d.Z})
	}

	a := Extract([]detector.HandLandmarks{hand})
	b := Extract([]detector.HandLandmarks{bigger})
	if a == b {
		t.Error("expected magnitude to change with hand size")
	}
}

func TestExtract_DuplicateHandedness(t *testing.T) {
	first := detector.ThumbsUpLandmarks()
	second := detector.OpenPalmLandmarks()

	v := Extract([]detector.HandLandmarks{first, second})

	if !allZero(v[:HandSlotSize]) {
		t.Error("expected left slot to stay zero when both hands report Right")
	}

	want := Extract([]detector.HandLandmarks{second})
	if v != want {
		t.Error("expected the second Right hand to overwrite the first")
	}
}

func TestExtract_UnknownHandednessIgnored(t *testing.T) {
	odd := detector.WithHandedness(detector.ThumbsUpLandmarks(), "Unknown")
	v := Extract([]detector.HandLandmarks{odd})
	if !v.IsZero() {
		t.Error("expected a hand with unknown handedness to be ignored")
	}
}
