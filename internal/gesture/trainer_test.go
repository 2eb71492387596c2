package gesture

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	mu     sync.Mutex
	labels []string
}

func (s *recordingSink) AddExample(_ FeatureVector, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, label)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.labels)
}

// waitFor polls cond until it holds. Mock clock timers fire on their own
// goroutine, so transitions land shortly after Add returns.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestTrainer(t *testing.T, ticks int) (*Trainer, *clock.Mock, *recordingSink) {
	t.Helper()
	mock := clock.NewMock()
	sink := &recordingSink{}

	cfg := DefaultTrainerConfig()
	cfg.CountdownTicks = ticks
	cfg.Clock = mock
	cfg.Logger = zaptest.NewLogger(t).Sugar()

	return NewTrainer(cfg, sink), mock, sink
}

// countdownToCapture steps the mock clock through every countdown tick.
func countdownToCapture(t *testing.T, tr *Trainer, mock *clock.Mock) {
	t.Helper()
	for tr.Snapshot().State == StateCountdown {
		want := tr.Snapshot().Remaining - 1
		mock.Add(time.Second)
		waitFor(t, "countdown tick", func() bool {
			s := tr.Snapshot()
			return s.State == StateCapturing || s.Remaining == want
		})
	}
}

func TestTrainer_Lifecycle(t *testing.T) {
	tr, mock, sink := newTestTrainer(t, 3)

	if s := tr.Snapshot(); s.State != StateIdle {
		t.Fatalf("expected idle, got %s", s.State)
	}

	if !tr.Start("Hello") {
		t.Fatal("expected Start from idle to succeed")
	}

	s := tr.Snapshot()
	if s.State != StateCountdown || s.Remaining != 3 || s.Label != "Hello" {
		t.Fatalf("unexpected session after Start: %+v", s)
	}
	if s.ID == "" {
		t.Error("expected a session ID")
	}
	if _, ok := tr.Capture(FeatureVector{}); ok {
		t.Error("Capture during countdown should be ignored")
	}

	for _, want := range []int{2, 1} {
		mock.Add(time.Second)
		waitFor(t, "countdown tick", func() bool { return tr.Snapshot().Remaining == want })
	}

	mock.Add(time.Second)
	waitFor(t, "capturing", func() bool { return tr.Snapshot().State == StateCapturing })

	for i := 0; i < 4; i++ {
		label, ok := tr.Capture(vec(0, float64(i)))
		if !ok || label != "Hello" {
			t.Fatalf("capture %d = %q, %v", i, label, ok)
		}
	}
	if sink.count() != 4 {
		t.Errorf("expected 4 examples in the sink, got %d", sink.count())
	}

	mock.Add(3 * time.Second)
	waitFor(t, "idle", func() bool { return tr.Snapshot().State == StateIdle })

	s = tr.Snapshot()
	if s.Label != "" || s.ID != "" || s.Captured != 0 {
		t.Errorf("expected nothing armed once idle, got %+v", s)
	}
	last := s.Last
	if last == nil {
		t.Fatal("expected the finished session to be reported")
	}
	if last.Label != "Hello" || last.Outcome != OutcomeCompleted {
		t.Errorf("unexpected last session %+v", last)
	}
	if last.Captured != 4 {
		t.Errorf("expected 4 captured, got %d", last.Captured)
	}
	if got := last.FinishedAt.Sub(last.StartedAt); got != 6*time.Second {
		t.Errorf("expected the session to last 6s, got %v", got)
	}
	if _, ok := tr.Capture(FeatureVector{}); ok {
		t.Error("Capture after the session should be ignored")
	}
	for _, l := range sink.labels {
		if l != "Hello" {
			t.Errorf("expected every example under Hello, got %s", l)
		}
	}
}

func TestTrainer_StartIsNoOpWhileActive(t *testing.T) {
	t.Run("during countdown", func(t *testing.T) {
		tr, _, _ := newTestTrainer(t, 3)
		tr.Start("Hello")

		before := tr.Snapshot()
		if tr.Start("Yes") {
			t.Error("expected Start during countdown to be rejected")
		}
		if diff := cmp.Diff(before, tr.Snapshot()); diff != "" {
			t.Errorf("session changed (-before +after):\n%s", diff)
		}
	})

	t.Run("during capture", func(t *testing.T) {
		tr, mock, _ := newTestTrainer(t, 3)
		tr.Start("Hello")
		countdownToCapture(t, tr, mock)
		tr.Capture(FeatureVector{})

		before := tr.Snapshot()
		if before.State != StateCapturing {
			t.Fatalf("expected capturing, got %s", before.State)
		}
		if tr.Start("Yes") {
			t.Error("expected Start during capture to be rejected")
		}
		if diff := cmp.Diff(before, tr.Snapshot()); diff != "" {
			t.Errorf("session changed (-before +after):\n%s", diff)
		}
	})
}

func TestTrainer_StartRejectsEmptyLabel(t *testing.T) {
	tr, _, _ := newTestTrainer(t, 3)
	if tr.Start("") {
		t.Error("expected Start with an empty label to be rejected")
	}
	if tr.Snapshot().State != StateIdle {
		t.Error("expected trainer to stay idle")
	}
}

func TestTrainer_Cancel(t *testing.T) {
	tr, mock, sink := newTestTrainer(t, 3)

	if tr.Cancel() {
		t.Error("Cancel from idle should report false")
	}

	tr.Start("Hello")
	mock.Add(time.Second)
	waitFor(t, "first tick", func() bool { return tr.Snapshot().Remaining == 2 })

	first := tr.Snapshot().ID
	if !tr.Cancel() {
		t.Fatal("expected Cancel during countdown to succeed")
	}
	s := tr.Snapshot()
	if s.State != StateIdle || s.Label != "" {
		t.Fatalf("unexpected session after Cancel: %+v", s)
	}
	if s.Last == nil || s.Last.Outcome != OutcomeCancelled || s.Last.Label != "Hello" || s.Last.ID != first {
		t.Errorf("unexpected last session after Cancel: %+v", s.Last)
	}

	// Stale timers must not revive the cancelled session
	mock.Add(10 * time.Second)
	time.Sleep(5 * time.Millisecond)
	if got := tr.Snapshot().State; got != StateIdle {
		t.Errorf("expected idle after cancel, got %s", got)
	}
	if _, ok := tr.Capture(FeatureVector{}); ok || sink.count() != 0 {
		t.Error("expected nothing captured for a cancelled session")
	}

	if !tr.Start("Yes") {
		t.Fatal("expected a new session after cancel")
	}
	next := tr.Snapshot()
	if next.ID == first {
		t.Error("expected a fresh session ID")
	}
	if next.Last == nil || next.Last.ID != first {
		t.Error("expected the cancelled session to stay reported as the last one")
	}
}

func TestTrainer_CancelDuringCapture(t *testing.T) {
	tr, mock, sink := newTestTrainer(t, 1)
	tr.Start("No")
	countdownToCapture(t, tr, mock)

	tr.Capture(FeatureVector{})
	tr.Cancel()

	if sink.count() != 1 {
		t.Errorf("expected examples captured before cancel to be kept, got %d", sink.count())
	}
	s := tr.Snapshot()
	if s.Label != "" || s.Last == nil || s.Last.Captured != 1 || s.Last.Outcome != OutcomeCancelled {
		t.Errorf("unexpected session: %+v", s)
	}
}

func TestTrainer_ZeroCountdown(t *testing.T) {
	tr, _, _ := newTestTrainer(t, 0)
	tr.Start("Please")

	if s := tr.Snapshot(); s.State != StateCapturing {
		t.Errorf("expected capture to begin immediately, got %s", s.State)
	}
}

func TestTrainer_OnStateChange(t *testing.T) {
	tr, mock, _ := newTestTrainer(t, 2)

	var (
		mu     sync.Mutex
		states []string
	)
	tr.OnStateChange(func(s Session) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State.String())
	})

	tr.Start("Thank you")
	countdownToCapture(t, tr, mock)
	mock.Add(3 * time.Second)
	waitFor(t, "idle update", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 4
	})

	mu.Lock()
	defer mu.Unlock()
	want := []string{"countdown", "countdown", "capturing", "idle"}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestState_MarshalText(t *testing.T) {
	for state, want := range map[State]string{
		StateIdle:      "idle",
		StateCountdown: "countdown",
		StateCapturing: "capturing",
	} {
		got, err := state.MarshalText()
		if err != nil || string(got) != want {
			t.Errorf("%d: expected %q, got %q (%v)", int(state), want, got, err)
		}
	}
}

func TestState_UnmarshalText(t *testing.T) {
	var s State
	if err := s.UnmarshalText([]byte("capturing")); err != nil || s != StateCapturing {
		t.Errorf("expected capturing, got %s (%v)", s, err)
	}
	if err := s.UnmarshalText([]byte("sleeping")); err == nil {
		t.Error("expected an error for an unknown state")
	}
}

func TestTrainer_ListenersRunUnlocked(t *testing.T) {
	tr, _, sink := newTestTrainer(t, 0)

	release := make(chan struct{})
	var seen []Session
	tr.OnStateChange(func(s Session) {
		// Reading the trainer from a listener must not deadlock
		seen = append(seen, tr.Snapshot())
		<-release
	})

	started := make(chan bool)
	go func() { started <- tr.Start("Yes") }()

	// Start is parked in the listener; capture must still go through
	waitFor(t, "capturing", func() bool { return tr.Snapshot().State == StateCapturing })
	label, ok := tr.Capture(FeatureVector{})
	if !ok || label != "Yes" {
		t.Errorf("Capture() = %q, %v while a listener was running", label, ok)
	}

	close(release)
	if !<-started {
		t.Error("expected Start to succeed")
	}
	if sink.count() != 1 {
		t.Errorf("expected 1 example, got %d", sink.count())
	}
	if len(seen) != 1 || seen[0].Label != "Yes" {
		t.Errorf("unexpected listener snapshots %+v", seen)
	}
}

func TestTrainer_ListenerOrder(t *testing.T) {
	tr, mock, _ := newTestTrainer(t, 1)

	var (
		mu     sync.Mutex
		events []Session
	)
	tr.OnStateChange(func(s Session) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, s)
	})

	tr.Start("Please")
	countdownToCapture(t, tr, mock)
	tr.Cancel()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 3 {
		t.Fatalf("expected 3 snapshots, got %+v", events)
	}
	if events[0].State != StateCountdown || events[1].State != StateCapturing || events[2].State != StateIdle {
		t.Errorf("unexpected order %v, %v, %v", events[0].State, events[1].State, events[2].State)
	}
	if events[2].Label != "" || events[2].Last == nil || events[2].Last.Label != "Please" {
		t.Errorf("expected the idle snapshot to report the finished session only, got %+v", events[2])
	}
}
