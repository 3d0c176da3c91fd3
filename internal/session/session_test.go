package session

import (
	"errors"
	"testing"

	"go.uber.org/goleak"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFrameSequencingIsMonotonicFromZero(t *testing.T) {
	var frames []Frame
	s := New("sess-1", capability.ReadOnly(), func(f Frame) { frames = append(frames, f) })

	for i := 0; i < 5; i++ {
		if _, err := s.YieldData(Stdout, []byte("x")); err != nil {
			t.Fatalf("YieldData failed: %v", err)
		}
	}

	for i, f := range frames {
		if f.Sequence != uint64(i) {
			t.Errorf("frame %d has sequence %d, want %d", i, f.Sequence, i)
		}
	}
}

func TestCancelRejectsSubsequentYields(t *testing.T) {
	s := New("sess-2", capability.ReadOnly(), nil)
	if _, err := s.YieldData(Stdout, []byte("ok")); err != nil {
		t.Fatalf("unexpected error before cancel: %v", err)
	}
	s.Cancel()
	if !s.IsCancelled() {
		t.Fatal("expected IsCancelled true")
	}
	if _, err := s.YieldData(Stdout, []byte("nope")); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestFinishRejectsSubsequentYields(t *testing.T) {
	s := New("sess-3", capability.ReadOnly(), nil)
	s.Finish()
	if s.IsActive() {
		t.Fatal("expected session not active after finish")
	}
	if _, err := s.YieldData(Stdout, []byte("nope")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMetricsTrackFramesAndBytes(t *testing.T) {
	s := New("sess-4", capability.ReadOnly(), nil)
	_, _ = s.YieldData(Stdout, []byte("abc"))
	_, _ = s.YieldData(Stdout, []byte("de"))
	m := s.Metrics()
	if m.FramesSent != 2 {
		t.Errorf("expected 2 frames sent, got %d", m.FramesSent)
	}
	if m.BytesSent != 5 {
		t.Errorf("expected 5 bytes sent, got %d", m.BytesSent)
	}
}

func TestCancelIsOneShot(t *testing.T) {
	s := New("sess-5", capability.ReadOnly(), nil)
	s.Cancel()
	s.Cancel()
	if s.State() != Cancelled {
		t.Fatalf("expected Cancelled, got %v", s.State())
	}
}
