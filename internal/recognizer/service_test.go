package recognizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Vijayrathan/asl-gestr/internal/config"
	"github.com/Vijayrathan/asl-gestr/internal/session"
	"github.com/Vijayrathan/asl-gestr/internal/stability"
	"github.com/Vijayrathan/asl-gestr/internal/worker"
)

type scriptedClassifier struct {
	results []worker.Result
	err     error
	calls   int
}

func (c *scriptedClassifier) Classify(_ context.Context, _ []byte) (worker.Result, error) {
	if c.err != nil {
		return worker.Result{}, c.err
	}
	res := c.results[c.calls%len(c.results)]
	c.calls++
	return res, nil
}

func newService(classifier Classifier) *Service {
	cfg := config.Default().Classifier
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(classifier, stability.New(cfg), session.NewStore(cfg.StabilityThreshold), nil, nil, log)
}

func TestClassifyFrameCommitsAfterStableRun(t *testing.T) {
	svc := newService(&scriptedClassifier{results: []worker.Result{{Letter: "H", Confidence: 0.9}}})

	var last FrameResult
	for i := 0; i < 3; i++ {
		var err error
		last, err = svc.ClassifyFrame(context.Background(), "s1", []byte("frame"))
		if err != nil {
			t.Fatalf("classify frame %d: %v", i, err)
		}
	}
	if !last.Accepted || last.AcceptedLetter != "H" {
		t.Fatalf("expected H accepted, got %+v", last)
	}
	if last.Text != "H" {
		t.Fatalf("expected accumulated H, got %q", last.Text)
	}
}

func TestClassifyFramePropagatesWorkerFailure(t *testing.T) {
	svc := newService(&scriptedClassifier{err: worker.ErrUnavailable})
	_, err := svc.ClassifyFrame(context.Background(), "s1", []byte("frame"))
	if !errors.Is(err, worker.ErrUnavailable) {
		t.Fatalf("expected worker unavailable, got %v", err)
	}
}

func TestRejectionsCarryAccumulatedText(t *testing.T) {
	classifier := &scriptedClassifier{results: []worker.Result{
		{Letter: "H", Confidence: 0.9},
		{Letter: "H", Confidence: 0.9},
		{Letter: "H", Confidence: 0.9},
		{Letter: "E", Confidence: 0.3},
	}}
	svc := newService(classifier)
	var last FrameResult
	for i := 0; i < 4; i++ {
		var err error
		last, err = svc.ClassifyFrame(context.Background(), "s1", []byte("frame"))
		if err != nil {
			t.Fatalf("classify frame %d: %v", i, err)
		}
	}
	if last.Accepted {
		t.Fatalf("low-confidence frame should be rejected, got %+v", last)
	}
	if last.Reason != string(stability.ReasonLowConfidence) {
		t.Fatalf("expected low confidence reason, got %q", last.Reason)
	}
	if last.Text != "H" {
		t.Fatalf("rejection must still report accumulated text, got %q", last.Text)
	}
}

func TestTakeAccumulatedTextHandsOffAndDeletes(t *testing.T) {
	svc := newService(&scriptedClassifier{results: []worker.Result{{Letter: "A", Confidence: 0.95}}})
	for i := 0; i < 3; i++ {
		if _, err := svc.ClassifyFrame(context.Background(), "s1", []byte("frame")); err != nil {
			t.Fatalf("classify: %v", err)
		}
	}

	text, ok := svc.TakeAccumulatedText(context.Background(), "s1")
	if !ok || text != "A" {
		t.Fatalf("expected hand-off of A, got %q %v", text, ok)
	}
	if _, ok := svc.TakeAccumulatedText(context.Background(), "s1"); ok {
		t.Fatal("second hand-off should report absent session")
	}
}

func TestClearSessionForgetsState(t *testing.T) {
	svc := newService(&scriptedClassifier{results: []worker.Result{{Letter: "A", Confidence: 0.95}}})
	for i := 0; i < 3; i++ {
		if _, err := svc.ClassifyFrame(context.Background(), "s1", []byte("frame")); err != nil {
			t.Fatalf("classify: %v", err)
		}
	}
	svc.ClearSession(context.Background(), "s1")

	res, err := svc.ClassifyFrame(context.Background(), "s1", []byte("frame"))
	if err != nil {
		t.Fatalf("classify after clear: %v", err)
	}
	if res.Text != "" {
		t.Fatalf("cleared session should start empty, got %q", res.Text)
	}
}
