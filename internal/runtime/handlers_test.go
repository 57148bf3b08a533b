package runtime

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Vijayrathan/asl-gestr/internal/config"
	"github.com/Vijayrathan/asl-gestr/internal/recognizer"
	"github.com/Vijayrathan/asl-gestr/internal/sentence"
	"github.com/Vijayrathan/asl-gestr/internal/session"
	"github.com/Vijayrathan/asl-gestr/internal/stability"
	"github.com/Vijayrathan/asl-gestr/internal/worker"
)

type fixedClassifier struct {
	result worker.Result
	err    error
}

func (c *fixedClassifier) Classify(_ context.Context, _ []byte) (worker.Result, error) {
	return c.result, c.err
}

func testRuntime(classifier recognizer.Classifier) *Runtime {
	cfg := config.Default()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	store := session.NewStore(cfg.Classifier.StabilityThreshold)
	filter := stability.New(cfg.Classifier)
	return &Runtime{
		cfg:       cfg,
		logger:    log,
		service:   recognizer.New(classifier, filter, store, nil, nil, log),
		sentences: sentence.NewMockGenerator(),
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func frame() string {
	return base64.StdEncoding.EncodeToString([]byte("frame"))
}

func TestHandleClassifyReturnsVerdict(t *testing.T) {
	rt := testRuntime(&fixedClassifier{result: worker.Result{Letter: "H", Confidence: 0.9}})

	var last recognizer.FrameResult
	for i := 0; i < 3; i++ {
		rec := postJSON(t, rt.handleClassify, classifyRequest{SessionID: "s1", Image: frame()})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &last); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	if !last.Accepted || last.AcceptedLetter != "H" || last.Text != "H" {
		t.Fatalf("expected committed H, got %+v", last)
	}
}

func TestHandleClassifyAcceptsDataURL(t *testing.T) {
	rt := testRuntime(&fixedClassifier{result: worker.Result{Letter: "H", Confidence: 0.2}})
	rec := postJSON(t, rt.handleClassify, classifyRequest{
		SessionID: "s1",
		Image:     "data:image/jpeg;base64," + frame(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleClassifyValidation(t *testing.T) {
	rt := testRuntime(&fixedClassifier{result: worker.Result{Letter: "H", Confidence: 0.9}})

	rec := postJSON(t, rt.handleClassify, classifyRequest{SessionID: "", Image: frame()})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing session, got %d", rec.Code)
	}
	rec = postJSON(t, rt.handleClassify, classifyRequest{SessionID: "s1", Image: "!!not-base64!!"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad image payload, got %d", rec.Code)
	}
}

func TestHandleClassifyMapsWorkerFailures(t *testing.T) {
	rt := testRuntime(&fixedClassifier{err: worker.ErrUnavailable})
	rec := postJSON(t, rt.handleClassify, classifyRequest{SessionID: "s1", Image: frame()})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for unavailable worker, got %d", rec.Code)
	}

	rt = testRuntime(&fixedClassifier{err: worker.ErrTimeout})
	rec = postJSON(t, rt.handleClassify, classifyRequest{SessionID: "s1", Image: frame()})
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 for timeout, got %d", rec.Code)
	}
}

func TestHandleSentenceHandsOffSession(t *testing.T) {
	rt := testRuntime(&fixedClassifier{result: worker.Result{Letter: "H", Confidence: 0.9}})
	for i := 0; i < 3; i++ {
		postJSON(t, rt.handleClassify, classifyRequest{SessionID: "s1", Image: frame()})
	}

	rec := postJSON(t, rt.handleSentence, sessionRequest{SessionID: "s1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp sentenceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Letters != "H" || resp.Sentence == "" {
		t.Fatalf("unexpected sentence response: %+v", resp)
	}

	// The hand-off deleted the session.
	rec = postJSON(t, rt.handleSentence, sessionRequest{SessionID: "s1"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after hand-off, got %d", rec.Code)
	}
}

func TestHandleClearBehavesAsIfSessionNeverExisted(t *testing.T) {
	rt := testRuntime(&fixedClassifier{result: worker.Result{Letter: "H", Confidence: 0.9}})
	for i := 0; i < 3; i++ {
		postJSON(t, rt.handleClassify, classifyRequest{SessionID: "s1", Image: frame()})
	}

	rec := postJSON(t, rt.handleClear, sessionRequest{SessionID: "s1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = postJSON(t, rt.handleClassify, classifyRequest{SessionID: "s1", Image: frame()})
	var res recognizer.FrameResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Text != "" {
		t.Fatalf("cleared session should report empty text, got %q", res.Text)
	}
}
