package recognizer

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Vijayrathan/asl-gestr/internal/bus"
	"github.com/Vijayrathan/asl-gestr/internal/eventstore"
	"github.com/Vijayrathan/asl-gestr/internal/protocol"
	"github.com/Vijayrathan/asl-gestr/internal/session"
	"github.com/Vijayrathan/asl-gestr/internal/stability"
	"github.com/Vijayrathan/asl-gestr/internal/worker"
)

// Classifier is the slice of the worker channel the service depends on.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (worker.Result, error)
}

// FrameResult is the per-frame verdict surfaced to the HTTP layer. Text and
// Letters always carry the session's current accumulated state.
type FrameResult struct {
	Label          string   `json:"label"`
	Confidence     float64  `json:"confidence"`
	Accepted       bool     `json:"accepted"`
	AcceptedLetter string   `json:"accepted_letter,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	WindowSize     int      `json:"window_size"`
	WindowRequired int      `json:"window_required"`
	Text           string   `json:"text"`
	Letters        []string `json:"letters"`
}

// Service ties the worker channel, the stability filter and the session
// store together and fans results out to the bus and the event store.
type Service struct {
	classifier Classifier
	filter     *stability.Filter
	store      *session.Store
	events     *eventstore.Store
	bus        *bus.Client
	log        *slog.Logger

	framesTotal      metric.Int64Counter
	lettersCommitted metric.Int64Counter
	sentencesFormed  metric.Int64Counter
}

func New(classifier Classifier, filter *stability.Filter, store *session.Store, events *eventstore.Store, busClient *bus.Client, log *slog.Logger) *Service {
	s := &Service{
		classifier: classifier,
		filter:     filter,
		store:      store,
		events:     events,
		bus:        busClient,
		log:        log.With(slog.String("component", "recognizer")),
	}

	meter := otel.Meter("asl-gestr/recognizer")
	var err error
	if s.framesTotal, err = meter.Int64Counter("gestr_frames_classified_total",
		metric.WithDescription("Frames classified, by verdict")); err != nil {
		s.log.Warn("failed to create frames counter", slog.String("error", err.Error()))
	}
	if s.lettersCommitted, err = meter.Int64Counter("gestr_letters_committed_total",
		metric.WithDescription("Letters committed to sessions")); err != nil {
		s.log.Warn("failed to create letters counter", slog.String("error", err.Error()))
	}
	if s.sentencesFormed, err = meter.Int64Counter("gestr_sentences_formed_total",
		metric.WithDescription("Sentences formed from handed-off sessions")); err != nil {
		s.log.Warn("failed to create sentences counter", slog.String("error", err.Error()))
	}

	return s
}

// ClassifyFrame runs one frame through the worker and the stability filter.
// Worker failures (unavailable, timeout) are returned as errors; filter
// rejections are normal results.
func (s *Service) ClassifyFrame(ctx context.Context, sessionID string, image []byte) (FrameResult, error) {
	res, err := s.classifier.Classify(ctx, image)
	if err != nil {
		return FrameResult{}, err
	}

	out := s.filter.Observe(s.store, sessionID, res.Letter, res.Confidence)

	if s.framesTotal != nil {
		s.framesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("accepted", out.Accepted),
			attribute.String("reason", string(out.Reason)),
		))
	}

	now := time.Now().UTC()
	s.publish(protocol.SubjectFrameClassified, protocol.FrameClassified{
		SessionID:      sessionID,
		Label:          out.Label,
		Confidence:     out.Confidence,
		Accepted:       out.Accepted,
		AcceptedLetter: out.AcceptedLetter,
		Reason:         string(out.Reason),
		Text:           out.Text,
		Timestamp:      now,
	})

	if out.Committed {
		if s.lettersCommitted != nil {
			s.lettersCommitted.Add(ctx, 1)
		}
		s.log.Info("letter committed",
			slog.String("session_id", sessionID),
			slog.String("letter", out.AcceptedLetter),
			slog.String("text", out.Text))
		s.record(ctx, sessionID, eventstore.Event{
			SessionID:  sessionID,
			Type:       eventstore.EventLetterCommitted,
			Letter:     out.AcceptedLetter,
			Confidence: out.Confidence,
		})
		s.publish(protocol.SubjectLetterCommitted, protocol.LetterCommitted{
			SessionID: sessionID,
			Letter:    out.AcceptedLetter,
			Text:      out.Text,
			Timestamp: now,
		})
	}

	return FrameResult{
		Label:          out.Label,
		Confidence:     out.Confidence,
		Accepted:       out.Accepted,
		AcceptedLetter: out.AcceptedLetter,
		Reason:         string(out.Reason),
		WindowSize:     out.WindowSize,
		WindowRequired: out.WindowRequired,
		Text:           out.Text,
		Letters:        out.Letters,
	}, nil
}

// TakeAccumulatedText atomically hands off and deletes a session's letters.
func (s *Service) TakeAccumulatedText(ctx context.Context, sessionID string) (string, bool) {
	text, ok := s.store.TakeAndClear(sessionID)
	if !ok {
		return "", false
	}
	return text, true
}

// ClearSession discards a session entirely.
func (s *Service) ClearSession(ctx context.Context, sessionID string) {
	s.store.Clear(sessionID)
	s.record(ctx, sessionID, eventstore.Event{
		SessionID: sessionID,
		Type:      eventstore.EventSessionCleared,
	})
	s.publish(protocol.SubjectSessionCleared, protocol.SessionCleared{
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	})
}

// RecordSentence stores and publishes a completed sentence hand-off.
func (s *Service) RecordSentence(ctx context.Context, sessionID, letters, sentence, audioURL string) {
	if s.sentencesFormed != nil {
		s.sentencesFormed.Add(ctx, 1)
	}
	s.record(ctx, sessionID, eventstore.Event{
		SessionID: sessionID,
		Type:      eventstore.EventSentenceFinal,
		Payload:   []byte(sentence),
	})
	s.publish(protocol.SubjectSentenceFinal, protocol.SentenceFinal{
		SessionID: sessionID,
		Letters:   letters,
		Sentence:  sentence,
		AudioURL:  audioURL,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Service) record(ctx context.Context, sessionID string, evt eventstore.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.EnsureSession(ctx, sessionID); err != nil {
		s.log.Warn("failed to ensure session row", slog.String("error", err.Error()))
		return
	}
	if err := s.events.AppendEvent(ctx, evt); err != nil {
		s.log.Warn("failed to append event", slog.String("error", err.Error()))
	}
}

func (s *Service) publish(subject string, v any) {
	if err := s.bus.Publish(subject, v); err != nil {
		s.log.Warn("failed to publish event", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
