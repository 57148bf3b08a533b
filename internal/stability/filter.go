package stability

import (
	"strings"
	"unicode/utf8"

	"github.com/Vijayrathan/asl-gestr/internal/config"
	"github.com/Vijayrathan/asl-gestr/internal/session"
)

// Reason classifies why a frame did not commit a letter. These are expected
// outcomes, not errors.
type Reason string

const (
	ReasonLowConfidence         Reason = "low confidence"
	ReasonInvalidLabel          Reason = "invalid label"
	ReasonInsufficientStability Reason = "insufficient stability"
	ReasonUnstable              Reason = "unstable"
)

// Outcome is the verdict for a single classified frame. Text and Letters
// always reflect the session's current accumulated state, whatever the
// verdict was.
type Outcome struct {
	Label          string
	Confidence     float64
	Accepted       bool
	AcceptedLetter string
	Reason         Reason
	WindowSize     int
	WindowRequired int
	// Committed is true only when a letter was actually appended. A stable
	// window that merely re-confirms the last committed letter is Accepted
	// but not Committed.
	Committed bool
	Text      string
	Letters   []string
}

// Filter turns the noisy per-frame classification stream into committed
// letters: it gates on confidence, label validity and window stability, and
// suppresses re-confirmation of the letter committed last.
type Filter struct {
	minConfidence float64
	threshold     int
	alphabet      map[rune]struct{}
}

func New(cfg config.ClassifierConfig) *Filter {
	alphabet := make(map[rune]struct{}, len(cfg.Alphabet))
	for _, r := range strings.ToUpper(cfg.Alphabet) {
		alphabet[r] = struct{}{}
	}
	return &Filter{
		minConfidence: cfg.MinConfidence,
		threshold:     cfg.StabilityThreshold,
		alphabet:      alphabet,
	}
}

// Observe feeds one (label, confidence) pair into the session's state machine
// and returns the verdict. The session mutation runs under the store's
// per-key lock.
func (f *Filter) Observe(store *session.Store, sessionID, rawLabel string, confidence float64) Outcome {
	out := Outcome{
		Label:          rawLabel,
		Confidence:     confidence,
		WindowRequired: f.threshold,
	}

	store.Update(sessionID, func(s *session.Session) {
		defer func() {
			out.Text = s.Text()
			out.Letters = s.Letters()
		}()

		out.WindowSize = s.Window().Len()

		if confidence < f.minConfidence {
			out.Reason = ReasonLowConfidence
			return
		}

		label, ok := f.normalize(rawLabel)
		if !ok {
			out.Reason = ReasonInvalidLabel
			return
		}

		s.Window().Push(label)
		out.WindowSize = s.Window().Len()

		if s.Window().Len() < f.threshold {
			out.Reason = ReasonInsufficientStability
			return
		}

		stable, uniform := s.Window().Uniform()
		if !uniform {
			// Keep the window: a new consistent run can still form as
			// mismatched entries age out.
			out.Reason = ReasonUnstable
			return
		}

		if last, has := s.LastLetter(); has && last == stable {
			// Re-confirmation of the letter already committed last: accepted,
			// nothing appended. The window is cleared so the next commit
			// requires another full stable run.
			s.Window().Reset()
			s.Touch()
			out.Accepted = true
			out.AcceptedLetter = stable
			out.WindowSize = 0
			return
		}

		s.Append(stable)
		out.Accepted = true
		out.AcceptedLetter = stable
		out.Committed = true
		out.WindowSize = 0
	})

	return out
}

// normalize trims and upper-cases the raw label and requires it to be exactly
// one symbol from the configured alphabet.
func (f *Filter) normalize(raw string) (string, bool) {
	label := strings.ToUpper(strings.TrimSpace(raw))
	if utf8.RuneCountInString(label) != 1 {
		return "", false
	}
	r, _ := utf8.DecodeRuneInString(label)
	if _, ok := f.alphabet[r]; !ok {
		return "", false
	}
	return label, true
}
