package protocol

import "time"

// FrameClassified is published for every classified frame, accepted or not.
type FrameClassified struct {
	SessionID      string    `json:"session_id"`
	Label          string    `json:"label"`
	Confidence     float64   `json:"confidence"`
	Accepted       bool      `json:"accepted"`
	AcceptedLetter string    `json:"accepted_letter,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// LetterCommitted is published when a letter is appended to a session.
type LetterCommitted struct {
	SessionID string    `json:"session_id"`
	Letter    string    `json:"letter"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionCleared is published when a session is discarded.
type SessionCleared struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SentenceFinal is published after a session's letters were handed off to
// sentence formation.
type SentenceFinal struct {
	SessionID string    `json:"session_id"`
	Letters   string    `json:"letters"`
	Sentence  string    `json:"sentence"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectFrameClassified = "gestr.frame.classified"
	SubjectLetterCommitted = "gestr.letter.committed"
	SubjectSessionCleared  = "gestr.session.cleared"
	SubjectSentenceFinal   = "gestr.sentence.final"
)
