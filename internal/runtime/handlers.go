package runtime

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Vijayrathan/asl-gestr/internal/worker"
)

type classifyRequest struct {
	SessionID string `json:"session_id"`
	Image     string `json:"image"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type sentenceResponse struct {
	Letters  string `json:"letters"`
	Sentence string `json:"sentence"`
	AudioURL string `json:"audio_url,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (r *Runtime) handleClassify(w http.ResponseWriter, req *http.Request) {
	var body classifyRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if body.SessionID == "" || body.Image == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id and image are required"})
		return
	}
	image, err := decodeImage(body.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "image must be base64-encoded"})
		return
	}

	result, err := r.service.ClassifyFrame(req.Context(), body.SessionID, image)
	if err != nil {
		switch {
		case errors.Is(err, worker.ErrUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		case errors.Is(err, worker.ErrTimeout):
			writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Runtime) handleSentence(w http.ResponseWriter, req *http.Request) {
	var body sessionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}
	if r.sentences == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "sentence formation is disabled"})
		return
	}

	letters, ok := r.service.TakeAccumulatedText(req.Context(), body.SessionID)
	if !ok || letters == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no letters accumulated for session"})
		return
	}

	formed, err := r.sentences.Sentence(req.Context(), letters)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	resp := sentenceResponse{Letters: letters, Sentence: formed}
	if r.speech != nil {
		if url, err := r.renderAudio(req, formed); err != nil {
			// The sentence already formed; audio failure is reported in-band.
			r.logger.Warn("speech synthesis failed", slog.String("error", err.Error()))
		} else {
			resp.AudioURL = url
		}
	}

	r.service.RecordSentence(req.Context(), body.SessionID, letters, formed, resp.AudioURL)
	writeJSON(w, http.StatusOK, resp)
}

func (r *Runtime) handleClear(w http.ResponseWriter, req *http.Request) {
	var body sessionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}
	r.service.ClearSession(req.Context(), body.SessionID)
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (r *Runtime) renderAudio(req *http.Request, text string) (string, error) {
	wav, err := r.speech.Synthesize(req.Context(), text, r.cfg.Speech.Voice)
	if err != nil {
		return "", err
	}
	name := uuid.NewString() + ".wav"
	if err := os.WriteFile(filepath.Join(r.cfg.Speech.OutputDir, name), wav, 0o644); err != nil {
		return "", err
	}
	return "/audio/" + name, nil
}

// decodeImage accepts plain base64 or a browser data URL.
func decodeImage(payload string) ([]byte, error) {
	if idx := strings.IndexByte(payload, ','); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	return base64.StdEncoding.DecodeString(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
