package server

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/ieee0824/melody-go"
	"github.com/ieee0824/melody-go/errdefs"
	"github.com/ieee0824/melody-go/feature"
	"github.com/ieee0824/melody-go/internal/observe"
	"github.com/ieee0824/melody-go/midifile"
)

type noteJSON struct {
	Onset         float64 `json:"onset"`
	Offset        float64 `json:"offset"`
	Pitch         int     `json:"pitch"`
	Name          string  `json:"name"`
	OnsetBeats    float64 `json:"onset_beats"`
	DurationBeats float64 `json:"duration_beats"`
}

type transcribeResponse struct {
	Notes   []noteJSON `json:"notes"`
	Tempo   float64    `json:"tempo"`
	Tuning  float64    `json:"tuning"`
	HopTime float64    `json:"hop_time"`
	LogProb float64    `json:"log_prob"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Class     string `json:"class"`
	RequestID string `json:"request_id,omitempty"`
}

func newTranscribeResponse(res *melody.Result) transcribeResponse {
	out := transcribeResponse{
		Notes:   make([]noteJSON, len(res.Notes)),
		Tempo:   res.Tempo,
		Tuning:  res.Tuning,
		HopTime: res.HopTime,
		LogProb: res.LogProb,
	}
	for i, n := range res.Notes {
		out.Notes[i] = noteJSON{
			Onset:         n.Onset,
			Offset:        n.Offset,
			Pitch:         n.Pitch,
			Name:          n.Name(),
			OnsetBeats:    n.OnsetBeats,
			DurationBeats: n.DurationBeats,
		}
	}
	return out
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errdefs.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errdefs.ErrInvalidRange),
		errors.Is(err, errdefs.ErrInvalidParameter),
		errors.Is(err, errdefs.ErrDimensionMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	class := errdefs.Class(err)
	lvl := observe.Logger(r.Context()).Warn
	if status >= http.StatusInternalServerError {
		lvl = observe.Logger(r.Context()).Error
	}
	lvl("request failed", "path", r.URL.Path, "status", status, "class", class, "err", err)
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Class:     class,
		RequestID: w.Header().Get(observe.RequestIDHeader),
	})
}

// requestFormat picks YAML for YAML media types and JSON otherwise.
func requestFormat(r *http.Request) feature.Format {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return feature.FormatJSON
	}
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return feature.FormatYAML
	}
	return feature.FormatJSON
}

// transcribe decodes the request body and runs the current transcriber.
// It writes the error response itself and returns nil on failure.
func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) (*melody.Result, *engine) {
	e := s.engine.Load()
	if e == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("no transcriber loaded"))
		return nil, nil
	}

	body := http.MaxBytesReader(w, r.Body, e.maxBody)
	tr, err := feature.Decode(body, requestFormat(r))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, r, status, fmt.Errorf("decode feature track: %w", err))
		return nil, nil
	}

	res, err := e.transcriber.Transcribe(r.Context(), tr)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return nil, nil
	}
	return res, e
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	res, _ := s.transcribe(w, r)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, newTranscribeResponse(res))
}

func (s *Server) handleTranscribeMIDI(w http.ResponseWriter, r *http.Request) {
	res, e := s.transcribe(w, r)
	if res == nil {
		return
	}
	var buf bytes.Buffer
	if err := midifile.Write(&buf, res.Notes, res.Tempo, e.midi); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", `attachment; filename="melody.mid"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
