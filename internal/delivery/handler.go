package delivery

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"live-relay/internal/loadmon"

	"github.com/go-chi/chi/v5"
)

const (
	// QualityLow is suggested to players while the server is under high load.
	QualityLow = "low"

	highLoadCacheFactor = 3
)

// Handler exposes the player-facing HTTP endpoints using go-chi.
type Handler struct {
	svc           *Service
	log           *slog.Logger
	segmentMaxAge time.Duration
}

// NewHandler returns a Handler. segmentMaxAge is the Cache-Control max-age
// for segments under normal load.
func NewHandler(svc *Service, log *slog.Logger, segmentMaxAge time.Duration) *Handler {
	if segmentMaxAge <= 0 {
		segmentMaxAge = 10 * time.Second
	}
	return &Handler{svc: svc, log: log, segmentMaxAge: segmentMaxAge}
}

// Routes registers the delivery endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.GetStatus)
	r.Get("/stream-manifest", h.GetManifest)
	r.Get("/stream-manifest/{quality}/{name}", h.GetPlaylist)
	r.Get("/segment/{quality}/{name}", h.GetSegment)
	r.Get("/metrics", h.GetLoad)
}

// GetStatus handles GET /status. It always answers 200; an unreachable
// upstream is reported as offline.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.loadHints(w)
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}

// GetManifest handles GET /stream-manifest?quality=.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	h.servePlaylist(w, r, r.URL.Query().Get("quality"), "")
}

// GetPlaylist handles GET /stream-manifest/{quality}/{name}, the nested
// playlists a rewritten manifest refers to.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	h.servePlaylist(w, r, chi.URLParam(r, "quality"), chi.URLParam(r, "name"))
}

func (h *Handler) servePlaylist(w http.ResponseWriter, r *http.Request, quality, name string) {
	sample := h.loadHints(w)

	m, err := h.svc.Manifest(r.Context(), quality, name)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidName):
			http.Error(w, "invalid playlist", http.StatusBadRequest)
		default:
			h.log.Warn("manifest unavailable", slog.String("error", err.Error()))
			http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	h.log.Debug("manifest served",
		slog.String("quality", m.Quality),
		slog.String("playlist", m.Name))

	w.Header().Set("Content-Type", playlistContentType)
	if sample.IsHighLoad {
		w.Header().Set("Cache-Control", maxAge(time.Duration(max(m.TargetDuration/2, 1))*time.Second))
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(m.Body)
}

// GetSegment handles GET /segment/{quality}/{name}.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	sample := h.loadHints(w)
	quality := chi.URLParam(r, "quality")
	name := chi.URLParam(r, "name")

	seg, err := h.svc.Segment(r.Context(), quality, name)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidName):
			http.Error(w, "invalid segment name", http.StatusBadRequest)
		default:
			h.log.Warn("segment unavailable",
				slog.String("quality", quality),
				slog.String("segment", name),
				slog.String("error", err.Error()))
			http.Error(w, "segment unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	ttl := h.segmentMaxAge
	if sample.IsHighLoad {
		ttl *= highLoadCacheFactor
	}
	cacheStatus := "MISS"
	if seg.Hit {
		cacheStatus = "HIT"
	}
	w.Header().Set("Content-Type", seg.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(seg.Data)))
	w.Header().Set("Cache-Control", maxAge(ttl))
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	w.Write(seg.Data)
}

// GetLoad handles GET /metrics with the current host load sample.
func (h *Handler) GetLoad(w http.ResponseWriter, r *http.Request) {
	sample := h.svc.Load()
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, sample)
}

// loadHints sets the advisory load headers and returns the sample they
// came from.
func (h *Handler) loadHints(w http.ResponseWriter) loadmon.Sample {
	sample := h.svc.Load()
	if sample.IsHighLoad {
		w.Header().Set("X-Server-Load", "high")
		w.Header().Set("X-Suggested-Quality", QualityLow)
	} else {
		w.Header().Set("X-Server-Load", "normal")
	}
	return sample
}

func maxAge(d time.Duration) string {
	return "public, max-age=" + strconv.Itoa(int(d/time.Second))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
