package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/domain/ports/repository"
	"telegram-yt-relay/internal/infra/metrics"
	"telegram-yt-relay/internal/infra/scheduler"
	"telegram-yt-relay/internal/ytlink"
)

const requestTimeout = 10 * time.Second

// TaskLister exposes the scheduler snapshot.
type TaskLister interface {
	Tasks() []scheduler.Entry
}

type Server struct {
	port   int
	tasks  TaskLister
	ledger repository.ProcessingLedger
	auth   *Authenticator
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(port int, tasks TaskLister, ledger repository.ProcessingLedger, auth *Authenticator, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "admin_api").Logger()
	return &Server{port: port, tasks: tasks, ledger: ledger, auth: auth, log: &l}
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(requestTimeout))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Require())
		r.Get("/tasks", s.handleTasks)
		r.Get("/ledger/{chat}/{video}", s.handleLedger)
	})
	return r
}

// Start blocks until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", s.port).Msg("admin api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type taskView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	State     string    `json:"state"`
	UserID    int64     `json:"user_id"`
	ChatID    int64     `json:"chat_id"`
	URL       string    `json:"url"`
	VideoID   string    `json:"video_id"`
	Language  string    `json:"language,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	entries := s.tasks.Tasks()
	out := make([]taskView, 0, len(entries))
	for _, e := range entries {
		state := "queued"
		if e.Running {
			state = "running"
		}
		m := e.Meta
		out = append(out, taskView{
			ID:        m.ID,
			Kind:      string(m.Kind),
			State:     state,
			UserID:    m.UserID,
			ChatID:    m.ChatID,
			URL:       m.URL,
			VideoID:   m.VideoID,
			Language:  m.Language,
			Title:     m.Title,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "tasks": out})
}

type ledgerView struct {
	ChatID    int64     `json:"chat_id"`
	VideoID   string    `json:"video_id"`
	Language  string    `json:"language,omitempty"`
	MessageID int       `json:"message_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// handleLedger looks up a download row, or a transcript row when ?lang= is set.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chat"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	video := chi.URLParam(r, "video")
	if !ytlink.IsVideoID(video) {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidURL.Error())
		return
	}
	key := model.DownloadKey(chatID, video)
	if lang := r.URL.Query().Get("lang"); lang != "" {
		key = model.TranscriptKey(chatID, video, lang)
	}

	entry, err := s.ledger.Get(r.Context(), key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		s.log.Error().Err(err).Str("key", key.String()).Msg("ledger lookup")
		writeError(w, http.StatusInternalServerError, "ledger lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, ledgerView{
		ChatID:    entry.Key.ChatID,
		VideoID:   entry.Key.VideoID,
		Language:  entry.Key.Language,
		MessageID: entry.MessageID,
		Status:    string(entry.Status),
		UpdatedAt: entry.UpdatedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
