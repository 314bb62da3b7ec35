// Package server exposes the runner over HTTP. Sending a message streams the
// run's events back as newline-delimited JSON on the same response.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/zysilm-ai/open-claude-pilot/runner"
	"github.com/zysilm-ai/open-claude-pilot/session"
	"github.com/zysilm-ai/open-claude-pilot/task"
)

type sendMessage struct {
	Content string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type messageView struct {
	session.Message
	Actions []session.Action `json:"actions"`
}

type messagesResponse struct {
	Messages []messageView `json:"messages"`
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address. Defaults to ":8080".
	Addr string
	// Logger is used for access logs and handler errors. Defaults to a
	// disabled logger.
	Logger zerolog.Logger
	// ReadHeaderTimeout defaults to 10s.
	ReadHeaderTimeout time.Duration
}

// Server serves the chat API.
type Server struct {
	runner *runner.Runner
	logger zerolog.Logger
	server *http.Server
}

// New creates a server for rn.
func New(rn *runner.Runner, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:              ":8080",
		Logger:            zerolog.Nop(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{runner: rn, logger: opts.Logger}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http server starting")

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logMiddleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/messages", s.handleSendMessage)
		r.Get("/messages", s.handleListMessages)
		r.Post("/cancel", s.handleCancel)
		r.Get("/task", s.handleGetTask)
	})

	return r
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var cmd sendMessage
	if err := render.DecodeJSON(r.Body, &cmd); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("cannot parse body")
		renderError(w, r, http.StatusBadRequest, "unable to parse body")
		return
	}
	if strings.TrimSpace(cmd.Content) == "" {
		renderError(w, r, http.StatusBadRequest, "content is required")
		return
	}

	sender := newNDJSONSender(w, r.Context().Done())
	defer sender.close()

	run, err := s.runner.Start(r.Context(), sessionID, cmd.Content, sender)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("session_id", sessionID).Msg("unable to start run")
		if sender.Started() {
			_ = sender.Send(r.Context(), runner.Envelope{Type: runner.EnvelopeError, Content: err.Error()})
			return
		}
		renderError(w, r, http.StatusInternalServerError, "unable to start run")
		return
	}

	select {
	case <-run.Done():
	case <-r.Context().Done():
		// The client went away; the run continues and keeps persisting.
		hlog.FromRequest(r).Debug().Str("session_id", sessionID).Str("message_id", run.MessageID).Msg("client disconnected")
	}
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	store := s.runner.Store()

	msgs, err := store.ListMessages(r.Context(), sessionID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("session_id", sessionID).Msg("unable to list messages")
		renderError(w, r, http.StatusInternalServerError, "unable to list messages")
		return
	}

	resp := messagesResponse{Messages: make([]messageView, 0, len(msgs))}
	for _, m := range msgs {
		actions, err := store.ListActions(r.Context(), m.ID)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("message_id", m.ID).Msg("unable to list actions")
			renderError(w, r, http.StatusInternalServerError, "unable to list actions")
			return
		}
		resp.Messages = append(resp.Messages, messageView{Message: m, Actions: actions})
	}

	render.JSON(w, r, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	cancelled := s.runner.Cancel(sessionID)

	hlog.FromRequest(r).Info().Str("session_id", sessionID).Bool("cancelled", cancelled).Msg("cancel requested")
	render.JSON(w, r, cancelResponse{Cancelled: cancelled})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	t, ok := s.runner.Tasks().Get(sessionID)
	if !ok {
		renderError(w, r, http.StatusNotFound, task.ErrNotFound.Error())
		return
	}
	render.JSON(w, r, t)
}

func (s *Server) logMiddleware() func(http.Handler) http.Handler {
	c := alice.New()
	c = c.Append(hlog.NewHandler(s.logger))
	c = c.Append(hlog.RemoteAddrHandler("ip"))
	c = c.Append(hlog.UserAgentHandler("agent"))
	c = c.Append(hlog.RequestIDHandler("req_id", "Request-Id"))
	c = c.Append(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("verb", r.Method).
			Stringer("url", r.URL).
			Int("size", size).
			Int("status", status).
			Int64("duration", duration.Milliseconds()).
			Msg("REQ")
	}))

	return c.Then
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}
