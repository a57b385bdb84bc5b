// Package api provides the HTTP surface of the support chatbot: the Twilio
// inbound webhook, conversation inspection, and the health check.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lacomiqueria/chatbot/internal/store"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Opts holds configuration for the API server.
type Opts struct {
	// Addr is the listen address.
	Addr string
	// TwilioWebhook handles POST /webhook/twilio when Twilio is the active
	// messaging channel. Nil disables the endpoint.
	TwilioWebhook http.HandlerFunc
	// HistoryWindow bounds how many turns the conversation endpoint returns
	// by default.
	HistoryWindow int
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTwilioWebhook enables the Twilio inbound webhook endpoint.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.TwilioWebhook = h }
}

// WithHistoryWindow sets the default turn count for the conversation
// endpoint.
func WithHistoryWindow(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.HistoryWindow = n
		}
	}
}

// Server is the HTTP server for the chatbot's operational endpoints.
type Server struct {
	st            store.Store
	httpServer    *http.Server
	twilioWebhook http.HandlerFunc
	historyWindow int
}

// NewServer creates a Server over the given store.
func NewServer(st store.Store, opts ...Option) *Server {
	cfg := Opts{
		Addr:          DefaultAddr,
		HistoryWindow: 50,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		st:            st,
		twilioWebhook: cfg.TwilioWebhook,
		historyWindow: cfg.HistoryWindow,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/twilio", s.twilioWebhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/conversations/", s.conversationTurnsHandler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}
