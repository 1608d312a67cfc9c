// Package fixture serves the demo pages used to exercise scenarios against a
// real browser: delayed panels, an overlay that swallows pointer clicks, and
// a search backed by a small JSON API.
package fixture

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"resilient-ui/internal/application/port/output"
)

//go:embed pages/*.html
var pages embed.FS

type Company struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

var DefaultCompanies = []Company{
	{Name: "Acme Corp", Country: "de"},
	{Name: "Acme Logistics", Country: "fr"},
	{Name: "Globex", Country: "de"},
	{Name: "Initech", Country: "fr"},
}

type Config struct {
	Addr string
	// SearchDelay slows down /api/search to exercise result waits.
	SearchDelay time.Duration
	Companies   []Company
	// JSONLogs switches request logs from console to JSON output.
	JSONLogs bool
}

type Server struct {
	cfg    Config
	logger output.LoggerPort
	router chi.Router
}

func NewServer(cfg Config, logger output.LoggerPort) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8089"
	}
	if cfg.Companies == nil {
		cfg.Companies = DefaultCompanies
	}
	s := &Server{cfg: cfg, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	requestLog := httplog.NewLogger("fixtures", httplog.Options{
		JSON:    s.cfg.JSONLogs,
		Concise: true,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(requestLog))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/search", http.StatusFound)
	})
	r.Get("/api/search", s.search)
	r.Get("/{page}", s.page)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "page")
	if strings.ContainsAny(name, "./\\") {
		http.NotFound(w, r)
		return
	}
	body, err := pages.ReadFile("pages/" + name + ".html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	if s.cfg.SearchDelay > 0 {
		select {
		case <-time.After(s.cfg.SearchDelay):
		case <-r.Context().Done():
			return
		}
	}

	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	rows := make([]Company, 0, len(s.cfg.Companies))
	for _, c := range s.cfg.Companies {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) {
			rows = append(rows, c)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		s.logger.Warn("Failed to write search response", "error", err)
	}
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
// ready, if non-nil, receives the bound address once listening.
func (s *Server) ListenAndServe(ctx context.Context, ready chan<- string) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	addr := ln.Addr().String()
	s.logger.Info("Fixture server started", "addr", "http://"+addr)
	if ready != nil {
		ready <- addr
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Fixture server stopped")
	return nil
}
