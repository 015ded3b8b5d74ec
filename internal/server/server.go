// Package server exposes the purification engine over HTTP: POST /purify
// for HTML, POST /render for markdown that is rendered and then purified,
// and GET /healthz.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/air-gapped/purist/internal/config"
	"github.com/air-gapped/purist/internal/dom"
	"github.com/air-gapped/purist/internal/logging"
	"github.com/air-gapped/purist/internal/purify"
	"github.com/air-gapped/purist/internal/render"
)

// Server is the purist HTTP server.
type Server struct {
	cfg      *config.Config
	version  string
	md       *render.MarkdownRenderer
	standard *purify.Purifier
	email    *purify.Purifier
	mux      *http.ServeMux
}

// New creates a purist server with all dependencies.
func New(cfg *config.Config, version string) *Server {
	s := &Server{
		cfg:      cfg,
		version:  version,
		md:       render.NewMarkdownRenderer(),
		standard: purify.New(dom.Doc{}),
		email:    purify.New(dom.Doc{Email: true}),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("POST /purify", s.handlePurify)
	s.mux.HandleFunc("POST /render", s.handleRender)
}

// Handler returns the server's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.loggingMiddleware(h)
	return h
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(200)
	w.Write([]byte("OK"))
}

func (s *Server) handlePurify(w http.ResponseWriter, r *http.Request) {
	format, p, ok := s.purifierFor(w, r)
	if !ok {
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	pre := r.URL.Query().Get("pre")
	switch pre {
	case "", "bluemonday":
	default:
		http.Error(w, "invalid pre: must be bluemonday", http.StatusBadRequest)
		return
	}

	profile := r.URL.Query().Get("profile")
	diff := r.URL.Query().Get("diff") == "1"
	if diff && (pre != "" || profile != "") {
		http.Error(w, "diff=1 cannot be combined with pre or profile", http.StatusBadRequest)
		return
	}

	start := time.Now()
	var out string
	var err error
	switch profile {
	case "":
		switch {
		case diff:
			out, err = p.SanitizeForDiff(string(body), keyGenerator())
		case pre == "bluemonday":
			out, err = p.SanitizeWithPrepass(string(body))
		default:
			out, err = p.Sanitize(string(body))
		}
	case "triple":
		out = purify.SanitizeTripleMustache(string(body))
	default:
		http.Error(w, "invalid profile: must be triple", http.StatusBadRequest)
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("purify failed", "error", err)
		http.Error(w, "purify failed", http.StatusInternalServerError)
		return
	}

	s.writeHTML(w, format, time.Since(start), out)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format, p, ok := s.purifierFor(w, r)
	if !ok {
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	start := time.Now()
	rendered, err := s.md.Render(body)
	if err != nil {
		logging.FromContext(r.Context()).Error("render failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	out, err := p.Sanitize(string(rendered))
	if err != nil {
		logging.FromContext(r.Context()).Error("purify failed", "error", err)
		http.Error(w, "purify failed", http.StatusInternalServerError)
		return
	}

	s.writeHTML(w, format, time.Since(start), out)
}

// purifierFor resolves the format query parameter (falling back to the
// configured default) to one of the two fixed-mode purifiers. On an invalid
// value it writes a 400 and reports !ok.
func (s *Server) purifierFor(w http.ResponseWriter, r *http.Request) (string, *purify.Purifier, bool) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = s.cfg.DefaultFormat
	}
	switch format {
	case "standard":
		return format, s.standard, true
	case "email":
		return format, s.email, true
	default:
		http.Error(w, "invalid format: must be standard or email", http.StatusBadRequest)
		return "", nil, false
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "read body", http.StatusBadRequest)
		}
		return nil, false
	}
	return body, true
}

func (s *Server) writeHTML(w http.ResponseWriter, format string, purifyTime time.Duration, out string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Purist-Format", format)
	w.Header().Set("X-Purist-Purify-Ms", strconv.FormatInt(purifyTime.Milliseconds(), 10))
	w.Header().Set("X-Purist-Version", s.version)
	w.Write([]byte(out))
}

// keyGenerator returns a per-request diff key generator. Keys only need to
// be unique within one response tree.
func keyGenerator() func() string {
	seed := strconv.FormatInt(time.Now().UnixNano(), 36)
	var n int
	return func() string {
		n++
		return seed + "-" + strconv.Itoa(n)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &logging.ByteCountingWriter{ResponseWriter: w}
		r = r.WithContext(logging.WithLogger(r.Context(), slog.Default()))
		next.ServeHTTP(wrapped, r)

		if wrapped.StatusCode == 0 {
			wrapped.StatusCode = 200
		}

		logging.LogRequest(slog.Default(), logging.RequestFields{
			Method:   r.Method,
			Path:     r.URL.Path,
			Format:   wrapped.Header().Get("X-Purist-Format"),
			Status:   wrapped.StatusCode,
			PurifyMs: parseHeaderInt64(wrapped.Header().Get("X-Purist-Purify-Ms")),
			TotalMs:  time.Since(start).Milliseconds(),
			Bytes:    wrapped.Bytes,
		})
	})
}

func parseHeaderInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
