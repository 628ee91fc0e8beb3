package httpapi

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/hamed0406/turnprobe/internal/httpapi/middleware"
)

// MetricsPath is the only route served.
const MetricsPath = "/metrics"

// maxSnapshotSize guards against reading something that is clearly not a
// snapshot document.
const maxSnapshotSize = 64 << 10

const allowed = "GET, HEAD, OPTIONS"

var contentType = string(expfmt.NewFormat(expfmt.TypeOpenMetrics))

type Options struct {
	Tokens     []string // bearer tokens accepted on /metrics; empty disables auth
	RatePerMin int      // per-client scrape limit; 0 disables
	Burst      int
}

// Server serves whatever snapshot is on disk at request time. It never
// talks to the prober; the file is the only shared state.
type Server struct {
	Logger       *zap.Logger
	SnapshotPath string
	opts         Options
}

func NewServer(l *zap.Logger, snapshotPath string, opts Options) *Server {
	return &Server{Logger: l, SnapshotPath: snapshotPath, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CanonicalPath)
	r.Use(chimw.Recoverer)
	// Preflights fall through to the router so unknown paths still 404.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodGet, http.MethodHead},
		AllowedHeaders:     []string{"Authorization"},
		OptionsPassthrough: true,
	}))
	r.Use(middleware.RateLimit(s.opts.RatePerMin, s.opts.Burst))

	r.Options(MetricsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allowed)
		w.WriteHeader(http.StatusNoContent)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(s.opts.Tokens))
		r.Get(MetricsPath, s.handleMetrics)
		r.Head(MetricsPath, s.handleMetrics)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allowed)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return r
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.SnapshotPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.Logger.Warn("snapshot_read_error", zap.Error(err))
		}
		http.Error(w, "no snapshot available", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	// Stat and read the same open file; a concurrent rename swaps the path,
	// not this inode.
	st, err := f.Stat()
	if err != nil {
		s.Logger.Warn("snapshot_stat_error", zap.Error(err))
		http.Error(w, "snapshot unreadable", http.StatusInternalServerError)
		return
	}
	body, err := io.ReadAll(io.LimitReader(f, maxSnapshotSize))
	if err != nil {
		s.Logger.Warn("snapshot_read_error", zap.Error(err))
		http.Error(w, "snapshot unreadable", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Last-Modified", st.ModTime().UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}
