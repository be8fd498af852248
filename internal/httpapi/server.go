package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"library_desk/internal/pageconfig"
	"library_desk/internal/service"
	"library_desk/internal/view"
	"library_desk/internal/workflow"
)

// maxConfigBody caps the page snippet posted when a view is created.
const maxConfigBody = 1 << 20

type Server struct {
	views   *Registry
	render  *view.Renderer
	origins []string
	// publicURL prefixes the URLs fragments post back to; host pages are
	// served by the backend, not by this service.
	publicURL string
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

type viewKey struct{}

func New(views *Registry, render *view.Renderer, origins []string, publicURL string) *Server {
	return &Server{
		views:     views,
		render:    render,
		origins:   origins,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", "Authorization",
			"HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger", "HX-Trigger-Name",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/health", s.handleHealth)

	r.Route("/borrow", func(r chi.Router) {
		r.Post("/views", s.handleCreate(KindBorrow))
		r.Route("/{viewID}", func(r chi.Router) {
			r.Use(s.withView(KindBorrow))
			r.Get("/", s.borrowPanel)
			r.Delete("/", s.handleDrop)
			r.Get("/readers", s.borrowReaders)
			r.Post("/reader", s.borrowSelectReader)
			r.Delete("/reader", s.borrowClearReader)
			r.Get("/books", s.borrowBooks)
			r.Post("/books/{bookID}/toggle", s.borrowToggleBook)
			r.Post("/date", s.borrowDate)
			r.Get("/borrowing", s.borrowingList)
			r.Get("/borrowing/current", s.borrowingCurrent)
			r.Get("/borrowing/{readerID}", s.borrowDetail)
			r.Delete("/detail", s.borrowCloseDetail)
			r.Get("/history", s.borrowHistory)
			r.Post("/tabs/{tab}", s.borrowTab)
		})
	})

	r.Route("/return", func(r chi.Router) {
		r.Post("/views", s.handleCreate(KindReturn))
		r.Route("/{viewID}", func(r chi.Router) {
			r.Use(s.withView(KindReturn))
			r.Get("/", s.returnPanel)
			r.Delete("/", s.handleDrop)
			r.Get("/readers", s.returnReaders)
			r.Post("/reader", s.returnSelectReader)
			r.Post("/checked", s.returnChecked)
			r.Post("/date", s.returnDate)
			r.Get("/books", s.returnBooks)
			r.Get("/history", s.returnHistory)
			r.Post("/tabs/{tab}", s.returnTab)
		})
	})

	return r
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		// The query string carries search text; only the path is logged.
		log.Printf("http %s %s -> %d in %s req=%s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "views": s.views.Len()})
}

// handleCreate opens a page view. The body is the config element (or the
// whole page) as HTML, its data attributes as a JSON object, or the same
// attributes form-encoded. HTMX callers get the panel, others the id.
func (s *Server) handleCreate(kind string) http.HandlerFunc {
	elementID := pageconfig.BorrowElementID
	if kind == KindReturn {
		elementID = pageconfig.ReturnElementID
	}
	return func(w http.ResponseWriter, r *http.Request) {
		attrs, err := readAttrs(r, elementID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		v, err := s.views.Create(r.Context(), kind, attrs)
		if errors.Is(err, ErrInvalidConfig) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		v.touch(time.Now(), r.Header)
		log.Printf("views: opened %s view %s", kind, v.id)

		if r.Header.Get("HX-Request") == "" {
			writeJSON(w, http.StatusCreated, map[string]string{"view_id": v.id, "base": s.publicURL + v.base()})
			return
		}
		ctx := service.WithForwarded(r.Context(), r.Header)
		if kind == KindBorrow {
			s.writeFragments(w, v, view.Main(view.BorrowPanel, s.buildBorrowPanel(ctx, v)))
			return
		}
		s.writeFragments(w, v, view.Main(view.ReturnPanel, s.buildReturnPanel(ctx, v)))
	}
}

func readAttrs(r *http.Request, elementID string) (pageconfig.Attrs, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody))
	if err != nil {
		return nil, errors.New("unreadable body")
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var raw map[string]string
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, errors.New("invalid json")
		}
		return normalizeAttrs(raw), nil
	case "application/x-www-form-urlencoded":
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form")
		}
		raw := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			raw[k] = r.PostForm.Get(k)
		}
		return normalizeAttrs(raw), nil
	default:
		return pageconfig.FromHTML(bytes.NewReader(body), elementID)
	}
}

func normalizeAttrs(raw map[string]string) pageconfig.Attrs {
	attrs := make(pageconfig.Attrs, len(raw))
	for k, v := range raw {
		attrs[strings.TrimPrefix(strings.ToLower(k), "data-")] = v
	}
	return attrs
}

// withView resolves {viewID}, forwards the browser's session headers to
// backend calls and snapshots the view after the handler ran.
func (s *Server) withView(kind string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, err := s.views.Get(r.Context(), kind, chi.URLParam(r, "viewID"))
			if errors.Is(err, ErrUnknownView) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown view"})
				return
			}
			if err != nil {
				log.Printf("views: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "view store unavailable"})
				return
			}

			v.touch(time.Now(), r.Header)
			ctx := service.WithForwarded(r.Context(), r.Header)
			ctx = context.WithValue(ctx, viewKey{}, v)
			next.ServeHTTP(w, r.WithContext(ctx))

			s.views.Save(context.WithoutCancel(r.Context()), v)
		})
	}
}

func viewFrom(r *http.Request) *View {
	v, _ := r.Context().Value(viewKey{}).(*View)
	return v
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	s.views.Drop(r.Context(), v.id)
	log.Printf("views: closed %s view %s", v.kind, v.id)
	w.WriteHeader(http.StatusNoContent)
}

// writeFragments renders fragments for v. A render failure is a bug in a
// template; the browser gets a 500 and nothing partial.
func (s *Server) writeFragments(w http.ResponseWriter, v *View, frags ...view.Fragment) {
	var buf bytes.Buffer
	if err := s.render.Render(&buf, s.publicURL+v.base(), frags...); err != nil {
		log.Printf("render: %v", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// stale answers a superseded request: HTMX leaves the page as it is on 204.
func stale(w http.ResponseWriter, err error) bool {
	if errors.Is(err, workflow.ErrStale) {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": name + " is invalid"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
