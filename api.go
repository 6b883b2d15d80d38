package httpsim

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/always-cache/httpsim/cookiejar"
	tee "github.com/always-cache/httpsim/pkg/response-writer-tee"
	"github.com/always-cache/httpsim/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxRequestBody limits API request bodies.
const maxRequestBody = 1 << 20

func (s *Simulator) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/request", s.handleRequest)
		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)
		r.Post("/concurrency", s.handleConcurrency)

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.handleCacheStats)
			r.Delete("/", s.handleCacheClear)
			r.Delete("/entry", s.handleCacheInvalidate)
			r.Post("/cleanup", s.handleCacheCleanup)
			r.Get("/revalidate", s.handleCacheRevalidate)
		})

		r.Route("/cookies", func(r chi.Router) {
			r.Get("/", s.handleCookies)
			r.Post("/", s.handleCookiesStore)
			r.Delete("/", s.handleCookiesClear)
			r.Get("/details", s.handleCookieDetails)
			r.Get("/stats", s.handleCookieStats)
			r.Post("/cleanup", s.handleCookieCleanup)
			r.Post("/validate", s.handleCookieValidate)
		})
	})
	return r
}

// logRequests logs every API request once it has been answered.
func (s *Simulator) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := tee.NewResponseRecorder(w)
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.StatusCode()).
			Int("bytes", rec.BytesWritten()).
			Dur("duration", rec.Duration()).
			Msg("Handled API request")
	})
}

func (s *Simulator) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req SimRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.Simulate(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	status := http.StatusOK
	if result.Error != "" {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, result)
}

func (s *Simulator) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"requests": s.History()})
}

func (s *Simulator) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Counters())
}

type concurrencyRequest struct {
	Protocol        string    `json:"protocol"`
	Durations       []float64 `json:"durations"`
	Count           int       `json:"count"`
	Duration        float64   `json:"duration"`
	MaxConnections  int       `json:"maxConnections"`
	ConnectionSetup float64   `json:"connectionSetup"`
}

// maxConcurrencyRequests bounds the size of a simulated page load.
const maxConcurrencyRequests = 1000

func (s *Simulator) handleConcurrency(w http.ResponseWriter, r *http.Request) {
	var req concurrencyRequest
	if !s.decode(w, r, &req) {
		return
	}
	durations := req.Durations
	if len(durations) == 0 && req.Count > 0 {
		if req.Count > maxConcurrencyRequests {
			s.writeError(w, http.StatusBadRequest, errors.New("too many requests"))
			return
		}
		durations = make([]float64, req.Count)
		for i := range durations {
			durations[i] = req.Duration
		}
	}
	if len(durations) == 0 || len(durations) > maxConcurrencyRequests {
		s.writeError(w, http.StatusBadRequest, errors.New("durations or count is required"))
		return
	}
	for _, d := range durations {
		if d < 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("durations must not be negative"))
			return
		}
	}

	if req.Protocol != "" {
		protocol, err := transport.ParseProtocol(req.Protocol)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeJSON(w, http.StatusOK, transport.SimulateConcurrency(transport.ConcurrencyConfig{
			Protocol:        protocol,
			Durations:       durations,
			MaxConnections:  req.MaxConnections,
			ConnectionSetup: req.ConnectionSetup,
		}))
		return
	}
	// without a protocol both are compared
	schedules := make(map[transport.Protocol]transport.Schedule, 2)
	for _, protocol := range []transport.Protocol{transport.HTTP1, transport.HTTP2} {
		schedules[protocol] = transport.SimulateConcurrency(transport.ConcurrencyConfig{
			Protocol:        protocol,
			Durations:       durations,
			MaxConnections:  req.MaxConnections,
			ConnectionSetup: req.ConnectionSetup,
		})
	}
	s.writeJSON(w, http.StatusOK, schedules)
}

func (s *Simulator) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Simulator) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"cleared": s.cache.Clear()})
}

func (s *Simulator) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"invalidated": s.cache.Invalidate(url, r.URL.Query().Get("method")),
	})
}

func (s *Simulator) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": s.cache.Cleanup()})
}

func (s *Simulator) handleCacheRevalidate(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"shouldRevalidate": s.cache.ShouldRevalidate(url, r.URL.Query().Get("method")),
	})
}

func (s *Simulator) handleCookies(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	header, ok := s.cookies.CookieHeader(url)
	res := map[string]any{
		"cookies": s.cookies.Cookies(url),
		"header":  nil,
	}
	if ok {
		res["header"] = header
	}
	s.writeJSON(w, http.StatusOK, res)
}

type storeCookiesRequest struct {
	URL       string   `json:"url"`
	SetCookie []string `json:"setCookie"`
}

func (s *Simulator) handleCookiesStore(w http.ResponseWriter, r *http.Request) {
	var req storeCookiesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.URL == "" || len(req.SetCookie) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("url and setCookie are required"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"domain": cookiejar.DomainOf(req.URL),
		"count":  s.cookies.StoreCookies(req.URL, req.SetCookie...),
	})
}

func (s *Simulator) handleCookiesClear(w http.ResponseWriter, r *http.Request) {
	if domain := r.URL.Query().Get("domain"); domain != "" {
		s.writeJSON(w, http.StatusOK, map[string]bool{"cleared": s.cookies.ClearCookies(domain)})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"cleared": s.cookies.ClearAll()})
}

func (s *Simulator) handleCookieDetails(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cookies": s.cookies.CookieDetails(url)})
}

func (s *Simulator) handleCookieStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cookies.Stats())
}

func (s *Simulator) handleCookieCleanup(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": s.cookies.Cleanup()})
}

type validateCookieRequest struct {
	SetCookie string `json:"setCookie"`
}

func (s *Simulator) handleCookieValidate(w http.ResponseWriter, r *http.Request) {
	var req validateCookieRequest
	if !s.decode(w, r, &req) {
		return
	}
	c := s.cookies.ParseCookie(req.SetCookie)
	if c == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("setCookie is required"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cookie":     c,
		"validation": cookiejar.ValidateCookie(*c),
	})
}

// decode reads a JSON body into v and answers 400 if that fails.
func (s *Simulator) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

func (s *Simulator) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Simulator) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Could not write response body to client")
	}
}
