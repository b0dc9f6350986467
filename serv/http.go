package serv

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dosco/docfind/conf"
	"github.com/dosco/docfind/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-http-utils/headers"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/spf13/cast"
)

const (
	healthRoute = "/health"
	apiRoute    = "/api/v1"

	defaultMaxBodySize = 1 << 20
)

var errProduction = errors.New("ad-hoc filters are disabled in production")

type response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handler returns the HTTP handler of the service
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.middleware)
	}

	r.Get(healthRoute, s.healthHandler)

	r.Route(apiRoute, func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Post("/find", s.findHandler)
		r.Get("/filters", s.filterNamesHandler)
		r.Get("/filters/{name}", s.savedFilterHandler)
		r.Post("/filters/{name}", s.savedFilterHandler)
	})

	var h http.Handler = r

	if len(s.conf.AllowedOrigins) != 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   s.conf.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{headers.ContentType, headers.Authorization},
			AllowCredentials: true,
			Debug:            s.conf.DebugCORS,
		}).Handler(h)
	}

	return gzhttp.GzipHandler(h)
}

func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Ping(r.Context()); err != nil {
		s.log.Errorf("health: %s", err)
		s.writeJSON(w, http.StatusServiceUnavailable, response{Error: "store unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, response{Data: "ok"})
}

// findHandler runs a filter sent in the request body
func (s *Service) findHandler(w http.ResponseWriter, r *http.Request) {
	if s.conf.Production {
		s.writeError(w, http.StatusForbidden, errProduction)
		return
	}

	var f core.Filter
	if err := s.decodeBody(w, r, &f); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	docs, err := s.df.Find(r.Context(), &f)
	if err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, response{Data: nonNil(docs)})
}

func (s *Service) filterNamesHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.filters.Names()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, response{Data: names})
}

// savedFilterHandler runs a saved filter. Overrides come from a JSON body
// or from the where, skip and limit query parameters.
func (s *Service) savedFilterHandler(w http.ResponseWriter, r *http.Request) {
	var o conf.Overrides
	var err error

	if r.Method == http.MethodPost && r.ContentLength != 0 {
		err = s.decodeBody(w, r, &o)
	} else {
		o, err = queryOverrides(r)
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	docs, err := s.FindByName(r.Context(), chi.URLParam(r, "name"), o)
	if err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, response{Data: nonNil(docs)})
}

func queryOverrides(r *http.Request) (o conf.Overrides, err error) {
	q := r.URL.Query()

	if v := q.Get("where"); v != "" {
		if err = json.Unmarshal([]byte(v), &o.Where); err != nil {
			return o, fmt.Errorf("where: %w", err)
		}
	}
	if o.Skip, err = int64Param(q.Get("skip")); err != nil {
		return o, fmt.Errorf("skip: %w", err)
	}
	if o.Limit, err = int64Param(q.Get("limit")); err != nil {
		return o, fmt.Errorf("limit: %w", err)
	}
	return o, nil
}

func int64Param(v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Service) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	limit := s.conf.MaxBodySize
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// errorStatus maps engine and filter list errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, conf.ErrUnknownFilter):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidPath),
		errors.Is(err, core.ErrEmptyCollection),
		errors.Is(err, core.ErrMaxDepth):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Errorf("request failed: %s", err)
	} else {
		s.log.Debugf("request rejected (%d): %s", status, err)
	}
	s.writeJSON(w, status, response{Error: err.Error()})
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v response) {
	w.Header().Set(headers.ContentType, "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnf("write response: %s", err)
	}
}

func nonNil(docs []core.Document) []core.Document {
	if docs == nil {
		return []core.Document{}
	}
	return docs
}
