// Package httpapi exposes the users service over HTTP under /api, plus
// /health and /metrics.
package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/gateway"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Users is the service surface served over HTTP.
type Users interface {
	Create(ctx context.Context, p services.UserParams) (*models.Envelope, error)
	Login(ctx context.Context, p services.UserParams) (*models.Envelope, error)
	Me(ctx context.Context) (*models.Envelope, error)
	UpdateMyself(ctx context.Context, p services.UserParams) (*models.Envelope, error)
	List(ctx context.Context, lp services.ListParams) (*models.Page, error)
	Get(ctx context.Context, id string) (*models.PublicUser, error)
	Update(ctx context.Context, id string, p services.UserParams) (*models.PublicUser, error)
	Remove(ctx context.Context, id string) (*models.PublicUser, error)
}

type userBody struct {
	User services.UserParams `json:"user"`
}

type Server struct {
	users    Users
	authz    *gateway.Authorizer
	logger   logging.Logger
	gatherer prometheus.Gatherer
	metrics  *metrics
}

// NewServer builds the HTTP surface. HTTP metrics are registered on reg,
// and /metrics serves whatever reg gathers.
func NewServer(users Users, authz *gateway.Authorizer, reg *prometheus.Registry, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		users:    users,
		authz:    authz,
		logger:   logger.With("module", "http"),
		gatherer: reg,
		metrics:  newMetrics(reg),
	}
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.metrics.middleware)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/users", s.authorize(gateway.AuthOptional, s.create)).Methods(http.MethodPost)
	api.Handle("/users/login", s.authorize(gateway.AuthOptional, s.login)).Methods(http.MethodPost)
	api.Handle("/user", s.authorize(gateway.AuthRequired, s.me)).Methods(http.MethodGet)
	api.Handle("/user", s.authorize(gateway.AuthRequired, s.updateMyself)).Methods(http.MethodPut)
	api.Handle("/users", s.authorize(gateway.AuthOptional, s.list)).Methods(http.MethodGet)
	api.Handle("/users/{id}", s.authorize(gateway.AuthOptional, s.get)).Methods(http.MethodGet)
	api.Handle("/users/{id}", s.authorize(gateway.AuthOptional, s.update)).Methods(http.MethodPut)
	api.Handle("/users/{id}", s.authorize(gateway.AuthOptional, s.remove)).Methods(http.MethodDelete)

	return otelhttp.NewHandler(r, "gophauth")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	body, err := decodeUser(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.users.Create(r.Context(), body.User))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	body, err := decodeUser(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.users.Login(r.Context(), body.User))
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.users.Me(r.Context()))
}

func (s *Server) updateMyself(w http.ResponseWriter, r *http.Request) {
	body, err := decodeUser(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.users.UpdateMyself(r.Context(), body.User))
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fields []common.FieldError
	atoi := func(name string) int {
		raw := q.Get(name)
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, common.FieldError{Field: name, Message: "must be a number"})
		}
		return n
	}

	lp := services.ListParams{Page: atoi("page"), PageSize: atoi("pageSize"), Sort: q.Get("sort")}
	if len(fields) > 0 {
		s.writeError(w, r, common.NewDetailedError(common.ErrValidation, "Parameters validation error!", fields...))
		return
	}

	page, err := s.users.List(r.Context(), lp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, page)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.users.Get(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	body, err := decodeUser(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.users.Update(r.Context(), mux.Vars(r)["id"], body.User))
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.users.Remove(r.Context(), mux.Vars(r)["id"]))
}

// respond writes the result of a service call.
func (s *Server) respond(w http.ResponseWriter, r *http.Request) func(v any, err error) {
	return func(v any, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		_ = writeJSON(w, http.StatusOK, v)
	}
}
