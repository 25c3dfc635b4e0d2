package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"statementvault/internal/statement"
	"statementvault/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const accessTokenCookieName = "statementvault_access_token"

var decoder = form.NewDecoder()

// CustomerAccounts is the slice of the customer repository the auth handlers
// need. internal/store.CustomerRepository satisfies it.
type CustomerAccounts interface {
	CustomerByEmail(ctx context.Context, email string) (*types.Customer, error)
	Create(ctx context.Context, customer *types.Customer) error
}

type Service struct {
	logger    *logrus.Logger
	config    *types.Config
	core      *statement.Service
	customers CustomerAccounts

	cookie  *securecookie.SecureCookie
	signKey jwk.Key

	jwksCache *jwk.Cache
	jwksURL   string

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	core *statement.Service,
	customers CustomerAccounts,
	jwkCache *jwk.Cache,
	jwksURL string,
) (*Service, error) {
	mux := flow.New()

	hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
	if err != nil {
		return nil, fmt.Errorf("decode cookie hash key: %w", err)
	}
	blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
	if err != nil {
		return nil, fmt.Errorf("decode cookie block key: %w", err)
	}

	s := &Service{
		logger:    logger,
		config:    config,
		core:      core,
		customers: customers,
		cookie:    securecookie.New(hashKey, blockKey),

		jwksCache: jwkCache,
		jwksURL:   jwksURL,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	if config.JWTSecret != "" {
		key, err := jwk.Import([]byte(config.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("import jwt secret: %w", err)
		}
		s.signKey = key
	}

	s.buildRouter(mux)

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.LoggingMiddleware)
	r.Use(s.MetricsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	r.Handle("/metrics", promhttp.Handler(), http.MethodGet)

	r.HandleFunc("/api/auth/register", s.handleRegister, http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin, http.MethodPost)

	// Redemption is authenticated by the token itself, not by a session.
	r.HandleFunc("/api/statements/download/:token", s.handleDownload, http.MethodGet)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/api/statements", s.handleListStatements, http.MethodGet)
		r.HandleFunc("/api/statements/upload", s.handleUpload, http.MethodPost)
		r.HandleFunc("/api/statements/:statementID/download-link", s.handleIssueLink, http.MethodPost)
		r.HandleFunc("/api/statements/:statementID", s.handleDeleteStatement, http.MethodDelete)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) customerIDFromContext(ctx context.Context) (string, error) {
	customerID, ok := ctx.Value(contextKeyCustomerID).(string)
	if !ok {
		return "", fmt.Errorf("customer id not found in context")
	}
	return customerID, nil
}
