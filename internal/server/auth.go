package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"statementvault/pkg/types"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost       = 12
	sessionLifetime  = 24 * time.Hour
	minPasswordChars = 8
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody("malformed request body"))
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		s.respondJSON(w, http.StatusBadRequest, errorBody("a valid email is required"))
		return
	case len(req.Password) < minPasswordChars:
		s.respondJSON(w, http.StatusBadRequest, errorBody("password must be at least 8 characters"))
		return
	}

	if _, err := s.customers.CustomerByEmail(ctx, req.Email); err == nil {
		s.respondJSON(w, http.StatusConflict, errorBody("email already registered"))
		return
	} else if !errors.Is(err, types.ErrCustomerNotFound) {
		s.logger.WithError(err).Error("failed to check existing customer")
		s.respondJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		s.logger.WithError(err).Error("failed to hash password")
		s.respondJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
		return
	}

	customer := &types.Customer{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Active:       true,
	}

	if err := s.customers.Create(ctx, customer); err != nil {
		s.logger.WithError(err).Error("failed to create customer")
		s.respondJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
		return
	}

	s.logger.WithField("customer_id", customer.ID).Info("customer registered")

	s.issueSession(w, customer, http.StatusCreated)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody("malformed request body"))
		return
	}

	customer, err := s.customers.CustomerByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		// Same response for unknown email and wrong password.
		s.respondJSON(w, http.StatusUnauthorized, errorBody("invalid credentials"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(req.Password)); err != nil {
		s.respondJSON(w, http.StatusUnauthorized, errorBody("invalid credentials"))
		return
	}

	if !customer.Active {
		s.respondJSON(w, http.StatusForbidden, errorBody(types.ErrCustomerInactive.Error()))
		return
	}

	s.logger.WithField("customer_id", customer.ID).Info("customer logged in")

	s.issueSession(w, customer, http.StatusOK)
}

// issueSession signs an access token for the customer, sets it in the
// encrypted session cookie, and writes the auth response.
func (s *Service) issueSession(w http.ResponseWriter, customer *types.Customer, status int) {
	signed, err := s.signAccessToken(customer)
	if err != nil {
		s.logger.WithError(err).Error("failed to sign access token")
		s.respondJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
		return
	}

	encryptedToken, err := s.cookie.Encode(accessTokenCookieName, signed)
	if err != nil {
		s.logger.WithError(err).Error("failed to encrypt access token")
		s.respondJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookieName,
		Value:    encryptedToken,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionLifetime.Seconds()),
		Path:     "/",
	})

	resp := types.AuthResponse{
		Token:     signed,
		ExpiresIn: int(sessionLifetime.Seconds()),
	}
	resp.Customer.ID = customer.ID
	resp.Customer.Email = customer.Email
	resp.Customer.FullName = customer.FullName

	s.respondJSON(w, status, resp)
}

func (s *Service) signAccessToken(customer *types.Customer) (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		Subject(customer.ID).
		Claim("email", customer.Email).
		IssuedAt(now).
		Expiration(now.Add(sessionLifetime)).
		Build()
	if err != nil {
		return "", err
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), s.signKey))
	if err != nil {
		return "", err
	}

	return string(signed), nil
}
