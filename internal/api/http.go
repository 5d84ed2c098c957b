// Package api serves the customer and admin JSON endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/api/swagger"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/auth"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/billing"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/metrics"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Store        storage.Storage
	Auth         *auth.Service
	Customers    *billing.Customers
	Queries      *billing.Queries
	CookieSecure bool
	Log          *zap.Logger
}

type server struct {
	Deps
}

// poolReporter is implemented by SQL-backed storage.
type poolReporter interface {
	ReportPoolMetrics()
}

// NewMux constructs the HTTP mux, wiring in the billing services, metrics,
// and health endpoints.
func NewMux(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	d.Log = d.Log.Named("api")
	s := &server{Deps: d}

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /readyz", s.instrument("/readyz", s.handleReady))

	mux.Handle("POST /login", s.instrument("/login", s.handleLogin))
	mux.Handle("POST /logout", s.instrument("/logout", s.handleLogout))

	customer := func(path, obj string, h handlerFunc) {
		mux.Handle("GET "+path, s.Auth.Middleware(s.Auth.RequirePermission(obj, "read", s.instrument(path, s.customerOnly(h)))))
	}
	customer("/customer", "bills", s.handleCustomer)
	customer("/customer/unpaid", "bills", s.handleUnpaid)
	customer("/customer/history", "bills", s.handleHistory)
	customer("/customer/payments", "bills", s.handlePayments)
	customer("/customer/predictions", "predictions", s.handlePredictions)

	admin := func(path string, h handlerFunc) {
		mux.Handle("GET "+path, s.Auth.Middleware(s.Auth.RequirePermission("admin", "read", s.instrument(path, h))))
	}
	admin("/admin/customers", s.handleAdminCustomers)
	admin("/admin/bills", s.handleAdminBills)

	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	return countStatus(mux)
}

// handlerFunc is an http handler whose failures are mapped to a status by
// their apperr kind.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *server) instrument(path string, h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.RequestsTotal.WithLabelValues(path).Inc()
		defer func() {
			metrics.RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
		}()

		if err := h(w, r); err != nil {
			code := statusFor(err)
			if code >= http.StatusInternalServerError {
				s.Log.Error("request failed", zap.String("path", path), zap.Error(err))
			}
			writeJSON(w, code, map[string]string{"error": err.Error()})
		}
	})
}

func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrInvalidArgument:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrAlreadyExists:
		return http.StatusConflict
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperr.ErrInsufficientData, apperr.ErrDataQuality:
		return http.StatusUnprocessableEntity
	case apperr.ErrUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// countStatus records every error response, including the 401/403 written by
// the auth middleware and the mux's own 404/405.
func countStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		if sw.code >= http.StatusBadRequest {
			// The mux records the matched route on r; unmatched paths share a label.
			label := r.Pattern
			if label == "" {
				label = "unmatched"
			}
			metrics.RequestErrorsTotal.WithLabelValues(label, strconv.Itoa(sw.code)).Inc()
		}
	})
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) error {
	if err := s.Store.Ping(r.Context()); err != nil {
		s.Log.Warn("readyz: db ping failed", zap.Error(err))
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return nil
	}
	if pr, ok := s.Store.(poolReporter); ok {
		pr.ReportPoolMetrics()
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
	return nil
}

type loginRequest struct {
	NationalID string `json:"national_id"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin accepts a JSON body or a form post.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return fmt.Errorf("decode login: %w: %v", apperr.ErrInvalidArgument, err)
		}
	} else {
		req.NationalID = r.FormValue("national_id")
		req.Password = r.FormValue("password")
	}

	token, sess, err := s.Auth.Login(r.Context(), req.NationalID, req.Password)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Role: sess.Role, ExpiresAt: sess.ExpiresAt})
	return nil
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) error {
	if token := auth.TokenFromRequest(r); token != "" {
		if err := s.Auth.Logout(r.Context(), token); err != nil {
			return err
		}
	}
	http.SetCookie(w, &http.Cookie{Name: auth.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
	return nil
}
