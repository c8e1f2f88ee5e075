// Package httpapi exposes the revenue engine over HTTP for dashboard and
// bot clients.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/splitpot/revenue"
	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
	"github.com/splitpot/revenue/types"
)

type contextKey string

const identityContextKey contextKey = "identity"

const (
	defaultRecentLimit = 10
	maxStoreAttempts   = 3
)

// Server is the HTTP facade over a revenue Engine.
type Server struct {
	engine   *revenue.Engine
	verifier TokenVerifier
	log      *slog.Logger
	mux      *chi.Mux
	timeout  time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the request logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.log = logger
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.timeout = d
	}
}

// NewServer builds the facade around an engine and a token verifier.
func NewServer(eng *revenue.Engine, verifier TokenVerifier, opts ...ServerOption) *Server {
	s := &Server{
		engine:   eng,
		verifier: verifier,
		log:      slog.Default(),
		mux:      chi.NewRouter(),
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requireRole(RoleOwner, RoleAdmin)).
			Get("/analytics/owner", s.handleOwnerAnalytics)
		r.With(s.requireRole(RoleAdmin)).
			Get("/analytics/admin", s.handleAdminAnalytics)

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(RoleAdmin))
			r.Get("/coupons", s.handleListCoupons)
			r.Post("/coupons/generate", s.handleGenerateCoupon)
			r.Post("/coupons/{id}/expire", s.handleExpireCoupon)
			r.Get("/lifetime-coupons", s.handleListLifetimeCoupons)
			r.Post("/lifetime-coupons/create", s.handleCreateLifetimeCoupon)
		})

		// Redemption is open to any authenticated caller; the bot redeems
		// on behalf of its users.
		r.Post("/coupons/redeem", s.handleRedeemCoupon)
		r.Post("/lifetime-coupons/redeem", s.handleRedeemLifetimeCoupon)
	})
}

// ──────────────────────────────────────────────────
// Middleware
// ──────────────────────────────────────────────────

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		ident, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, *ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		switch {
		case ww.Status() >= 500:
			level = slog.LevelError
		case ww.Status() >= 400:
			level = slog.LevelWarn
		}

		s.log.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
		)
	})
}

func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, err := identityFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			for _, role := range roles {
				if ident.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient role")
		})
	}
}

func identityFromContext(ctx context.Context) (Identity, error) {
	ident, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || ident.Subject == "" {
		return Identity{}, errors.New("missing auth context")
	}
	return ident, nil
}

// ──────────────────────────────────────────────────
// Handlers
// ──────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleOwnerAnalytics(w http.ResponseWriter, r *http.Request) {
	snap, err := withRetry(r.Context(), func() (*analytics.Snapshot, error) {
		return s.engine.Summarize(r.Context(), analytics.ScopeOwner, dateRange(r))
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAdminAnalytics(w http.ResponseWriter, r *http.Request) {
	snap, err := withRetry(r.Context(), func() (*analytics.Snapshot, error) {
		return s.engine.Summarize(r.Context(), analytics.ScopeAdmin, dateRange(r))
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	recent, err := s.engine.RecentTransactions(r.Context(), defaultRecentLimit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*analytics.Snapshot
		RecentTransactions []*entry.Entry `json:"recentTransactions"`
	}{snap, recent})
}

func (s *Server) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.engine.ListCoupons(r.Context(), listOpts(r))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coupons": coupons})
}

func (s *Server) handleGenerateCoupon(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code        string      `json:"code"`
		Amount      types.Money `json:"amount"`
		Description string      `json:"description"`
		ExpiresAt   time.Time   `json:"expiresAt"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := s.engine.Generate(r.Context(), revenue.GenerateInput{
		Code:        in.Code,
		Amount:      in.Amount,
		Description: in.Description,
		ExpiresAt:   in.ExpiresAt,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleExpireCoupon(w http.ResponseWriter, r *http.Request) {
	couponID, err := id.ParseCouponID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}
	if err := s.engine.ExpireCoupon(r.Context(), couponID); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRedeemCoupon(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	credit, err := s.engine.Redeem(r.Context(), in.Code, ident.Subject)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, credit)
}

func (s *Server) handleListLifetimeCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.engine.ListLifetimeCoupons(r.Context(), listOpts(r))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coupons": coupons})
}

func (s *Server) handleCreateLifetimeCoupon(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code           string    `json:"code"`
		Description    string    `json:"description"`
		ExpiresAt      time.Time `json:"expiresAt"`
		MaxRedemptions int       `json:"maxRedemptions"`
		Features       []string  `json:"features"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := s.engine.CreateLifetime(r.Context(), revenue.CreateLifetimeInput{
		Code:           in.Code,
		Description:    in.Description,
		ExpiresAt:      in.ExpiresAt,
		MaxRedemptions: in.MaxRedemptions,
		Features:       in.Features,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleRedeemLifetimeCoupon(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	grant, err := s.engine.RedeemLifetime(r.Context(), in.Code, ident.Subject)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// withRetry re-attempts transient store failures with exponential backoff
// before the handler gives up and serves a 503.
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !revenue.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxStoreAttempts),
	)
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case revenue.IsValidation(err), errors.Is(err, revenue.ErrCouponExpired):
		return http.StatusBadRequest
	case revenue.IsNotFound(err):
		return http.StatusNotFound
	case revenue.IsConflict(err):
		return http.StatusConflict
	case revenue.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func dateRange(r *http.Request) analytics.DateRange {
	var rng analytics.DateRange
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			rng.From = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			rng.To = t
		}
	}
	return rng
}

func listOpts(r *http.Request) coupon.ListOpts {
	q := r.URL.Query()
	opts := coupon.ListOpts{
		UnusedOnly: q.Get("unused") == "1" || q.Get("unused") == "true",
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		opts.Offset = n
	}
	return opts
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": strings.TrimSpace(message)})
}
