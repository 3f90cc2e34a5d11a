package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/photostudio/internal/models"
	"github.com/digkill/photostudio/internal/service"
	"github.com/digkill/photostudio/internal/storage"
)

type envelope map[string]any

type ctxKey int

const userIDKey ctxKey = iota

func userID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

// sessionMiddleware resolves the caller from the bearer session token. The
// user id is never taken from the request body or path.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		id, err := s.deps.Sessions.Parse(strings.TrimSpace(token))
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !equal(user, s.username) || !equal(pass, s.password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="photostudio"`)
				s.writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload envelope) {
	if payload == nil {
		payload = envelope{}
	}
	payload["success"] = true
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{"success": false, "error": message})
}

// fail maps a service error onto the wire. Forbidden is answered exactly
// like NotFound but logged separately.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	switch {
	case errors.Is(err, service.ErrForbidden):
		s.log.Warn("forbidden access", "path", r.URL.Path, "user_id", userID(r.Context()), "request_id", reqID, "err", err)
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrValidation):
		s.writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, storage.ErrNotImage):
		s.writeError(w, http.StatusBadRequest, storage.ErrNotImage.Error())
	case errors.Is(err, service.ErrInsufficientCredits):
		s.writeError(w, http.StatusPaymentRequired, "insufficient credits")
	case errors.Is(err, service.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentsDisabled):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrProviderFailure):
		s.log.Error("provider failure", "path", r.URL.Path, "request_id", reqID, "err", err)
		s.writeError(w, http.StatusBadGateway, "image provider is unavailable, credits were refunded")
	default:
		s.log.Error("handler error", "path", r.URL.Path, "request_id", reqID, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// validationMessage drops the sentinel prefix so clients get the reason only.
func validationMessage(err error) string {
	msg := err.Error()
	if _, reason, ok := strings.Cut(msg, service.ErrValidation.Error()+": "); ok && reason != "" {
		return reason
	}
	return "invalid request"
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := models.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
