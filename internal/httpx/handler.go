// Package httpx is a convenience wrapper around http handlers that allows us
// to return errors from our handlers and have them rendered consistently.
// see https://blog.questionable.services/article/http-handler-error-handling-revisited/ for more details.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-json-experiment/json"
)

// Error is a convenience function for returning an error with an associated
// HTTP status code.
func Error(code int, err error) error {
	return &StatusError{Code: code, Err: err}
}

// Unauthorized wraps cause in a 401 whose client-visible message is always
// the same. Token validation failures must be indistinguishable from the
// outside; the cause is kept for the server log only.
func Unauthorized(cause error) error {
	return &StatusError{Code: http.StatusUnauthorized, Err: errors.New("unauthorized"), Cause: cause}
}

// StatusError represents an error with an associated HTTP status code.
type StatusError struct {
	Code int
	// Err is what the client sees.
	Err error
	// Cause, when set, is what the log sees. It never reaches the client.
	Cause error
}

// Allows StatusError to satisfy the error interface.
func (se *StatusError) Error() string {
	return se.Err.Error()
}

// Status returns our HTTP status code.
func (se *StatusError) Status() int {
	return se.Code
}

// Unwrap exposes the underlying cause so callers can errors.Is against it.
func (se *StatusError) Unwrap() error {
	if se.Cause != nil {
		return se.Cause
	}
	return se.Err
}

// Logger is the slice of the request environment HandlerFunc needs.
type Logger interface {
	Log() *slog.Logger
}

// HandlerFunc adapts a function that returns an error to an http.HandlerFunc.
// Errors carrying a status are rendered with it; everything else becomes a
// 500 with no detail leaked.
func HandlerFunc[E Logger](envFn func(r *http.Request) E, fn func(E, http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env := envFn(r)
		err := fn(env, w, r)
		if err == nil {
			return
		}
		log := env.Log().With("method", r.Method, "path", r.URL.Path)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if se := new(StatusError); errors.As(err, &se) {
			cause := se.Cause
			if cause == nil {
				cause = se.Err
			}
			log.Error("request failed", "status", se.Status(), "error", cause.Error())
			w.WriteHeader(se.Status())
			json.MarshalFull(w, map[string]any{
				"error": se.Error(),
			})
			return
		}
		log.Error("request failed", "status", http.StatusInternalServerError, "error", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		json.MarshalFull(w, map[string]any{
			"error": "internal server error",
		})
	}
}

// Redirect returns a 302 redirect to the specified URI.
func Redirect(w http.ResponseWriter, uri string) error {
	w.Header().Set("Location", uri)
	w.WriteHeader(302)
	return nil
}
