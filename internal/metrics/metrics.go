// Package metrics holds the bridge's Prometheus collectors. Token metrics
// are labelled by outcome only; token values never appear in a label.
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/access"
)

var (
	// TokenMints counts file access tokens minted, over all trigger points.
	TokenMints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "tokens",
		Name:      "minted_total",
		Help:      "File access tokens minted.",
	})

	tokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "tokens",
		Name:      "validations_total",
		Help:      "File access token validations by outcome.",
	}, []string{"outcome"})

	hubspotRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "hubspot",
		Name:      "requests_total",
		Help:      "Outbound HubSpot API calls by operation and result.",
	}, []string{"call", "result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route pattern, method and status.",
	}, []string{"route", "method", "code"})
)

// Validation records the outcome of a token validation.
func Validation(err error) {
	tokenValidations.WithLabelValues(validationOutcome(err)).Inc()
}

func validationOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, access.ErrMissingToken):
		return "missing"
	case errors.Is(err, access.ErrNotFound):
		return "not_found"
	case errors.Is(err, access.ErrExpired):
		return "expired"
	case errors.Is(err, access.ErrMismatch):
		return "mismatch"
	default:
		return "error"
	}
}

// HubSpotCall records one outbound HubSpot API call.
func HubSpotCall(call string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	hubspotRequests.WithLabelValues(call, result).Inc()
}

// HTTPRequest records one served request. route must be the matched route
// pattern, never the raw path, so file ids and tokens stay out of label
// values.
func HTTPRequest(route, method string, status int) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
