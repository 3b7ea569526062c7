package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/utils"
)

// svc is the shared relay service, set once at router construction.
var svc *relay.Service

// Init wires the relay service into the handler package.
func Init(s *relay.Service) { svc = s }

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func ident(r *http.Request) (auth.Identity, bool) {
	return auth.IdentityFromContext(r.Context())
}

// detail extracts the text after the sentinel prefix for developer-facing
// validation messages.
func detail(err error) string {
	s := err.Error()
	if i := strings.Index(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}

// writeRelayError maps the service error taxonomy onto HTTP statuses. Auth
// failures carry no details; internal failures are logged but surface a
// generic message only.
func writeRelayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, relay.ErrUnauthenticated):
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, relay.ErrForbidden):
		utils.JSONError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, relay.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, relay.ErrConflict):
		utils.JSONErrorDetails(w, http.StatusConflict, "conflict", detail(err))
	case errors.Is(err, relay.ErrValidation):
		utils.JSONErrorDetails(w, http.StatusBadRequest, "invalid request", detail(err))
	default:
		logger.Error("request_failed", "path", r.URL.Path, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
	}
}
