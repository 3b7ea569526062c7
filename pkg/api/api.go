package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatrelay/pkg/api/handlers"
	"chatrelay/pkg/auth"
	"chatrelay/pkg/relay"
)

// Handler assembles the versioned API router. Authentication, CORS and
// rate limiting live in the gateway middleware the caller wraps around
// this handler; admin routes additionally re-verify the role here.
func Handler(svc *relay.Service) http.Handler {
	handlers.Init(svc)

	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()

	handlers.RegisterChat(v1)
	handlers.RegisterStream(v1)
	handlers.RegisterPresence(v1)
	handlers.RegisterAttachments(v1)
	handlers.RegisterFiles(v1)

	adm := v1.PathPrefix("/admin").Subrouter()
	adm.Use(auth.RequireAdmin)
	handlers.RegisterAdmin(adm)

	return r
}
