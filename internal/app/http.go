package app

import (
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatrelay/pkg/api"
	"chatrelay/pkg/auth"
	"chatrelay/pkg/banner"
	"chatrelay/pkg/store"
)

// printBanner prints the startup banner and runtime info.
func (a *App) printBanner() {
	banner.Print(a.cfg, a.version)
}

// setupHTTPHandlers sets up all HTTP handlers on the provided mux.
func (a *App) setupHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.Handler(a.svc))
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// startHTTP builds the handler stack, starts the HTTP server in a
// goroutine and returns a channel carrying any fatal server error.
func (a *App) startHTTP() <-chan error {
	mux := http.NewServeMux()
	a.setupHTTPHandlers(mux)

	gw := auth.GatewayConfig{
		JWTSecret:      a.cfg.Security.JWTSecret,
		AdminEmail:     a.cfg.Security.AdminEmail,
		AllowedOrigins: append([]string{}, a.cfg.Security.CORS.AllowedOrigins...),
		AllowLocalhost: a.cfg.Security.CORS.AllowLocalhost,
	}
	wrapped := auth.Middleware(gw, a.limiter)(mux)
	wrapped = gorillahandlers.CompressHandler(wrapped)
	wrapped = gorillahandlers.RecoveryHandler(
		gorillahandlers.PrintRecoveryStack(true),
	)(wrapped)

	a.srv = &http.Server{Addr: a.cfg.Addr(), Handler: wrapped}

	errCh := make(chan error, 1)
	go func() {
		cert := a.cfg.Server.TLS.CertFile
		key := a.cfg.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}
