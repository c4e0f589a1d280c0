package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"ideaflow/pkg/api"
	"ideaflow/pkg/banner"
	"ideaflow/pkg/httpx"
	"ideaflow/pkg/store"
	"ideaflow/pkg/telemetry"
	"ideaflow/pkg/utils"
)

func (a *App) printBanner() {
	banner.Print(a.eff.Addr, a.eff.DBPath, a.engine(), a.eff.Source)
}

func (a *App) engine() string {
	if e := a.eff.Config.Server.Engine; e != "" {
		return e
	}
	return httpx.EngineNetHTTP
}

// buildHandler assembles the router and middleware chain.
func (a *App) buildHandler() http.Handler {
	r := mux.NewRouter()
	r.Use(api.Observe())
	api.Register(r)
	r.HandleFunc("/readyz", a.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)

	sec := a.eff.Config.Security
	return api.Middleware(api.MWConfig{
		AllowedOrigins: append([]string{}, sec.CORS.AllowedOrigins...),
		RPS:            sec.RateLimit.RPS,
		Burst:          sec.RateLimit.Burst,
		MaxBodyBytes:   a.eff.Config.Server.MaxBodyBytes.Int64(),
	})(r)
}

func (a *App) readyz(w http.ResponseWriter, r *http.Request) {
	if !store.Ready() {
		utils.JSONError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok", "version": ver})
}

// serveHTTP blocks until shutdown.
func (a *App) serveHTTP(ctx context.Context) error {
	tls := a.eff.Config.Server.TLS
	return httpx.Serve(ctx, a.buildHandler(), httpx.Options{
		Addr:     a.eff.Addr,
		Engine:   a.engine(),
		CertFile: tls.CertFile,
		KeyFile:  tls.KeyFile,
	})
}
