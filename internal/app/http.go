package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"

	"parley/pkg/api"
	"parley/pkg/banner"
	"parley/pkg/httpx"
	"parley/pkg/logger"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.eff, verStr)
}

// startHTTP mounts the API plus the operational endpoints and starts
// the main listener. The returned channel carries any listener error.
func (a *App) startHTTP() <-chan error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", a.api.Handler())

	a.srv = &http.Server{
		Addr:              a.eff.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", a.eff.Addr)
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// startBeacon serves the typing indicator on its own lean listener,
// on whichever engine config selects. No beacon address, no listener.
func (a *App) startBeacon() <-chan error {
	errCh := make(chan error, 1)
	addr := a.eff.Config.Server.Beacon.Addr
	if addr == "" {
		return errCh
	}
	handler := api.BeaconHandler(a.bus)

	switch a.eff.Config.Server.Beacon.Engine {
	case "nethttp":
		a.beaconNet = &http.Server{
			Addr:              addr,
			Handler:           httpx.NetHTTPAdapter(handler),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("beacon_listening", "addr", addr, "engine", "nethttp")
			if err := a.beaconNet.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	default:
		a.beaconFast = newBeaconServer(httpx.FastHTTPAdapter(handler))
		go func() {
			logger.Info("beacon_listening", "addr", addr, "engine", "fasthttp")
			if err := a.beaconFast.ListenAndServe(addr); err != nil {
				errCh <- err
			}
		}()
	}
	return errCh
}

// newBeaconServer builds the fasthttp server for the beacon path.
// Requests are tiny and frequent, so the options lean on throughput.
func newBeaconServer(h fasthttp.RequestHandler) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:            h,
		Name:               "parley-beacon",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
}

// healthzHandler is the liveness probe.
func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// readyzHandler reports readiness: the store must be open.
func (a *App) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !a.st.Ready() {
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
