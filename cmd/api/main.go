package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bbbpartner/internal/config"
	"bbbpartner/internal/export"
	"bbbpartner/internal/httpx"
	"bbbpartner/internal/ingest"
	"bbbpartner/internal/platform/notify"
	"bbbpartner/internal/region"
	"bbbpartner/internal/status"
)

const maxBodyBytes = 64 << 10

type routes struct {
	ingest  *ingest.HTTPHandler
	status  *status.HTTPHandler
	secret  string
	limiter *httpx.RateLimitMiddleware
	proxies []netip.Prefix
}

func newRouter(rt routes) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /v1/regions/status", rt.status.Status)
	router.HandleFunc("GET /v1/runs", rt.ingest.ListRuns)
	router.Handle("POST /internal/jobs/export",
		httpx.InternalSecretMiddleware(rt.secret)(http.HandlerFunc(rt.ingest.TriggerExport)))

	return httpx.Chain(router,
		httpx.ClientIPMiddleware(rt.proxies),
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.RecoveryMiddleware,
		httpx.SecurityHeadersMiddleware,
		rt.limiter.Middleware,
		httpx.RequestSizeLimitMiddleware(maxBodyBytes),
	)
}

func main() {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if err := cfg.RequireAPIToken(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if cfg.InternalSecret == "" {
		log.Printf("INTERNAL_SECRET is not set; POST /internal/jobs/export will reject every request")
	}

	proxies, err := httpx.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, repo, closeRepo, err := ingest.Build(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer closeRepo()

	notifier := notify.Logged(notify.New(cfg.Notify))
	done := func(rep *ingest.Report, err error) {
		nctx := context.WithoutCancel(ctx)
		switch {
		case err != nil:
			log.Printf("export run failed: %v", err)
			_ = notifier.Error(nctx, err.Error())
		case rep.Failed():
			_ = notifier.Error(nctx, rep.Summary())
			_ = notifier.Status(nctx, "Completed with errors")
		default:
			_ = notifier.Status(nctx, "Completed")
		}
	}

	limiter := httpx.NewRateLimitMiddleware(5, 10)
	defer limiter.Close()

	handler := newRouter(routes{
		ingest:  ingest.NewHTTPHandler(ctx, svc, repo, done),
		status:  status.NewHTTPHandler(region.NewLoader(cfg.RegionsFile, cfg.ZipsDir), export.NewWriter(cfg.ResultsDir)),
		secret:  cfg.InternalSecret,
		limiter: limiter,
		proxies: proxies,
	})

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on %s", cfg.ServerAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}

	// Let a running export record its final ledger state before the ledger closes.
	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := svc.Wait(waitCtx); err != nil {
		log.Printf("export still running at shutdown: %v", err)
	}
}
