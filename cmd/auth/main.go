package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlibekovAA/videotube/backend/internal/auth/cleanup"
	authhttp "github.com/AlibekovAA/videotube/backend/internal/auth/http"
	"github.com/AlibekovAA/videotube/backend/internal/common/bootstrap"
	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
	commonhttp "github.com/AlibekovAA/videotube/backend/internal/common/http"
	srv "github.com/AlibekovAA/videotube/backend/internal/common/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.NewAuthApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start auth service: %v\n", err)
		os.Exit(1)
	}
	log := app.Log
	cfg := app.Config

	go cleanup.StartSessionCleanup(ctx, app.Sessions, app.Clock, cfg.RefreshTokenTTL, constants.SessionCleanupInterval, log)

	handler := authhttp.NewHandler(app.Service, authhttp.Config{
		RequestTimeout:         cfg.RequestTimeout,
		MaxUploadBytes:         cfg.MaxUploadBytes,
		CookieSecure:           cfg.CookieSecure,
		ClearCookiesOnPassword: cfg.RevokeSessionsOnPasswordChange,
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("GET /metrics", promhttp.Handler())

	baseHandler := commonhttp.BuildBaseHandler("auth", log, cfg.CORSOrigins, mux)
	server := srv.NewServer(srv.DefaultServerConfig(cfg.HTTPPort), baseHandler)

	shutdownHooks := []srv.ShutdownHook{
		func(context.Context) error {
			log.Infof("auth service: stopping background workers")
			cancel()
			return nil
		},
		func(context.Context) error {
			app.Close()
			return nil
		},
	}

	srv.StartWithGracefulShutdownAndHooks(server, log, "auth", shutdownHooks)
}
