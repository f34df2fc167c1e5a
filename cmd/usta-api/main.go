// README: Entry point; loads config, wires the dispatch engine, starts
// the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"usta/internal/auth"
	"usta/internal/config"
	httptransport "usta/internal/http"
	"usta/internal/infra"
	"usta/internal/logger"
	"usta/internal/maps"
	"usta/internal/modules/location"
	"usta/internal/modules/matching"
	"usta/internal/modules/order"
	"usta/internal/push"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zlog, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		zlog.Fatal("postgres", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	orderStore := order.NewPGStore(dbPool)
	snapshots := location.NewRedisStore(redisClient, cfg.Redis.LocationTTL)
	registry := push.NewRegistry()
	hub := push.NewHub(registry, snapshots, zlog)

	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			zlog.Warn("maps disabled", zap.Error(err))
		} else {
			hub.SetRouteEstimator(routes)
		}
	}
	if cfg.Firebase.CredentialsFile != "" {
		msg, err := infra.NewMessaging(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			zlog.Warn("fcm disabled", zap.Error(err))
		} else {
			hub.SetOfferSink(push.NewFCMSink(msg))
		}
	}

	orderSvc := order.NewService(orderStore, hub, cfg.Dispatch, zlog)
	defer orderSvc.Close()

	geoIndex := matching.NewStore(redisClient)
	locationSvc := location.NewService(snapshots, orderStore, zlog)
	locationSvc.SetGeoIndexer(geoIndex)

	matcher := matching.NewService(snapshots, cfg.Matching, zlog)
	matcher.SetGeoIndex(geoIndex)
	orderSvc.SetEligibility(matcher)
	orderSvc.SetStatusMirror(snapshots)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Verifier: auth.NewJWTVerifier(cfg.Auth.JWTSecret),
		Order:    orderSvc,
		Matcher:  matcher,
		Location: locationSvc,
		Registry: registry,
		Log:      zlog,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	zlog.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Fatal("serve", zap.Error(err))
	}
}
