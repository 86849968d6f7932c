package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trimrr/trimr/internal/analytics"
	"github.com/trimrr/trimr/internal/cache"
	"github.com/trimrr/trimr/internal/config"
	"github.com/trimrr/trimr/internal/db"
	"github.com/trimrr/trimr/internal/geo"
	"github.com/trimrr/trimr/internal/handlers"
	"github.com/trimrr/trimr/internal/ipfilter"
	"github.com/trimrr/trimr/internal/resolver"
	"github.com/trimrr/trimr/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	geoReader, err := geo.Open(cfg.GeoIPPath)
	if err != nil {
		log.Printf("geo: %v (geo lookups disabled)", err)
		geoReader, _ = geo.Open("")
	}
	defer geoReader.Close()

	var checker *ipfilter.Checker
	if cfg.IPFilter {
		checker = ipfilter.NewChecker()
	}

	linkCache := cache.New(cfg.CacheSize, cfg.CacheTTL)
	enricher := &analytics.Enricher{Geo: geoReader, Filter: checker}

	res := &resolver.Resolver{
		DB:       database,
		Cache:    linkCache,
		Enricher: enricher,
	}

	sweep := sweeper.New(database, cfg.SweepInterval)

	linkHandler := &handlers.LinkHandler{DB: database, Cfg: cfg, Cache: linkCache}
	statsHandler := &handlers.StatsHandler{DB: database}
	redirectHandler := &handlers.RedirectHandler{DB: database, Resolver: res}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	// API routes (authenticated)
	r.Route("/api", func(r chi.Router) {
		r.Use(handlers.AuthMiddleware(cfg.APIKey))
		r.Post("/links", linkHandler.Create)
		r.Get("/links", linkHandler.List)
		r.Get("/links/{id}", linkHandler.Get)
		r.Patch("/links/{id}", linkHandler.Update)
		r.Delete("/links/{id}", linkHandler.Delete)
		r.Get("/links/{id}/qr", linkHandler.QRCode)
		r.Get("/links/{id}/stats", statsHandler.LinkSummary)
		r.Get("/stats", statsHandler.Global)
	})

	// All other routes → redirect handler
	r.NotFound(redirectHandler.ServeHTTP)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("trimr listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	sweep.Shutdown()
	if checker != nil {
		checker.Shutdown()
	}
	log.Println("goodbye")
}
