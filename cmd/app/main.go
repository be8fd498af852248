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

	"library_desk/internal/config"
	"library_desk/internal/db"
	"library_desk/internal/httpapi"
	"library_desk/internal/network"
	"library_desk/internal/notify"
	"library_desk/internal/service"
	"library_desk/internal/view"
	"library_desk/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	log.Println("=== LIBRARY DESK STARTING ===")

	client, err := network.NewClient(cfg.ProxyAddr, cfg.HTTPTimeout)
	if err != nil {
		log.Fatalf("network: %v", err)
	}
	if cfg.ProxyAddr != "" {
		log.Printf("Backend requests go through %s", cfg.ProxyAddr)
	}

	library, err := service.NewLibraryClient(client, cfg.BackendURL)
	if err != nil {
		log.Fatalf("backend: %v", err)
	}

	store, err := db.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer store.Close()
	log.Printf("SQLite: %s", cfg.SQLitePath)

	renderer, err := view.NewRenderer(cfg.PollInterval)
	if err != nil {
		log.Fatalf("templates: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	views := httpapi.NewRegistry(library, store, cfg.ViewTTL)

	var notifier notify.Notifier
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, store)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		go tg.Listen(ctx)
		notifier = tg
	}

	workers.NewPoller(views, notifier, cfg.PollInterval).Start(ctx)

	api := httpapi.New(views, renderer, cfg.AllowedOrigins, cfg.PublicURL)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP API listening on %s (backend %s)", cfg.HTTPAddr, cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
