package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"syncthat/cache"
	"syncthat/config"
	"syncthat/core/resolver"
	"syncthat/core/room"
	"syncthat/logger"

	"github.com/gorilla/mux"
)

// Server wires the hub, the room registry and the HTTP surface together.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	registry *room.Registry
	resolver *resolver.YtDlpResolver
}

// Start boots the whole service and blocks until SIGINT/SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", logger.ErrorField(err))
	}

	// Redis only accelerates metadata probes; run without it if it's down.
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("redis unavailable, metadata cache disabled", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
	}

	hub := NewHub()
	res := resolver.NewYtDlpResolver(cfg, cache.NewMetadataCache())
	registry := room.NewRegistry(cfg.RoomIDs, hub, res, cfg.AdminPassword)
	registry.Start()
	defer registry.Stop()

	s := &Server{
		cfg:      cfg,
		hub:      hub,
		registry: registry,
		resolver: res,
	}

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/ws", s.handleWebsocket)
	router.HandleFunc("/api/rooms", s.handleRooms).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/status/{key}", s.handleSongStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/download", s.handleDownload).Methods(http.MethodPost)
	router.HandleFunc("/songs/stream/{file}", s.handleStream).Methods(http.MethodGet, http.MethodHead)

	// No server-wide read/write timeouts: websocket connections are
	// long-lived and manage their own deadlines.
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		IdleTimeout: 120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			logger.String("addr", server.Addr),
			logger.Any("rooms", cfg.RoomIDs))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
