// Package app composes the focus squad process: sqlite stores, domain
// services, the JSON API, the chat websocket surface and the gRPC health
// endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	api "github.com/ytchou/focus-squad/internal/api/http"
	"github.com/ytchou/focus-squad/internal/auth/token"
	chat "github.com/ytchou/focus-squad/internal/chat/app"
	platformgrpc "github.com/ytchou/focus-squad/internal/platform/grpc"
	"github.com/ytchou/focus-squad/internal/platform/timeouts"
	roomscatalog "github.com/ytchou/focus-squad/internal/rooms/catalog"
	roomsservice "github.com/ytchou/focus-squad/internal/rooms/service"
	roomssqlite "github.com/ytchou/focus-squad/internal/rooms/storage/sqlite"
	sessionservice "github.com/ytchou/focus-squad/internal/session/service"
	sessionsqlite "github.com/ytchou/focus-squad/internal/session/storage/sqlite"
	socialservice "github.com/ytchou/focus-squad/internal/social/service"
	socialsqlite "github.com/ytchou/focus-squad/internal/social/storage/sqlite"
)

// Config defines the inputs for the squad process.
type Config struct {
	HTTPAddr       string
	GRPCHealthAddr string
	// DataDir holds the sqlite database files.
	DataDir         string
	PresenceEnabled bool
	Token           token.Config

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the squad HTTP process and its gRPC health endpoint.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	healthListener  net.Listener
	healthServer    *platformgrpc.HealthServer
	clockManager    *clockManager

	sessionStore *sessionsqlite.Store
	socialStore  *socialsqlite.Store
	roomStore    *roomssqlite.Store
}

// New creates a configured squad server with all services wired.
func New(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	dataDir := strings.TrimSpace(config.DataDir)
	if dataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	signer, err := token.NewSigner(config.Token)
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	sessionStore, err := sessionsqlite.Open(filepath.Join(dataDir, "sessions.db"))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	socialStore, err := socialsqlite.Open(filepath.Join(dataDir, "social.db"))
	if err != nil {
		_ = sessionStore.Close()
		return nil, fmt.Errorf("open social store: %w", err)
	}
	roomStore, err := roomssqlite.Open(filepath.Join(dataDir, "rooms.db"))
	if err != nil {
		_ = sessionStore.Close()
		_ = socialStore.Close()
		return nil, fmt.Errorf("open rooms store: %w", err)
	}

	closeStores := func() {
		_ = sessionStore.Close()
		_ = socialStore.Close()
		_ = roomStore.Close()
	}

	social, err := socialservice.NewService(socialStore, socialservice.Options{})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("init social service: %w", err)
	}

	manager := newClockManager(ctx, 0)
	sessions, err := sessionservice.NewService(sessionStore, sessionservice.Options{
		Awards:          social,
		Invites:         signer,
		Clock:           manager,
		PresenceEnabled: config.PresenceEnabled,
	})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("init session service: %w", err)
	}
	manager.bind(sessions)

	items, err := roomscatalog.Default()
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("load decor catalog: %w", err)
	}
	rooms, err := roomsservice.NewService(roomStore, items, social, roomsservice.Options{})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("init rooms service: %w", err)
	}

	chatHandler := chat.NewHandlerWithAuthorizer(chat.NewSessionAuthorizer(signer, sessionStore))

	handler, err := api.New(api.Config{
		Sessions: sessions,
		Social:   social,
		Rooms:    rooms,
		Verifier: signer,
		Chat:     chatHandler,
	})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("init api handler: %w", err)
	}
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	var healthListener net.Listener
	var healthServer *platformgrpc.HealthServer
	if addr := strings.TrimSpace(config.GRPCHealthAddr); addr != "" {
		healthListener, err = net.Listen("tcp", addr)
		if err != nil {
			closeStores()
			return nil, fmt.Errorf("listen on health addr %s: %w", addr, err)
		}
		healthServer = platformgrpc.NewHealthServer()
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           mux,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		healthListener: healthListener,
		healthServer:   healthServer,
		clockManager:   manager,
		sessionStore:   sessionStore,
		socialStore:    socialStore,
		roomStore:      roomStore,
	}, nil
}

// Run creates and serves a squad server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := New(ctx, config)
	if err != nil {
		return fmt.Errorf("init squad server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve squad: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server and health endpoint until the
// context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("squad server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("squad server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	if s.healthServer != nil && s.healthListener != nil {
		s.healthServer.SetServing("")
		go func() {
			if err := s.healthServer.Serve(s.healthListener); err != nil {
				log.Printf("serve health endpoint: %v", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.healthServer != nil {
		s.healthServer.Stop()
	}
	if s.clockManager != nil {
		s.clockManager.Close()
	}
	if s.sessionStore != nil {
		_ = s.sessionStore.Close()
	}
	if s.socialStore != nil {
		_ = s.socialStore.Close()
	}
	if s.roomStore != nil {
		_ = s.roomStore.Close()
	}
}
