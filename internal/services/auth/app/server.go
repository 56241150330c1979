package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authhttp "github.com/mossvale/menagerie/internal/services/auth/api/http"
	"github.com/mossvale/menagerie/internal/services/auth/passkey"
	"github.com/mossvale/menagerie/internal/services/auth/session"
	authsqlite "github.com/mossvale/menagerie/internal/services/auth/storage/sqlite"
)

// challengeSweepInterval bounds how long an expired challenge row can
// linger. Consumption already rejects expired rows; the sweep is garbage
// collection only.
const challengeSweepInterval = time.Minute

// Server hosts the auth service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *authsqlite.Store
}

// New creates a configured auth server listening on the provided address.
func New(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	store, err := openAuthStore()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	passkeyConfig := passkey.LoadConfigFromEnv()
	passkeys, err := passkey.NewService(passkeyConfig, store, store, store)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("configure passkey service: %w", err)
	}

	sessions, err := newSessionIssuer()
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Mount("/api/v1/passkeys", authhttp.Routes(authhttp.NewHandler(passkeys, sessions)))

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: router},
		store:      store,
	}, nil
}

// Addr returns the listener address for the auth server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an auth server until the context ends.
func Run(ctx context.Context, addr string) error {
	authServer, err := New(addr)
	if err != nil {
		return err
	}
	return authServer.Serve(ctx)
}

// Serve starts the auth server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	go s.sweepChallenges(serverCtx)

	log.Printf("auth server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

// sweepChallenges periodically clears expired challenge rows.
func (s *Server) sweepChallenges(ctx context.Context) {
	ticker := time.NewTicker(challengeSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.DeleteExpiredChallenges(ctx, time.Now().UTC()); err != nil && ctx.Err() == nil {
				log.Printf("sweep expired challenges: %v", err)
			}
		}
	}
}

func openAuthStore() (*authsqlite.Store, error) {
	path := strings.TrimSpace(os.Getenv("MENAGERIE_AUTH_DB_PATH"))
	if path == "" {
		path = filepath.Join("data", "auth.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := authsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite store: %w", err)
	}
	return store, nil
}

// newSessionIssuer loads session signing config, falling back to an
// ephemeral key when none is configured. Ephemeral tokens do not survive
// a restart and are not valid across instances.
func newSessionIssuer() (*session.Issuer, error) {
	cfg, err := session.LoadConfigFromEnv(nil)
	if err == nil {
		return session.NewIssuer(cfg)
	}
	if strings.TrimSpace(os.Getenv("MENAGERIE_SESSION_PRIVATE_KEY")) != "" {
		return nil, fmt.Errorf("configure session issuer: %w", err)
	}

	log.Printf("MENAGERIE_SESSION_PRIVATE_KEY is not set; using an ephemeral signing key")
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral session key: %w", err)
	}
	return session.NewIssuer(session.Config{
		Issuer:   "menagerie-auth",
		Audience: "menagerie",
		Key:      key,
		TTL:      24 * time.Hour,
		Now:      time.Now,
	})
}

func (s *Server) closeStore() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close auth store: %v", err)
		}
	}
}
