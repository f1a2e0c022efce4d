// Package transport implements the origin-side endpoint that serves
// serialized broadcast files over HTTP.
//
// The server exists only on the origin node. It binds once, publishes its
// externally reachable base URI, and serves registry files by identifier
// until stopped.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/xystevensun/spark-private/internal/logger"
	"github.com/xystevensun/spark-private/pkg/auth"
)

// Config holds transport server configuration.
type Config struct {
	// Port is the TCP port to bind. 0 picks an ephemeral port.
	Port int

	// Host overrides the advertised host in the base URI. Empty selects a
	// non-loopback interface address.
	Host string
}

// Server serves broadcast files out of a registry directory.
//
// The zero value is not usable; construct with New. Start binds the
// listener (so the ephemeral port is resolved before the base URI is
// published) and serves in the background; Stop shuts down gracefully and
// is safe to call more than once.
type Server struct {
	dir    string
	config Config

	server  *http.Server
	baseURI string

	shutdownOnce sync.Once
}

// New creates a transport server serving files from dir.
func New(dir string, secctx auth.SecurityContext, config Config) *Server {
	router := NewRouter(dir, secctx)

	return &Server{
		dir:    dir,
		config: config,
		server: &http.Server{
			Handler:     router,
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 120 * time.Second,
		},
	}
}

// Start binds the listener and begins serving in a background goroutine.
// On return the base URI is valid. A bind failure is fatal to the node's
// role as origin and is returned to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("broadcast server failed to bind port %d: %w", s.config.Port, err)
	}

	host := s.config.Host
	if host == "" {
		host = localAddr()
	}
	port := ln.Addr().(*net.TCPAddr).Port
	s.baseURI = fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprintf("%d", port)))

	go func() {
		logger.Info("broadcast server listening", "addr", ln.Addr().String(), "dir", s.dir)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("broadcast server failed", "error", err)
		}
	}()

	return nil
}

// BaseURI returns the externally reachable base URI. Valid only after a
// successful Start.
func (s *Server) BaseURI() string {
	return s.baseURI
}

// Stop initiates graceful shutdown. Safe to call multiple times and safe
// to call on a server that never started.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
			shutdownErr = fmt.Errorf("broadcast server shutdown error: %w", err)
			logger.Error("broadcast server shutdown error", "error", err)
		} else {
			logger.Info("broadcast server stopped")
		}
	})
	return shutdownErr
}

// localAddr returns a non-loopback address of this host, falling back to
// 127.0.0.1 when none is found.
func localAddr() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}
