// Package server assembles the language model server: it builds the hub
// from configuration, negotiates the listening channel, and serves the
// protocol operations over gRPC.
package server

import (
	"sync"

	"google.golang.org/grpc"

	"github.com/RajanChettri/mozolm/internal/auth"
	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/hub"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/lmrpc"
	"github.com/RajanChettri/mozolm/internal/logger"
)

// Server is a configured, runnable language model server. Construction
// loads every model backend; Run binds the transport and serves.
type Server struct {
	cfg config.ServerConfig
	hub *hub.Hub
	log *logger.Logger

	mu           sync.Mutex
	grpcServer   *grpc.Server
	selectedPort int
	serveErr     chan error
}

// New validates the configuration and loads the model hub. Construction
// failures (bad model type, unreadable storage) are fatal and reported
// immediately; nothing is retried.
func New(cfg config.ServerConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, err := hub.New(cfg.ModelHub)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg: cfg,
		hub: h,
		log: logger.Log.Component("server"),
	}, nil
}

// Hub exposes the model hub, shared by every connection for the server's
// lifetime.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Run negotiates the channel and starts serving. With wait true it
// blocks until the server stops; otherwise it returns once the listener
// is bound and serving in the background.
func (s *Server) Run(wait bool) error {
	negotiator := auth.NewServerNegotiator(s.cfg.Auth)
	if err := negotiator.Establish(s.cfg.AddressURI); err != nil {
		return err
	}
	if err := negotiator.Negotiate(); err != nil {
		return err
	}
	lis, creds, err := negotiator.Finish()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.selectedPort = negotiator.SelectedPort()
	s.grpcServer = grpc.NewServer(grpc.Creds(creds))
	lmrpc.Register(s.grpcServer, newLMService(s.hub, 0))
	s.serveErr = make(chan error, 1)
	grpcServer := s.grpcServer
	s.mu.Unlock()

	s.log.Info("serving language models",
		"address", s.cfg.AddressURI,
		"selected_port", s.selectedPort,
		"credential_type", string(s.cfg.Auth.CredentialType))

	go func() {
		s.serveErr <- grpcServer.Serve(lis)
	}()
	if !wait {
		return nil
	}
	if err := <-s.serveErr; err != nil {
		return lmerror.New(lmerror.KindNetwork, err)
	}
	return nil
}

// SelectedPort reports the bound TCP port after Run; zero before Run or
// for local sockets. Needed when the config asked for "localhost:0".
func (s *Server) SelectedPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedPort
}

// Stop drains in-flight requests and shuts the server down. Safe to call
// once Run has returned (non-waiting mode) or from another goroutine.
func (s *Server) Stop() {
	s.mu.Lock()
	grpcServer := s.grpcServer
	s.mu.Unlock()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

// Run launches a server per the configuration and, per wait_for_clients,
// blocks serving or returns immediately. Mirrors the process entry
// contract: a failed launch reports an error, never a silent success.
func Run(cfg config.ServerConfig) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	return srv.Run(cfg.ShouldWait())
}
