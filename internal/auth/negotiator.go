// Package auth establishes channels between clients and the server. The
// per-connection flow is an explicit state machine - Unconnected,
// TransportEstablished, CredentialNegotiated, Ready, Failed - so every
// failure transition is independently testable instead of being buried
// in nested conditionals. Failed is terminal: retry policy belongs to
// the caller.
package auth

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"strings"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/metrics"
)

// State of one connection attempt.
type State int

const (
	Unconnected State = iota
	TransportEstablished
	CredentialNegotiated
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case TransportEstablished:
		return "transport_established"
	case CredentialNegotiated:
		return "credential_negotiated"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "invalid"
}

// Endpoint is a parsed transport address.
type Endpoint struct {
	// Network is "tcp" or "unix".
	Network string
	// Addr is the host:port or socket path handed to net.Dial/Listen.
	Addr string
	// Target is the dial target in gRPC resolver syntax.
	Target string
}

// ParseAddress splits an address URI into its transport endpoint.
// "unix://<path>" selects a local socket; anything else is host:port TCP.
func ParseAddress(uri string) (Endpoint, error) {
	if path, ok := strings.CutPrefix(uri, "unix://"); ok {
		if path == "" {
			return Endpoint{}, lmerror.Errorf(lmerror.KindConfig,
				"empty unix socket path in %q", uri)
		}
		return Endpoint{Network: "unix", Addr: path, Target: uri}, nil
	}
	if _, _, err := net.SplitHostPort(uri); err != nil {
		return Endpoint{}, lmerror.Errorf(lmerror.KindConfig,
			"address %q is neither host:port nor unix://<path>", uri)
	}
	return Endpoint{Network: "tcp", Addr: uri, Target: uri}, nil
}

// credentialMode labels metrics for handshake failures.
func credentialMode(t config.CredentialType) string {
	if t == config.CredentialSSL {
		return "ssl"
	}
	return "insecure"
}

// serverTLSConfig assembles the server half of the handshake from PEM
// material. client_verify demands a client certificate signed by the
// configured custom CA.
func serverTLSConfig(cfg config.ServerSSLConfig) (*tls.Config, error) {
	cert, err := tls.X509KeyPair([]byte(cfg.ServerCert), []byte(cfg.ServerKey))
	if err != nil {
		return nil, lmerror.Errorf(lmerror.KindAuth,
			"loading server key pair: %w", err)
	}
	out := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}
	if cfg.ClientVerify {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(cfg.CustomCACert)) {
			return nil, lmerror.Errorf(lmerror.KindAuth,
				"custom_ca_cert contains no usable certificates")
		}
		out.ClientAuth = tls.RequireAndVerifyClientCert
		out.ClientCAs = pool
	}
	return out, nil
}

// clientTLSConfig assembles the client half. The server's public
// certificate (and custom CA, when present) anchor trust; the target
// name override substitutes for the dialed address during verification.
func clientTLSConfig(server config.ServerAuthConfig, client config.ClientAuthConfig,
	endpoint Endpoint) (*tls.Config, error) {
	pool := x509.NewCertPool()
	anchored := false
	if server.SSL.ServerCert != "" &&
		pool.AppendCertsFromPEM([]byte(server.SSL.ServerCert)) {
		anchored = true
	}
	if server.SSL.CustomCACert != "" &&
		pool.AppendCertsFromPEM([]byte(server.SSL.CustomCACert)) {
		anchored = true
	}
	if !anchored {
		return nil, lmerror.Errorf(lmerror.KindAuth,
			"no trust anchors: server config carries no usable certificate")
	}

	serverName := client.SSL.TargetNameOverride
	if serverName == "" {
		if endpoint.Network == "unix" {
			return nil, lmerror.Errorf(lmerror.KindAuth,
				"ssl over a local socket requires target_name_override")
		}
		host, _, err := net.SplitHostPort(endpoint.Addr)
		if err != nil {
			return nil, lmerror.New(lmerror.KindAuth, err)
		}
		serverName = host
	}

	out := &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
	}
	if client.SSL.ClientCert != "" {
		cert, err := tls.X509KeyPair(
			[]byte(client.SSL.ClientCert), []byte(client.SSL.ClientKey))
		if err != nil {
			return nil, lmerror.Errorf(lmerror.KindAuth,
				"loading client key pair: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}
	return out, nil
}

// ServerCredentials builds the transport credentials the server listens
// with, per the configured credential mode.
func ServerCredentials(cfg config.ServerAuthConfig) (credentials.TransportCredentials, error) {
	switch cfg.CredentialType {
	case config.CredentialInsecure, "":
		return insecure.NewCredentials(), nil
	case config.CredentialSSL:
		tlsCfg, err := serverTLSConfig(cfg.SSL)
		if err != nil {
			metrics.HandshakeFailures.WithLabelValues("ssl", "credential").Inc()
			return nil, err
		}
		return credentials.NewTLS(tlsCfg), nil
	default:
		return nil, lmerror.Errorf(lmerror.KindConfig,
			"unsupported credential_type %q", cfg.CredentialType)
	}
}
