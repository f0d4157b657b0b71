// Package config holds the server and client configuration surface. The
// structs are plain data with YAML/JSON tags; defaults are filled in by
// the pure Init*Defaults merge steps and nothing mutates a config after
// the server or client is constructed from it.
package config

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RajanChettri/mozolm/internal/lmerror"
)

// DefaultServerAddress is used when a config leaves address_uri empty.
const DefaultServerAddress = "localhost:50051"

// DefaultTimeoutSec is the client-side per-call timeout default.
const DefaultTimeoutSec = 10.0

// ModelType selects a model backend implementation.
type ModelType string

const (
	ModelUniform   ModelType = "uniform"
	ModelCharNgram ModelType = "char_ngram"
	ModelPPM       ModelType = "ppm"
)

// MixtureType selects how the hub combines backend distributions.
type MixtureType string

const (
	// MixtureSingle serves the single configured model verbatim.
	MixtureSingle MixtureType = "single"
	// MixtureInterpolation mixes all models via a weighted sum.
	MixtureInterpolation MixtureType = "interpolation"
)

// CredentialType selects the channel security mode.
type CredentialType string

const (
	CredentialInsecure CredentialType = "insecure"
	CredentialSSL      CredentialType = "ssl"
)

// PPMOptions configures the adaptive PPM backend.
type PPMOptions struct {
	// MaxOrder is the longest context length the model conditions on.
	MaxOrder int `json:"max_order" yaml:"max_order"`
	// StaticModel freezes counts after initial training: Observe becomes
	// a no-op and the model stops adapting.
	StaticModel bool `json:"static_model" yaml:"static_model"`
}

// StorageConfig locates the external data a backend is built from. The
// file formats themselves belong to the loader, not to this package.
type StorageConfig struct {
	ModelFile      string     `json:"model_file" yaml:"model_file"`
	VocabularyFile string     `json:"vocabulary_file" yaml:"vocabulary_file"`
	PPMOptions     PPMOptions `json:"ppm_options" yaml:"ppm_options"`
}

// ModelConfig describes one backend in the hub.
type ModelConfig struct {
	Type    ModelType     `json:"type" yaml:"type"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// ModelHubConfig describes the ordered backend collection and how their
// distributions are combined.
type ModelHubConfig struct {
	MixtureType MixtureType `json:"mixture_type" yaml:"mixture_type"`
	// Weights are the interpolation weights, parallel to Models. Empty
	// means equal weights. Ignored for MixtureSingle.
	Weights []float64     `json:"weights" yaml:"weights"`
	Models  []ModelConfig `json:"model_config" yaml:"model_config"`
}

// ServerSSLConfig carries PEM-encoded credential material for the server
// side of the handshake.
type ServerSSLConfig struct {
	ServerKey  string `json:"server_key" yaml:"server_key"`
	ServerCert string `json:"server_cert" yaml:"server_cert"`
	// ClientVerify demands and validates a client certificate against
	// CustomCACert (mutual TLS).
	ClientVerify bool   `json:"client_verify" yaml:"client_verify"`
	CustomCACert string `json:"custom_ca_cert" yaml:"custom_ca_cert"`
}

// ServerAuthConfig selects and parameterizes the server credential mode.
type ServerAuthConfig struct {
	CredentialType CredentialType  `json:"credential_type" yaml:"credential_type"`
	SSL            ServerSSLConfig `json:"ssl" yaml:"ssl"`
}

// ServerConfig is the full server configuration.
type ServerConfig struct {
	// AddressURI is "host:port" for TCP or "unix://<path>" for a local
	// socket. "localhost:0" asks for an ephemeral port.
	AddressURI string           `json:"address_uri" yaml:"address_uri"`
	Auth       ServerAuthConfig `json:"auth" yaml:"auth"`
	// WaitForClients keeps Run blocked until the server is stopped.
	// Defaults to true; in-process tests set it to false.
	WaitForClients *bool          `json:"wait_for_clients" yaml:"wait_for_clients"`
	ModelHub       ModelHubConfig `json:"model_hub_config" yaml:"model_hub_config"`
}

// ShouldWait reports the effective wait_for_clients value.
func (c *ServerConfig) ShouldWait() bool {
	return c.WaitForClients == nil || *c.WaitForClients
}

// ClientSSLConfig carries the client side of the handshake material.
type ClientSSLConfig struct {
	// TargetNameOverride is matched against the server certificate
	// instead of the dialed address (local testing, SNI mismatch).
	TargetNameOverride string `json:"target_name_override" yaml:"target_name_override"`
	ClientCert         string `json:"client_cert" yaml:"client_cert"`
	ClientKey          string `json:"client_key" yaml:"client_key"`
}

// ClientAuthConfig selects and parameterizes the client credential mode.
type ClientAuthConfig struct {
	SSL ClientSSLConfig `json:"ssl" yaml:"ssl"`
}

// ClientConfig embeds the server's address and auth expectations plus the
// client-only knobs.
type ClientConfig struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	TimeoutSec float64          `json:"timeout_sec" yaml:"timeout_sec"`
	Auth       ClientAuthConfig `json:"auth" yaml:"auth"`
}

// InitServerDefaults fills unset server fields. Explicitly set values,
// including wait_for_clients=false, survive untouched.
func InitServerDefaults(c *ServerConfig) {
	if c.AddressURI == "" {
		c.AddressURI = DefaultServerAddress
	}
	if c.Auth.CredentialType == "" {
		c.Auth.CredentialType = CredentialInsecure
	}
	if c.WaitForClients == nil {
		wait := true
		c.WaitForClients = &wait
	}
	if c.ModelHub.MixtureType == "" {
		c.ModelHub.MixtureType = MixtureSingle
	}
	for i := range c.ModelHub.Models {
		m := &c.ModelHub.Models[i]
		if m.Type == ModelPPM && m.Storage.PPMOptions.MaxOrder <= 0 {
			m.Storage.PPMOptions.MaxOrder = 4
		}
	}
}

// InitClientDefaults fills unset client fields, including the embedded
// server expectations.
func InitClientDefaults(c *ClientConfig) {
	InitServerDefaults(&c.Server)
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = DefaultTimeoutSec
	}
}

// Validate checks the invariants the hub and negotiator rely on.
func (c *ServerConfig) Validate() error {
	if c.AddressURI == "" {
		return lmerror.Errorf(lmerror.KindConfig, "address_uri is empty")
	}
	switch c.Auth.CredentialType {
	case CredentialInsecure:
	case CredentialSSL:
		if c.Auth.SSL.ServerKey == "" || c.Auth.SSL.ServerCert == "" {
			return lmerror.Errorf(lmerror.KindConfig,
				"ssl credentials require server_key and server_cert")
		}
		if c.Auth.SSL.ClientVerify && c.Auth.SSL.CustomCACert == "" {
			return lmerror.Errorf(lmerror.KindConfig,
				"client_verify requires custom_ca_cert")
		}
	default:
		return lmerror.Errorf(lmerror.KindConfig,
			"unsupported credential_type %q", c.Auth.CredentialType)
	}
	return c.ModelHub.Validate()
}

// Validate checks the hub invariants: at least one model, Single mode has
// exactly one, weights (when given) are non-negative, match the model
// count and carry positive total mass.
func (c *ModelHubConfig) Validate() error {
	if len(c.Models) == 0 {
		return lmerror.Errorf(lmerror.KindConfig, "model_config list is empty")
	}
	switch c.MixtureType {
	case MixtureSingle:
		if len(c.Models) != 1 {
			return lmerror.Errorf(lmerror.KindConfig,
				"mixture_type single requires exactly one model, got %d",
				len(c.Models))
		}
	case MixtureInterpolation:
	default:
		return lmerror.Errorf(lmerror.KindConfig,
			"unsupported mixture_type %q", c.MixtureType)
	}
	if len(c.Weights) > 0 {
		if len(c.Weights) != len(c.Models) {
			return lmerror.Errorf(lmerror.KindConfig,
				"%d weights for %d models", len(c.Weights), len(c.Models))
		}
		total := 0.0
		for i, w := range c.Weights {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return lmerror.Errorf(lmerror.KindConfig,
					"weight[%d] = %v is not a non-negative finite number", i, w)
			}
			total += w
		}
		if total <= 0 {
			return lmerror.Errorf(lmerror.KindConfig,
				"mixture weights sum to zero")
		}
	}
	for i, m := range c.Models {
		switch m.Type {
		case ModelUniform, ModelCharNgram, ModelPPM:
		default:
			return lmerror.Errorf(lmerror.KindConfig,
				"model_config[%d]: unsupported model type %q", i, m.Type)
		}
	}
	return nil
}

// Validate checks the invariants the negotiator relies on. The embedded
// server section carries the client's expectations about the remote end,
// not a full server config: the model hub and the server's private key
// belong to the server process and are not checked here. For SSL the
// client needs at least one trust anchor.
func (c *ClientConfig) Validate() error {
	if c.Server.AddressURI == "" {
		return lmerror.Errorf(lmerror.KindConfig, "address_uri is empty")
	}
	switch c.Server.Auth.CredentialType {
	case CredentialInsecure:
	case CredentialSSL:
		if c.Server.Auth.SSL.ServerCert == "" &&
			c.Server.Auth.SSL.CustomCACert == "" {
			return lmerror.Errorf(lmerror.KindConfig,
				"ssl channels require server_cert or custom_ca_cert")
		}
	default:
		return lmerror.Errorf(lmerror.KindConfig,
			"unsupported credential_type %q", c.Server.Auth.CredentialType)
	}
	if c.TimeoutSec <= 0 {
		return lmerror.Errorf(lmerror.KindConfig,
			"timeout_sec must be positive, got %v", c.TimeoutSec)
	}
	ssl := c.Auth.SSL
	if (ssl.ClientCert == "") != (ssl.ClientKey == "") {
		return lmerror.Errorf(lmerror.KindConfig,
			"client_cert and client_key must be set together")
	}
	return nil
}

// LoadServer reads a YAML server config from path and applies defaults.
func LoadServer(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lmerror.New(lmerror.KindIO, err)
	}
	var c ServerConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, lmerror.New(lmerror.KindConfig, err)
	}
	InitServerDefaults(&c)
	return &c, nil
}

// LoadClient reads a YAML client config from path and applies defaults.
func LoadClient(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lmerror.New(lmerror.KindIO, err)
	}
	var c ClientConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, lmerror.New(lmerror.KindConfig, err)
	}
	InitClientDefaults(&c)
	return &c, nil
}
