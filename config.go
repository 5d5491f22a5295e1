package docstore

import (
	"fmt"
	"net/http"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/docstore/docstore-go/credential"
)

// Config holds the environment-driven client settings. Exactly one of Key and
// KeyFile must be set.
type Config struct {
	// Endpoint is the account URL, e.g. "https://myaccount.documents.example:443/".
	Endpoint string `env:"DOCSTORE_ENDPOINT,required"`
	// Key is the account master key, base64.
	Key string `env:"DOCSTORE_KEY"`
	// KeyFile is a path to a file holding the master key. The file is watched
	// and the key reloaded on rotation.
	KeyFile string `env:"DOCSTORE_KEY_FILE"`
	// Consistency is the client-wide consistency level.
	Consistency string `env:"DOCSTORE_CONSISTENCY,default=Session"`
	// MaxRetries bounds retries per request.
	MaxRetries int `env:"DOCSTORE_MAX_RETRIES,default=9"`
	// RequestTimeout bounds each HTTP attempt.
	RequestTimeout time.Duration `env:"DOCSTORE_REQUEST_TIMEOUT,default=30s"`
	// ApplicationName is prepended to the User-Agent.
	ApplicationName string `env:"DOCSTORE_APP_NAME"`
}

func (c Config) validate() error {
	if c.Key == "" && c.KeyFile == "" {
		return fmt.Errorf("docstore: one of DOCSTORE_KEY and DOCSTORE_KEY_FILE is required")
	}
	if c.Key != "" && c.KeyFile != "" {
		return fmt.Errorf("docstore: DOCSTORE_KEY and DOCSTORE_KEY_FILE are mutually exclusive")
	}
	return nil
}

// ConfigFromEnv loads Config from the environment, failing on missing
// required variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("docstore: decode environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewClientFromEnv builds a client from ConfigFromEnv. opts, when non-nil,
// overlays the environment settings; its zero fields are filled from the
// environment.
func NewClientFromEnv(opts *ClientOptions) (*Client, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewClientFromConfig(cfg, opts)
}

// NewClientFromConfig builds a client from an explicit Config. opts is read,
// never modified; the environment fills in whatever it leaves zero.
func NewClientFromConfig(cfg Config, opts *ClientOptions) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	merged := ClientOptions{}
	if opts != nil {
		merged = *opts
	}

	var cred credential.Credential
	if cfg.KeyFile != "" {
		kf, err := credential.NewKeyFile(cfg.KeyFile, merged.Logger)
		if err != nil {
			return nil, err
		}
		cred = kf
	} else {
		mk, err := credential.NewMasterKey(cfg.Key)
		if err != nil {
			return nil, err
		}
		cred = mk
	}

	if merged.ConsistencyLevel == "" {
		merged.ConsistencyLevel = ConsistencyLevel(cfg.Consistency)
	}
	if merged.Retry.MaxRetries == 0 {
		merged.Retry.MaxRetries = cfg.MaxRetries
	}
	if merged.HTTPClient == nil && cfg.RequestTimeout > 0 {
		merged.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if merged.ApplicationName == "" {
		merged.ApplicationName = cfg.ApplicationName
	}
	return NewClient(cfg.Endpoint, cred, &merged)
}
