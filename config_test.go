package docstore

import (
	"encoding/base64"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DOCSTORE_ENDPOINT", "https://myaccount.documents.example:443/")
	t.Setenv("DOCSTORE_KEY", base64.StdEncoding.EncodeToString([]byte("env-master-key")))
	t.Setenv("DOCSTORE_KEY_FILE", "")
	t.Setenv("DOCSTORE_CONSISTENCY", "")
	t.Setenv("DOCSTORE_MAX_RETRIES", "")
	t.Setenv("DOCSTORE_REQUEST_TIMEOUT", "")
	t.Setenv("DOCSTORE_APP_NAME", "")
}

func TestConfigFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Endpoint != "https://myaccount.documents.example:443/" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Consistency != "Session" {
		t.Errorf("Consistency = %q, want Session", cfg.Consistency)
	}
	if cfg.MaxRetries != 9 {
		t.Errorf("MaxRetries = %d, want 9", cfg.MaxRetries)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
}

func TestConfigFromEnvMissingEndpoint(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DOCSTORE_ENDPOINT", "")

	if _, err := ConfigFromEnv(); err == nil {
		t.Error("missing endpoint should fail")
	}
}

func TestConfigRequiresExactlyOneKeySource(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DOCSTORE_KEY", "")

	if _, err := ConfigFromEnv(); err == nil {
		t.Error("no key source should fail")
	}

	t.Setenv("DOCSTORE_KEY", base64.StdEncoding.EncodeToString([]byte("k")))
	t.Setenv("DOCSTORE_KEY_FILE", "/etc/docstore/key")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("two key sources should fail")
	}
}

func TestNewClientFromEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DOCSTORE_APP_NAME", "orders-svc")

	client, err := NewClientFromEnv(nil)
	if err != nil {
		t.Fatalf("NewClientFromEnv: %v", err)
	}
	defer client.Close()

	if got := client.Endpoint(); got != "https://myaccount.documents.example:443/" {
		t.Errorf("Endpoint = %q", got)
	}
	if client.consistency != ConsistencySession {
		t.Errorf("consistency = %q, want Session", client.consistency)
	}
}

func TestNewClientFromConfigLeavesOptionsUntouched(t *testing.T) {
	setBaseEnv(t)

	opts := &ClientOptions{ConsistencyLevel: ConsistencyEventual}
	client, err := NewClientFromEnv(opts)
	if err != nil {
		t.Fatalf("NewClientFromEnv: %v", err)
	}
	defer client.Close()

	if client.consistency != ConsistencyEventual {
		t.Errorf("client consistency = %q, want the caller's Eventual", client.consistency)
	}
	if opts.HTTPClient != nil || opts.ApplicationName != "" || opts.Retry.MaxRetries != 0 {
		t.Errorf("caller options were modified: %+v", opts)
	}
}

func TestNewClientFromConfigRejectsBadKey(t *testing.T) {
	_, err := NewClientFromConfig(Config{
		Endpoint: "https://myaccount.documents.example:443/",
		Key:      "not base64!!!",
	}, nil)
	if err == nil {
		t.Error("bad master key should fail")
	}
}
