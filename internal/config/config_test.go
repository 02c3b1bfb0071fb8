package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.CRLTimeoutSecs != 10 {
		t.Errorf("CRLTimeoutSecs = %d, want 10", cfg.CRLTimeoutSecs)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8123")
	t.Setenv("ENV", "production")
	t.Setenv("FROM_ASID", "200000001285")
	t.Setenv("TRUSTED_CA_FILES", "/etc/epsgw/ca1.pem,/etc/epsgw/ca2.pem")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8123" {
		t.Errorf("Port = %q, want 8123", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false with ENV=production")
	}
	if cfg.FromASID != "200000001285" {
		t.Errorf("FromASID = %q", cfg.FromASID)
	}
	if len(cfg.TrustedCAFiles) != 2 {
		t.Errorf("TrustedCAFiles = %v, want two paths", cfg.TrustedCAFiles)
	}
}

func TestResolvedAuthMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"development env defaults to no auth", Config{Env: "development"}, "development"},
		{"production env defaults to bearer", Config{Env: "production"}, "bearer"},
		{"explicit mode wins", Config{Env: "production", AuthMode: "development"}, "development"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolvedAuthMode(); got != tt.want {
				t.Errorf("ResolvedAuthMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolvedTrackerBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"dedicated tracker url wins", Config{SpineBaseURL: "https://spine.example", TrackerBaseURL: "https://tracker.example"}, "https://tracker.example"},
		{"falls back to spine base url", Config{SpineBaseURL: "https://spine.example/"}, "https://spine.example/mm"},
		{"empty when neither configured", Config{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolvedTrackerBaseURL(); got != tt.want {
				t.Errorf("ResolvedTrackerBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"development needs nothing", Config{Env: "development"}, false},
		{"bearer without secret", Config{Env: "staging"}, true},
		{"bearer with secret", Config{Env: "staging", JWTSecret: "s3cret", FromASID: "1", ToASID: "2"}, false},
		{"production without asids", Config{Env: "production", JWTSecret: "s3cret", TrustedCAPEM: "pem"}, true},
		{
			"production fully configured",
			Config{Env: "production", JWTSecret: "s3cret", FromASID: "1", ToASID: "2", TrustedCAPEM: "pem"},
			false,
		},
		{
			"production without trust anchors",
			Config{Env: "production", JWTSecret: "s3cret", FromASID: "1", ToASID: "2"},
			true,
		},
		{"unknown auth mode", Config{Env: "development", AuthMode: "mtls"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCRLTimeout(t *testing.T) {
	if got := (&Config{CRLTimeoutSecs: 3}).CRLTimeout(); got != 3*time.Second {
		t.Errorf("CRLTimeout() = %v, want 3s", got)
	}
	if got := (&Config{}).CRLTimeout(); got != 10*time.Second {
		t.Errorf("CRLTimeout() zero value = %v, want 10s", got)
	}
}

func selfSignedPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestTrustedCertificates(t *testing.T) {
	pemData := selfSignedPEM(t)

	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, pemData, 0o600); err != nil {
		t.Fatalf("write CA file: %v", err)
	}

	cfg := Config{TrustedCAFiles: []string{path}, TrustedCAPEM: string(selfSignedPEM(t))}
	certs, err := cfg.TrustedCertificates()
	if err != nil {
		t.Fatalf("TrustedCertificates: %v", err)
	}
	if len(certs) != 2 {
		t.Errorf("certs = %d, want 2", len(certs))
	}
}

func TestTrustedCertificatesErrors(t *testing.T) {
	if _, err := (&Config{TrustedCAFiles: []string{"/nonexistent/ca.pem"}}).TrustedCertificates(); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := (&Config{TrustedCAPEM: "not pem at all"}).TrustedCertificates(); err == nil {
		t.Error("junk PEM accepted")
	}
}
