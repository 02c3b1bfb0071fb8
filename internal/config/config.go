package config

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port      string `mapstructure:"PORT"`
	Env       string `mapstructure:"ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	AuthMode  string `mapstructure:"AUTH_MODE"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Messaging identity: accredited-system ids for the sending gateway and
	// the receiving exchange, plus the directory identity of the
	// authenticated agent placed in each ControlActEvent.
	FromASID         string `mapstructure:"FROM_ASID"`
	ToASID           string `mapstructure:"TO_ASID"`
	SDSRoleProfileID string `mapstructure:"SDS_ROLE_PROFILE_ID"`
	SDSUserID        string `mapstructure:"SDS_USER_ID"`
	SDSJobRoleCode   string `mapstructure:"SDS_JOB_ROLE_CODE"`

	// Signature trust: PEM files (comma-separated paths) or inline PEM for
	// the sub-CA certificates allowed to issue prescriber signing certs.
	TrustedCAFiles []string `mapstructure:"TRUSTED_CA_FILES"`
	TrustedCAPEM   string   `mapstructure:"TRUSTED_CA_PEM"`
	CRLTimeoutSecs int      `mapstructure:"CRL_TIMEOUT_SECONDS"`

	SpineBaseURL   string `mapstructure:"SPINE_BASE_URL"`
	TrackerBaseURL string `mapstructure:"TRACKER_BASE_URL"`
	ODSBaseURL     string `mapstructure:"ODS_BASE_URL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "9000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("CRL_TIMEOUT_SECONDS", 10)
	v.SetDefault("ODS_BASE_URL", "https://directory.spineservices.nhs.uk/ORD/2-0-0")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("FROM_ASID")
	v.BindEnv("TO_ASID")
	v.BindEnv("SDS_ROLE_PROFILE_ID")
	v.BindEnv("SDS_USER_ID")
	v.BindEnv("SDS_JOB_ROLE_CODE")
	v.BindEnv("TRUSTED_CA_FILES")
	v.BindEnv("TRUSTED_CA_PEM")
	v.BindEnv("CRL_TIMEOUT_SECONDS")
	v.BindEnv("SPINE_BASE_URL")
	v.BindEnv("TRACKER_BASE_URL")
	v.BindEnv("ODS_BASE_URL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TrustedCAFiles == nil {
		files := v.GetString("TRUSTED_CA_FILES")
		if files != "" {
			cfg.TrustedCAFiles = strings.Split(files, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CRLTimeout returns the bound applied to every revocation-list fetch.
func (c *Config) CRLTimeout() time.Duration {
	if c.CRLTimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.CRLTimeoutSecs) * time.Second
}

// ResolvedTrackerBaseURL returns the prescription-tracker endpoint. A
// dedicated TRACKER_BASE_URL wins; otherwise the tracker rides the Spine
// base URL under its well-known path. Empty means no tracker is configured
// and the verify cross-check is skipped.
func (c *Config) ResolvedTrackerBaseURL() string {
	if c.TrackerBaseURL != "" {
		return c.TrackerBaseURL
	}
	if c.SpineBaseURL != "" {
		return strings.TrimRight(c.SpineBaseURL, "/") + "/mm"
	}
	return ""
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise the mode is inferred:
//   - ENV=development → "development" (no auth)
//   - otherwise       → "bearer" (JWT bearer tokens, JWT_SECRET required)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "bearer"
}

// TrustedCertificates loads the configured sub-CA certificates from the PEM
// files and the inline PEM block, in that order.
func (c *Config) TrustedCertificates() ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, path := range c.TrustedCAFiles {
		data, err := os.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return nil, fmt.Errorf("read trusted CA file %s: %w", path, err)
		}
		parsed, err := parsePEMCertificates(data)
		if err != nil {
			return nil, fmt.Errorf("parse trusted CA file %s: %w", path, err)
		}
		certs = append(certs, parsed...)
	}
	if c.TrustedCAPEM != "" {
		parsed, err := parsePEMCertificates([]byte(c.TrustedCAPEM))
		if err != nil {
			return nil, fmt.Errorf("parse TRUSTED_CA_PEM: %w", err)
		}
		certs = append(certs, parsed...)
	}
	return certs, nil
}

func parsePEMCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no CERTIFICATE blocks found")
	}
	return certs, nil
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret and the messaging identity are required.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "bearer" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"bearer\", got %q", mode)
	}
	if mode == "bearer" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is \"bearer\" (current ENV=%q). "+
			"Refusing to start without authentication configuration", c.Env)
	}
	if c.IsProduction() {
		if c.FromASID == "" || c.ToASID == "" {
			return fmt.Errorf("FROM_ASID and TO_ASID are required in production")
		}
		if len(c.TrustedCAFiles) == 0 && c.TrustedCAPEM == "" {
			return fmt.Errorf("trusted CA certificates are required in production (TRUSTED_CA_FILES or TRUSTED_CA_PEM)")
		}
	}
	return nil
}
