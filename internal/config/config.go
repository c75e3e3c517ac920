// Package config loads the service settings from sheetedit.yaml, the
// environment and an optional .env file.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	sheetedit "github.com/ideamans/go-sheetedit"
	"github.com/ideamans/go-sheetedit/adapters/excel"
	"github.com/ideamans/go-sheetedit/adapters/googlesheets"
)

const (
	configFileName = "sheetedit"
	configFileType = "yaml"
	envPrefix      = "SHEETEDIT"

	BackendSheets = "sheets"
	BackendExcel  = "excel"

	AuthHeader   = "header"
	AuthPassword = "password"
)

// User is one entry of auth.users
type User struct {
	Name         string `mapstructure:"name"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt
}

// Auth selects how callers are identified
type Auth struct {
	Mode   string `mapstructure:"mode"`   // header | password
	Header string `mapstructure:"header"` // trusted proxy header in header mode
	Users  []User `mapstructure:"users"`
}

// Column is one entry of columns
type Column struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"` // text | number
	Required bool   `mapstructure:"required"`
}

// Config is the full service configuration
type Config struct {
	Backend         string        `mapstructure:"backend"`
	SpreadsheetID   string        `mapstructure:"spreadsheet_id"`
	Sheet           string        `mapstructure:"sheet"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	ClientEmail     string        `mapstructure:"client_email"`
	PrivateKey      string        `mapstructure:"private_key"`
	ExcelPath       string        `mapstructure:"excel_path"`
	IdentityColumn  string        `mapstructure:"identity_column"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	Strategy        string        `mapstructure:"strategy"`
	VerifyVersions  bool          `mapstructure:"verify_versions"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	MaxRetries      int           `mapstructure:"max_retries"` // 0 disables retries
	Listen          string        `mapstructure:"listen"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	Columns         []Column      `mapstructure:"columns"`
	Auth            Auth          `mapstructure:"auth"`
}

var defaults = map[string]interface{}{
	"backend":          BackendSheets,
	"spreadsheet_id":   "",
	"sheet":            "",
	"credentials_file": "",
	"client_email":     "",
	"private_key":      "",
	"excel_path":       "",
	"identity_column":  sheetedit.DefaultIdentityColumn,
	"cache_ttl":        sheetedit.DefaultCacheTTL,
	"strategy":         string(sheetedit.StrategyRows),
	"verify_versions":  false,
	"refresh_interval": time.Duration(0),
	"max_retries":      3,
	"listen":           ":8080",
	"request_timeout":  30 * time.Second,
	"columns":          defaultColumns(),
	"auth.mode":        AuthHeader,
	"auth.header":      "X-Forwarded-User",
}

func defaultColumns() []map[string]interface{} {
	rules := sheetedit.CommissionColumns()
	out := make([]map[string]interface{}, len(rules))
	for i, r := range rules {
		out[i] = map[string]interface{}{
			"name":     r.Name,
			"type":     string(r.Type),
			"required": r.Required,
		}
	}
	return out
}

// Load reads the configuration. An explicit path must exist; without one,
// sheetedit.yaml is looked up in the working directory and may be absent.
// Environment variables (SHEETEDIT_SHEET, SHEETEDIT_AUTH_MODE, ...) win over the file.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings are complete and consistent
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet_id is required for the %s backend", BackendSheets)
		}
	case BackendExcel:
		if c.ExcelPath == "" {
			return fmt.Errorf("excel_path is required for the %s backend", BackendExcel)
		}
	default:
		return fmt.Errorf("unknown backend %q (expected %q or %q)", c.Backend, BackendSheets, BackendExcel)
	}

	if c.Sheet == "" {
		return fmt.Errorf("sheet is required")
	}
	if c.IdentityColumn == "" {
		return fmt.Errorf("identity_column must not be empty")
	}
	if _, err := sheetedit.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.RequestTimeout < 0 || c.RefreshInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if (c.ClientEmail == "") != (c.PrivateKey == "") {
		return fmt.Errorf("client_email and private_key must be set together")
	}
	if _, err := c.ColumnRules(); err != nil {
		return err
	}

	switch c.Auth.Mode {
	case AuthHeader:
		if c.Auth.Header == "" {
			return fmt.Errorf("auth.header is required in %s mode", AuthHeader)
		}
	case AuthPassword:
		if len(c.Auth.Users) == 0 {
			return fmt.Errorf("auth.users is required in %s mode", AuthPassword)
		}
		for i, u := range c.Auth.Users {
			if u.Name == "" || u.PasswordHash == "" {
				return fmt.Errorf("auth.users[%d] needs name and password_hash", i)
			}
		}
	default:
		return fmt.Errorf("unknown auth.mode %q (expected %q or %q)", c.Auth.Mode, AuthHeader, AuthPassword)
	}
	return nil
}

// ColumnRules converts the columns section into edit rules
func (c *Config) ColumnRules() (sheetedit.ColumnRules, error) {
	rules := make(sheetedit.ColumnRules, 0, len(c.Columns))
	for i, col := range c.Columns {
		if col.Name == "" {
			return nil, fmt.Errorf("columns[%d] needs a name", i)
		}
		typ, err := sheetedit.ParseColumnType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("columns[%d]: %w", i, err)
		}
		rules = append(rules, sheetedit.ColumnRule{Name: col.Name, Type: typ, Required: col.Required})
	}
	return rules, nil
}

// ClientConfig converts the settings into the core client configuration
func (c *Config) ClientConfig(log logrus.FieldLogger) *sheetedit.Config {
	strategy, _ := sheetedit.ParseStrategy(c.Strategy)
	columns, _ := c.ColumnRules()
	retries := c.MaxRetries
	if retries == 0 {
		// the core treats 0 as "use the default"
		retries = -1
	}
	return &sheetedit.Config{
		Sheet:           c.Sheet,
		IdentityColumn:  c.IdentityColumn,
		CacheTTL:        c.CacheTTL,
		Strategy:        strategy,
		VerifyVersions:  c.VerifyVersions,
		RefreshInterval: c.RefreshInterval,
		MaxRetries:      retries,
		Columns:         columns,
		Logger:          log,
	}
}

// Dialer returns the store opener for the configured backend
func (c *Config) Dialer() (sheetedit.Dialer, error) {
	switch c.Backend {
	case BackendSheets:
		sc := googlesheets.Config{SpreadsheetID: c.SpreadsheetID}
		credentials, email, key := c.CredentialsFile, c.ClientEmail, c.PrivateKey
		return func(ctx context.Context) (sheetedit.Adapter, error) {
			var (
				a   *googlesheets.SheetsAdaptor
				err error
			)
			switch {
			case email != "":
				a, err = googlesheets.NewWithServiceAccountKey(ctx, sc, email, key)
			case credentials != "":
				a, err = googlesheets.NewWithJSONKeyFile(ctx, sc, credentials)
			default:
				a, err = googlesheets.NewWithDefaultCredentials(ctx, sc)
			}
			if err != nil {
				return nil, err
			}
			return a, nil
		}, nil
	case BackendExcel:
		a, err := excel.New(&excel.Config{FilePath: c.ExcelPath})
		if err != nil {
			return nil, err
		}
		return func(context.Context) (sheetedit.Adapter, error) {
			return a, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// Credentials maps user names to bcrypt hashes
func (a Auth) Credentials() map[string]string {
	out := make(map[string]string, len(a.Users))
	for _, u := range a.Users {
		out[u.Name] = u.PasswordHash
	}
	return out
}
