package googlesheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
)

// ErrMissingServiceAccount is returned when an email/key pair is incomplete
var ErrMissingServiceAccount = errors.New("service account email and private key are both required")

// ServiceAccountKey holds the fields of a service account JSON key the adaptor relies on
type ServiceAccountKey struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// NewWithJSONKeyFile creates a new SheetsAdaptor from a service account key file
func NewWithJSONKeyFile(ctx context.Context, config Config, jsonPath string) (*SheetsAdaptor, error) {
	jsonData, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON key file: %w", err)
	}
	return NewWithJSONKeyData(ctx, config, jsonData)
}

// NewWithJSONKeyData creates a new SheetsAdaptor from service account key data
func NewWithJSONKeyData(ctx context.Context, config Config, jsonData []byte) (*SheetsAdaptor, error) {
	if _, err := ParseServiceAccountJSON(jsonData); err != nil {
		return nil, err
	}

	creds, err := google.CredentialsFromJSON(ctx, jsonData, config.Scopes()...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	return NewSheetsAdaptor(ctx, config, option.WithCredentials(creds))
}

// NewWithServiceAccountKey creates a new SheetsAdaptor from a client email and
// PEM private key, as deployments pass them through environment variables.
// The key is not checked until the first request.
func NewWithServiceAccountKey(ctx context.Context, config Config, email string, privateKey string) (*SheetsAdaptor, error) {
	if email == "" || privateKey == "" {
		return nil, ErrMissingServiceAccount
	}

	jwtConfig := &jwt.Config{
		Email:      email,
		PrivateKey: []byte(NormalizePrivateKey(privateKey)),
		Scopes:     config.Scopes(),
		TokenURL:   google.JWTTokenURL,
	}

	return NewSheetsAdaptor(ctx, config, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
}

// NewWithDefaultCredentials creates a new SheetsAdaptor using Application Default Credentials
// (GOOGLE_APPLICATION_CREDENTIALS, gcloud or the metadata server)
func NewWithDefaultCredentials(ctx context.Context, config Config) (*SheetsAdaptor, error) {
	tokenSource, err := google.DefaultTokenSource(ctx, config.Scopes()...)
	if err != nil {
		return nil, fmt.Errorf("failed to get default token source: %w", err)
	}

	return NewSheetsAdaptor(ctx, config, option.WithTokenSource(tokenSource))
}

// NormalizePrivateKey restores line breaks of a PEM key that was stored with
// literal \n sequences, as CI secrets and .env files often do
func NormalizePrivateKey(key string) string {
	if strings.Contains(key, "\n") {
		return key
	}
	return strings.ReplaceAll(key, `\n`, "\n")
}

// ParseServiceAccountJSON checks that jsonData is a service account key
func ParseServiceAccountJSON(jsonData []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(jsonData, &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account JSON: %w", err)
	}

	if key.Type != "service_account" {
		return nil, fmt.Errorf("invalid key type: %s (expected: service_account)", key.Type)
	}

	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("missing required fields in service account key")
	}

	return &key, nil
}
