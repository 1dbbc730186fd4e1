package estimate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yazinsai/cal-ai/internal/errvalues"
)

// CredentialProvider supplies the API key for each request.
type CredentialProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// EnvCredentials reads the key from an environment variable at call time.
type EnvCredentials struct {
	Var string
}

func (e EnvCredentials) APIKey(context.Context) (string, error) {
	name := strings.TrimSpace(e.Var)
	if name == "" {
		return "", fmt.Errorf("%w: no environment variable configured", errvalues.ErrMissingCredential)
	}
	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set", errvalues.ErrMissingCredential, name)
	}
	return key, nil
}

type StaticCredentials string

func (s StaticCredentials) APIKey(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errvalues.ErrMissingCredential
	}
	return string(s), nil
}
