// Package secrets resolves credential references in notifier settings.
//
// A value of the form "env:NAME" is read from the environment and
// "secretsmanager:<secret-id>" from AWS Secrets Manager. Any other value is
// used literally.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const (
	envPrefix            = "env:"
	secretsManagerPrefix = "secretsmanager:"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver resolves and caches secret references.
type Resolver struct {
	sm     SecretsManagerAPI
	lookup func(string) (string, bool)

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a resolver. sm may be nil, in which case Secrets
// Manager references fail to resolve.
func NewResolver(sm SecretsManagerAPI) *Resolver {
	return &Resolver{sm: sm, lookup: os.LookupEnv, cache: make(map[string]string)}
}

// IsReference reports whether v needs resolving.
func IsReference(v string) bool {
	return strings.HasPrefix(v, envPrefix) || strings.HasPrefix(v, secretsManagerPrefix)
}

// NeedsSecretsManager reports whether any value refers to Secrets Manager.
func NeedsSecretsManager(values ...string) bool {
	for _, v := range values {
		if strings.HasPrefix(v, secretsManagerPrefix) {
			return true
		}
	}
	return false
}

// Resolve returns the secret value behind v.
func (r *Resolver) Resolve(ctx context.Context, v string) (string, error) {
	switch {
	case strings.HasPrefix(v, envPrefix):
		name := strings.TrimPrefix(v, envPrefix)
		val, ok := r.lookup(name)
		if !ok {
			return "", fmt.Errorf("environment variable %q not set", name)
		}
		return val, nil
	case strings.HasPrefix(v, secretsManagerPrefix):
		return r.fromSecretsManager(ctx, strings.TrimPrefix(v, secretsManagerPrefix))
	default:
		return v, nil
	}
}

func (r *Resolver) fromSecretsManager(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache[id]; ok {
		return v, nil
	}
	if r.sm == nil {
		return "", fmt.Errorf("secret %q: secrets manager not configured", id)
	}
	out, err := r.sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &id})
	if err != nil {
		return "", fmt.Errorf("fetching secret %q: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value", id)
	}
	r.cache[id] = *out.SecretString
	return *out.SecretString, nil
}
