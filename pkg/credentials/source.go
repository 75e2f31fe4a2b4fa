package credentials

import (
	"context"
	"os"
)

// TokenEnvVar is the environment variable consulted by EnvSource.
const TokenEnvVar = "KOINONIA_API_TOKEN"

// TokenSource resolves the bearer token attached to upstream requests.
// An empty token with a nil error means no credential is available.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static always returns the same token.
type Static string

func (s Static) Token(context.Context) (string, error) {
	return string(s), nil
}

// EnvSource reads the token from an environment variable.
type EnvSource struct {
	// Var defaults to TokenEnvVar.
	Var string
}

func (e EnvSource) Token(context.Context) (string, error) {
	name := e.Var
	if name == "" {
		name = TokenEnvVar
	}
	return os.Getenv(name), nil
}

// FileSource reads the token of a profile stored in credentials.toml.
// The file is read on every call so `koinonia auth` takes effect without a
// restart.
type FileSource struct {
	Manager *Manager
	Profile string
}

func (f FileSource) Token(context.Context) (string, error) {
	p, err := f.Manager.GetProfile(f.Profile)
	if err != nil {
		return "", err
	}
	return p.Token, nil
}

// Chain returns the first non-empty token from its sources, in order.
// The first error stops the chain.
type Chain []TokenSource

func (c Chain) Token(ctx context.Context) (string, error) {
	for _, src := range c {
		if src == nil {
			continue
		}

		tok, err := src.Token(ctx)
		if err != nil {
			return "", err
		}
		if tok != "" {
			return tok, nil
		}
	}
	return "", nil
}
