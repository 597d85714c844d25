package secret

import (
	"fmt"
	"strings"
)

// Resolver turns a configured credential into its clear value. Values of the form
// "<scheme>:<key>" for a registered scheme are read from that store; anything else
// is returned unchanged.
type Resolver struct {
	stores map[string]SecretStore
}

// NewResolver returns a resolver with the "keychain" and "env" schemes registered.
func NewResolver() *Resolver {
	r := &Resolver{stores: make(map[string]SecretStore)}
	r.Register("keychain", NewKeychainStore())
	r.Register("env", EnvStore{})
	return r
}

// Register binds scheme to store, replacing any previous binding.
func (r *Resolver) Register(scheme string, store SecretStore) {
	r.stores[strings.ToLower(scheme)] = store
}

// Store returns the store registered for scheme.
func (r *Resolver) Store(scheme string) (SecretStore, bool) {
	s, ok := r.stores[strings.ToLower(scheme)]
	return s, ok
}

// Resolve returns the clear value of a configured credential.
func (r *Resolver) Resolve(value string) (string, error) {
	scheme, key, ok := strings.Cut(value, ":")
	if !ok {
		return value, nil
	}
	store, ok := r.Store(scheme)
	if !ok {
		return value, nil
	}
	secret, err := store.Get(key)
	if err != nil {
		return "", fmt.Errorf("resolve %s secret %q: %w", scheme, key, err)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("resolve %s secret %q: %w", scheme, key, ErrNotFound)
	}
	return string(secret), nil
}
