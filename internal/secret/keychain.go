package secret

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// KeychainService is the keychain service name secrets are filed under.
const KeychainService = "sqlplugin"

// errSecItemNotFound is the exit status of `security` for a missing item.
const errSecItemNotFound = 44

// securityFunc runs the `security` CLI and returns its stdout and exit status.
// err is only set when the command could not run at all.
type securityFunc func(args ...string) (stdout []byte, status int, stderr string, err error)

// KeychainStore implements SecretStore on the macOS Keychain through the
// `security` CLI tool.
type KeychainStore struct {
	service  string
	security securityFunc
}

// NewKeychainStore creates a store filing secrets under KeychainService.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{service: KeychainService, security: runSecurity}
}

func runSecurity(args ...string) ([]byte, int, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command("security", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), exitErr.ExitCode(), strings.TrimSpace(stderr.String()), nil
	}
	return stdout.Bytes(), 0, strings.TrimSpace(stderr.String()), err
}

// Set stores value under key, replacing any existing item.
func (k *KeychainStore) Set(key string, value []byte) error {
	_, status, stderr, err := k.security("add-generic-password",
		"-a", key,
		"-s", k.service,
		"-w", string(value),
		"-U",
	)
	if err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	if status != 0 {
		return fmt.Errorf("keychain set: exit status %d: %s", status, stderr)
	}
	return nil
}

// Get returns the secret for key, or nil and no error when there is none.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, status, stderr, err := k.security("find-generic-password",
		"-a", key,
		"-s", k.service,
		"-w",
	)
	switch {
	case err != nil:
		return nil, fmt.Errorf("keychain get: %w", err)
	case status == errSecItemNotFound:
		return nil, nil
	case status != 0:
		return nil, fmt.Errorf("keychain get: exit status %d: %s", status, stderr)
	}
	return bytes.TrimRight(out, "\r\n"), nil
}

// Delete removes the secret for key. A missing item is not an error.
func (k *KeychainStore) Delete(key string) error {
	_, status, stderr, err := k.security("delete-generic-password",
		"-a", key,
		"-s", k.service,
	)
	if err != nil {
		return fmt.Errorf("keychain delete: %w", err)
	}
	if status != 0 && status != errSecItemNotFound {
		return fmt.Errorf("keychain delete: exit status %d: %s", status, stderr)
	}
	return nil
}
