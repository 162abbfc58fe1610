// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package secrets stores API keys and tokens in the system keychain so they
// never have to live in config files. Config values of the form
// "keyring:<key>" resolve through this package.
//
// Supported platforms:
//   - macOS: Keychain Access
//   - Linux: Secret Service API (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
package secrets

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/runlens/runlens/pkg/errors"
)

// service is the keychain service name all entries live under.
const service = "runlens"

// referencePrefix marks a config value that resolves through the keychain.
const referencePrefix = "keyring:"

// Store reads and writes secrets in the system keychain.
type Store struct{}

// NewStore creates a keychain-backed store.
func NewStore() *Store {
	return &Store{}
}

// Get retrieves a secret by key.
func (s *Store) Get(key string) (string, error) {
	value, err := keyring.Get(service, key)
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return "", &errors.NotFoundError{Resource: "secret", ID: key}
		}
		return "", fmt.Errorf("keychain error: %w", err)
	}
	return value, nil
}

// Set stores a secret under key.
func (s *Store) Set(key, value string) error {
	if key == "" {
		return &errors.ValidationError{
			Field:   "key",
			Message: "secret key is required",
		}
	}
	if err := keyring.Set(service, key, value); err != nil {
		return fmt.Errorf("keychain error: %w", err)
	}
	return nil
}

// Delete removes a secret by key.
func (s *Store) Delete(key string) error {
	if err := keyring.Delete(service, key); err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return &errors.NotFoundError{Resource: "secret", ID: key}
		}
		return fmt.Errorf("keychain error: %w", err)
	}
	return nil
}

// IsReference reports whether a config value is a keychain reference.
func IsReference(value string) bool {
	return strings.HasPrefix(value, referencePrefix)
}

// Resolve dereferences "keyring:<key>" values through the store; any other
// value is returned unchanged.
func (s *Store) Resolve(value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	key := strings.TrimPrefix(value, referencePrefix)
	if key == "" {
		return "", &errors.ValidationError{
			Field:      "secret",
			Message:    "keyring reference has no key",
			Suggestion: "use the form keyring:<key>",
		}
	}
	return s.Get(key)
}
