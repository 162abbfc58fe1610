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

// Package secrets implements the secrets command for storing API keys in
// the system keychain.
package secrets

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/runlens/runlens/internal/commands/shared"
	"github.com/runlens/runlens/internal/secrets"
)

// NewCommand creates the secrets command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage API keys and tokens in the system keychain",
		Long: `Store catalog tokens and API keys in the system keychain instead of
config files. Config values of the form "keyring:<key>" resolve through
the keychain at load time.

Examples:
  runlens secrets set datahub-token
  runlens secrets set langsmith-api-key
  runlens secrets delete datahub-token

Then reference them in config:
  catalog:
    token: keyring:datahub-token`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret in the keychain",
		Long: `Store a secret under the given key.

The value is read from an interactive hidden prompt, or from stdin:
  echo "value" | runlens secrets set datahub-token`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readSecret(cmd)
			if err != nil {
				return shared.NewConfigError("failed to read secret value", err)
			}
			if err := secrets.NewStore().Set(args[0], value); err != nil {
				return shared.NewConfigError("failed to store secret", err)
			}
			cmd.Printf("Stored %q. Reference it in config as keyring:%s\n", args[0], args[0])
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a secret from the keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := secrets.NewStore().Get(args[0])
			if err != nil {
				return shared.NewConfigError("failed to read secret", err)
			}
			cmd.Println(value)
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret from the keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.NewStore().Delete(args[0]); err != nil {
				return shared.NewConfigError("failed to delete secret", err)
			}
			cmd.Printf("Deleted %q\n", args[0])
			return nil
		},
	}
}

// readSecret reads the secret value: hidden prompt on a terminal, a single
// stdin line otherwise.
func readSecret(cmd *cobra.Command) (string, error) {
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.OutOrStdout(), "Value: ")
		value, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(value)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
