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

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "runlens", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)

	for _, flag := range []string{"verbose", "quiet", "json", "config"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("9.9.9", "deadbeef", "2026-01-01")

	v, c, b := GetVersion()
	assert.Equal(t, "9.9.9", v)
	assert.Equal(t, "deadbeef", c)
	assert.Equal(t, "2026-01-01", b)
}
