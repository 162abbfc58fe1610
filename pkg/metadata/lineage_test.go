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

package metadata

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineageTracker(t *testing.T) {
	tracker := NewLineageTracker()

	runURN := RunURN("r1")
	modelURN := ModelURN("OpenAI", "gpt-4o")
	parentURN := RunURN("parent")

	tracker.Add(runURN, modelURN, LineageUses)
	tracker.Add(runURN, parentURN, LineagePartOf)

	down := tracker.Downstream(runURN)
	assert.Len(t, down, 2)

	up := tracker.Upstream(modelURN)
	assert.Len(t, up, 1)
	assert.Equal(t, runURN, up[0].SourceURN)
	assert.Equal(t, LineageUses, up[0].Type)

	assert.Empty(t, tracker.Upstream(runURN))
	assert.Len(t, tracker.Edges(), 2)
}

func TestLineageTrackerConcurrent(t *testing.T) {
	tracker := NewLineageTracker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tracker.Add(RunURN("r"), ModelURN("OpenAI", "gpt-4o"), LineageUses)
		}(i)
	}
	wg.Wait()

	assert.Len(t, tracker.Edges(), 10)
}
