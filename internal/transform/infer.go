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

package transform

import "strings"

// InferProvider determines the provider from a model name.
func InferProvider(modelName string) string {
	lower := strings.ToLower(modelName)
	switch {
	case strings.Contains(lower, "gpt"),
		strings.Contains(lower, "davinci"),
		strings.Contains(lower, "curie"),
		strings.Contains(lower, "openai"):
		return "OpenAI"
	case strings.Contains(lower, "claude"),
		strings.Contains(lower, "anthropic"):
		return "Anthropic"
	default:
		return "unknown"
	}
}

// InferFamily determines the model family from a model name.
func InferFamily(modelName string) string {
	lower := strings.ToLower(modelName)
	switch {
	case strings.Contains(lower, "gpt-4"):
		return "GPT-4"
	case strings.Contains(lower, "gpt-3.5"):
		return "GPT-3.5"
	case strings.Contains(lower, "claude"):
		return "Claude"
	default:
		return "Language Model"
	}
}

// InferCapabilities determines capabilities from a model name. Every model
// gets text-generation; chat-tuned families add chat and function calling.
func InferCapabilities(modelName string) []string {
	capabilities := []string{"text-generation"}
	lower := strings.ToLower(modelName)

	if strings.Contains(lower, "gpt-") || strings.Contains(lower, "claude") {
		capabilities = append(capabilities, "chat", "function-calling")
	}

	return capabilities
}
