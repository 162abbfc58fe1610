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
	"fmt"
	"strings"
)

// Fabric environments for URN construction.
const (
	EnvProd = "PROD"
	EnvDev  = "DEV"
)

// PlatformLLM is the catalog data platform all run/chain datasets live under.
const PlatformLLM = "llm"

// DataPlatformURN builds a data platform URN, e.g. "urn:li:dataPlatform:llm".
func DataPlatformURN(platform string) string {
	return fmt.Sprintf("urn:li:dataPlatform:%s", platform)
}

// DatasetURN builds a dataset URN in the catalog's tuple form:
// "urn:li:dataset:(urn:li:dataPlatform:<platform>,<name>,<env>)".
func DatasetURN(platform, name, env string) string {
	return fmt.Sprintf("urn:li:dataset:(%s,%s,%s)", DataPlatformURN(platform), name, env)
}

// MLModelURN builds an ML model URN:
// "urn:li:mlModel:(urn:li:dataPlatform:<platform>,<name>,<env>)".
func MLModelURN(platform, name, env string) string {
	return fmt.Sprintf("urn:li:mlModel:(%s,%s,%s)", DataPlatformURN(platform), name, env)
}

// RunURN builds the dataset URN for an LLM run.
func RunURN(runID string) string {
	return DatasetURN(PlatformLLM, "runs/"+runID, EnvProd)
}

// ChainURN builds the dataset URN for an LLM chain.
func ChainURN(chainID string) string {
	return DatasetURN(PlatformLLM, "chains/"+chainID, EnvProd)
}

// ModelURN builds the ML model URN for a provider/model pair.
func ModelURN(provider, name string) string {
	return MLModelURN(PlatformLLM, provider+"/"+name, EnvProd)
}

// IsDatasetURN reports whether the URN identifies a dataset entity.
func IsDatasetURN(urn string) bool {
	return strings.HasPrefix(urn, "urn:li:dataset:")
}

// IsMLModelURN reports whether the URN identifies an ML model entity.
func IsMLModelURN(urn string) bool {
	return strings.HasPrefix(urn, "urn:li:mlModel:")
}
