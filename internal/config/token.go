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

package config

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry inspects a DataHub personal access token without verifying its
// signature and returns the expiry claim. Returns ok=false when the token is
// not a JWT or carries no expiry; PATs minted without expiration are valid
// indefinitely.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// TokenExpiresWithin reports whether the token expires within d. Tokens that
// are not JWTs or have no expiry claim report false.
func TokenExpiresWithin(token string, d time.Duration) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return time.Until(exp) < d
}
