// Copyright The taintflow Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package formatutil manipulates string colors and other formatting operations.
package formatutil

import (
	"fmt"

	"golang.org/x/term"
)

var (
	// Bold formats its arguments in bold.
	Bold = Color("\033[1m%s\033[0m")
	// Faint formats its arguments in faint characters.
	Faint = Color("\033[2m%s\033[0m")
	// Red formats its arguments in red.
	Red = Color("\033[1;31m%s\033[0m")
	// Green formats its arguments in green.
	Green = Color("\033[1;32m%s\033[0m")
	// Yellow formats its arguments in yellow.
	Yellow = Color("\033[1;33m%s\033[0m")
	// Purple formats its arguments in purple.
	Purple = Color("\033[1;34m%s\033[0m")
	// Cyan formats its arguments in cyan.
	Cyan = Color("\033[1;36m%s\033[0m")
)

// Color returns a function that formats its arguments with the escape sequence in colorString
// when standard output is a terminal, and leaves them unformatted otherwise.
func Color(colorString string) func(...interface{}) string {
	return func(args ...interface{}) string {
		if term.IsTerminal(1) {
			return fmt.Sprintf(colorString, fmt.Sprint(args...))
		}
		return fmt.Sprint(args...)
	}
}

// Sanitize is a simple sanitizer that removes all escape sequences
func Sanitize(s string) string {
	r := fmt.Sprintf("%q", s)
	if len(r) >= 2 {
		return r[1 : len(r)-1]
	}
	return r
}

// SanitizeRepr is a simple sanitizer that removes all escape sequences from the string representation of an object
func SanitizeRepr(s fmt.Stringer) string {
	return Sanitize(s.String())
}
