// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xstrings converts operator names between their CamelCase and snake_case spellings
// and turns free text into C identifiers.
package xstrings

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reLowerUpper = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	reAcronym    = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	reSeparators = regexp.MustCompile(`[_\-]`)
)

// SnakeFromCamel converts "AllGatherMatmulV2" to "all_gather_matmul_v2" and
// "MoeEPLBUpdateExpert" to "moe_eplb_update_expert".
func SnakeFromCamel(name string) string {
	s := reLowerUpper.ReplaceAllString(name, "${1}_${2}")
	s = reAcronym.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}

// CamelFromSnake converts "all_gather_matmul" (or "all-gather-matmul") to "AllGatherMatmul".
// Each part is capitalized and the rest of the part lower-cased.
func CamelFromSnake(snake string) string {
	var sb strings.Builder
	for _, part := range reSeparators.Split(snake, -1) {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}
	return sb.String()
}

// SanitizeIdentifier maps s to a valid C/C++ identifier: every character outside
// [A-Za-z0-9_] becomes '_', and a leading digit gets a '_' prefix.
// An empty (or all-blank) input returns fallback.
func SanitizeIdentifier(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	var sb strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	id := sb.String()
	if id[0] >= '0' && id[0] <= '9' {
		id = "_" + id
	}
	return id
}

// CEscape quotes s as the body of a C string literal (without the surrounding quotes).
func CEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
