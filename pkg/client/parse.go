package client

import (
	"encoding/json"
	"strings"

	"github.com/menta2k/roi-cropper/pkg/types"
)

// ParseRegionResult decodes a model answer into a RegionResult.
// Answers that carry no usable JSON yield zero regions and a description
// saying why, never an error: a chatty model must not abort a batch.
func ParseRegionResult(raw string) *types.RegionResult {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return &types.RegionResult{Description: "Model returned non-JSON response"}
	}

	var result types.RegionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return &types.RegionResult{Description: "Failed to parse model response"}
	}
	if result.Regions == nil {
		result.Regions = []types.Box{}
	}
	return &result
}

// SanitizeModelJSON removes code fences, comments and trailing commas and
// keeps only the outermost {...}
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = stripTrailingCommas(stripComments(raw))

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// stripComments drops // and /* */ comments outside string literals
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var str stringState
	for i := 0; i < len(s); i++ {
		c := s[i]
		if str.step(c) {
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				// keep the newline
				for i+1 < len(s) && s[i+1] != '\n' {
					i++
				}
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					return b.String()
				}
				i += 2 + end + 1
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// stripTrailingCommas drops commas that directly precede a closing } or ]
// outside string literals
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var str stringState
	for i := 0; i < len(s); i++ {
		c := s[i]
		if str.step(c) {
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// stringState follows JSON string literals one byte at a time
type stringState struct {
	in, escaped bool
}

// step consumes c and reports whether it belongs to a string literal,
// quotes included
func (st *stringState) step(c byte) bool {
	switch {
	case st.escaped:
		st.escaped = false
	case st.in && c == '\\':
		st.escaped = true
	case c == '"':
		st.in = !st.in
		return true
	case !st.in:
		return false
	}
	return true
}
