// Package modeljson decodes JSON objects out of reasoning-model output.
// Models wrap JSON in prose, code fences, or emit slightly malformed
// payloads; decoding here either yields a typed value or a typed
// ParseError so callers can apply their colocated defaults explicitly.
package modeljson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseError reports that model output could not be decoded into the target
// type. Callers substitute defaults; they never propagate raw output.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("modeljson: %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode extracts the first JSON object from raw model output and decodes it
// into v. Strict decoding is attempted first; on failure the payload is run
// through jsonrepair once and decoded again.
func Decode(raw string, v interface{}) error {
	payload := extractObject(raw)
	if payload == "" {
		return &ParseError{Stage: "extract", Err: fmt.Errorf("no JSON object found in %d bytes of output", len(raw))}
	}

	if err := json.Unmarshal([]byte(payload), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(payload)
	if err != nil {
		return &ParseError{Stage: "repair", Err: err}
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return &ParseError{Stage: "decode", Err: err}
	}
	return nil
}

// extractObject returns the outermost {...} span of s, tolerating markdown
// code fences and surrounding prose.
func extractObject(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = rest[:j]
		} else {
			s = rest
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
