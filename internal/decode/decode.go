// Package decode extracts a structured JSON object from free-form model text.
//
// Decoding is attempted in tiers, most specific first, and stops at the first
// tier that yields a JSON object:
//
//	whole      the entire text is a JSON object
//	fenced     a ```json fenced block holds the object
//	reasoning  reasoning traces and prefaces are stripped, the rest is parsed
//	bracket    the first balanced {...} substring is parsed
//	repair     near-valid JSON is repaired (trailing commas, bare keys, quotes)
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/valpere/synsetran/internal/postprocess"
)

// Tier names the decoding strategy that produced a payload.
type Tier string

const (
	TierWhole     Tier = "whole"
	TierFenced    Tier = "fenced"
	TierReasoning Tier = "reasoning"
	TierBracket   Tier = "bracket"
	TierRepair    Tier = "repair"
)

// ErrUndecodable is returned (wrapped in *Error) when no tier succeeds.
var ErrUndecodable = errors.New("decode: no structured payload found")

// Error reports a decode failure and keeps the original text for audit.
type Error struct {
	Raw   string
	Tried []Tier
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode: no JSON object found after tiers %v (%d bytes of text)", e.Tried, len(e.Raw))
}

func (e *Error) Unwrap() error { return ErrUndecodable }

// Result is a decoded payload together with the tier that produced it.
type Result struct {
	Payload map[string]any
	Tier    Tier
}

type strategy struct {
	tier Tier
	run  func(raw string) (map[string]any, bool)
}

// strategies is ordered; Decode short-circuits on the first success.
var strategies = []strategy{
	{TierWhole, decodeWhole},
	{TierFenced, decodeFenced},
	{TierReasoning, decodeReasoning},
	{TierBracket, decodeBracket},
	{TierRepair, decodeRepair},
}

// Decode turns backend text into a JSON object. It never reports an empty
// object as success unless the model literally returned one.
func Decode(raw string) (Result, error) {
	var tried []Tier
	if strings.TrimSpace(raw) != "" {
		for _, s := range strategies {
			tried = append(tried, s.tier)
			if payload, ok := s.run(raw); ok {
				return Result{Payload: payload, Tier: s.tier}, nil
			}
		}
	}
	return Result{}, &Error{Raw: raw, Tried: tried}
}

func parseObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

func decodeWhole(raw string) (map[string]any, bool) {
	return parseObject(raw)
}

// fenceRe captures the body of ``` or ```json fenced blocks.
var fenceRe = regexp.MustCompile("(?is)```[ \\t]*(?:json5?|javascript|js)?[ \\t]*\\r?\\n?(.*?)```")

func fencedBodies(text string) []string {
	var out []string
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			out = append(out, body)
		}
	}
	return out
}

func decodeFenced(raw string) (map[string]any, bool) {
	for _, body := range fencedBodies(raw) {
		if payload, ok := parseObject(body); ok {
			return payload, true
		}
	}
	return nil, false
}

func cleaned(raw string) string {
	return postprocess.StripEchoes(postprocess.StripReasoning(raw))
}

func decodeReasoning(raw string) (map[string]any, bool) {
	text := cleaned(raw)
	if payload, ok := parseObject(text); ok {
		return payload, true
	}
	return decodeFenced(text)
}

func decodeBracket(raw string) (map[string]any, bool) {
	for _, text := range []string{cleaned(raw), raw} {
		for _, candidate := range balancedObjects(text) {
			if payload, ok := parseObject(candidate); ok {
				return payload, true
			}
		}
	}
	return nil, false
}

func decodeRepair(raw string) (map[string]any, bool) {
	for _, candidate := range repairCandidates(raw) {
		fixed, err := jsonrepair.JSONRepair(candidate)
		if err != nil {
			continue
		}
		payload, ok := parseObject(fixed)
		if !ok {
			continue
		}
		// The repairer closes a bare "{" into an empty object.
		if len(payload) == 0 && !emptyLiteral(candidate) {
			continue
		}
		return payload, true
	}
	return nil, false
}

// emptyLiteral reports whether s is a closed object with nothing inside.
func emptyLiteral(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return false
	}
	return strings.TrimSpace(s[1:len(s)-1]) == ""
}

// repairCandidates lists object-like regions of the text, most promising
// first, without duplicates.
func repairCandidates(raw string) []string {
	text := cleaned(raw)
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] || !strings.HasPrefix(s, "{") {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, body := range fencedBodies(text) {
		add(body)
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			add(text[start : end+1])
		}
		// Unterminated objects: let the repairer close them.
		add(text[start:])
	}
	add(text)
	return out
}

// balancedObjects returns every substring that starts at a '{' and ends at
// its matching '}', in order of the opening brace. The text is scanned once;
// quotes only delimit strings inside an open brace, and braces inside
// strings are ignored. Unclosed braces yield nothing.
func balancedObjects(text string) []string {
	type span struct{ start, end int }
	var (
		spans    []span
		open     []int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = len(open) > 0
		case '{':
			open = append(open, i)
		case '}':
			if n := len(open); n > 0 {
				spans = append(spans, span{open[n-1], i})
				open = open[:n-1]
			}
		}
	}

	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		out = append(out, text[sp.start:sp.end+1])
	}
	return out
}
