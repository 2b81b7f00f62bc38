package schema

import (
	"encoding/json"
	"math"
	"strings"
)

func toStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toNullableStrings(raw any) ([]*string, bool) {
	switch v := raw.(type) {
	case []*string:
		out := make([]*string, len(v))
		for i, p := range v {
			if p != nil {
				out[i] = nullable(*p)
			}
		}
		return out, true
	case []string:
		out := make([]*string, len(v))
		for i, s := range v {
			out[i] = nullable(s)
		}
		return out, true
	case []any:
		out := make([]*string, len(v))
		for i, item := range v {
			if item == nil {
				continue
			}
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = nullable(s)
		}
		return out, true
	}
	return nil, false
}

// nullable maps blank strings to nil, the "no direct equivalent" marker.
func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func toStringMap(raw any) (map[string]string, bool) {
	switch v := raw.(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[strings.TrimSpace(k)] = strings.TrimSpace(s)
		}
		return out, true
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[strings.TrimSpace(k)] = strings.TrimSpace(s)
		}
		return out, true
	}
	return nil, false
}

func toNullableStringMap(raw any) (map[string]*string, bool) {
	switch v := raw.(type) {
	case map[string]*string:
		out := make(map[string]*string, len(v))
		for k, p := range v {
			if p != nil {
				out[k] = nullable(*p)
			} else {
				out[k] = nil
			}
		}
		return out, true
	case map[string]string:
		out := make(map[string]*string, len(v))
		for k, s := range v {
			out[k] = nullable(s)
		}
		return out, true
	case map[string]any:
		out := make(map[string]*string, len(v))
		for k, item := range v {
			if item == nil {
				out[k] = nil
				continue
			}
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[k] = nullable(s)
		}
		return out, true
	}
	return nil, false
}

func toIntMap(raw any) (map[string]int, bool) {
	switch v := raw.(type) {
	case map[string]int:
		out := make(map[string]int, len(v))
		for k, n := range v {
			out[k] = n
		}
		return out, true
	case map[string]any:
		out := make(map[string]int, len(v))
		for k, item := range v {
			n, ok := toInt(item)
			if !ok {
				return nil, false
			}
			out[k] = n
		}
		return out, true
	}
	return nil, false
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func toIssues(raw any) ([]Issue, bool) {
	switch v := raw.(type) {
	case []Issue:
		out := make([]Issue, len(v))
		copy(out, v)
		return out, true
	case []any:
		out := make([]Issue, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case string:
				if msg := strings.TrimSpace(it); msg != "" {
					out = append(out, Issue{Category: "other", Message: msg})
				}
			case map[string]any:
				msg, _ := it["message"].(string)
				if msg == "" {
					msg, _ = it["description"].(string)
				}
				msg = strings.TrimSpace(msg)
				if msg == "" {
					return nil, false
				}
				cat, _ := it["category"].(string)
				if cat = strings.TrimSpace(cat); cat == "" {
					cat = "other"
				}
				out = append(out, Issue{Category: strings.ToLower(cat), Message: msg})
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}

func toRemovals(raw any) ([]Removal, bool) {
	switch v := raw.(type) {
	case []Removal:
		out := make([]Removal, 0, len(v))
		for _, r := range v {
			if strings.TrimSpace(r.Word) == "" || strings.TrimSpace(r.Reason) == "" {
				return nil, false
			}
			out = append(out, r)
		}
		return out, true
	case []any:
		out := make([]Removal, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			word, _ := m["word"].(string)
			reason, _ := m["reason"].(string)
			word, reason = strings.TrimSpace(word), strings.TrimSpace(reason)
			if word == "" || reason == "" {
				return nil, false
			}
			out = append(out, Removal{Word: word, Reason: reason})
		}
		return out, true
	}
	return nil, false
}
