package schema

// Typed accessors over validated payloads. A payload that went through
// Validate holds concrete types, so these never need to coerce; a missing or
// mistyped field reads as the zero value.

func String(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

func Strings(p map[string]any, key string) []string {
	s, _ := p[key].([]string)
	return s
}

func NullableStrings(p map[string]any, key string) []*string {
	s, _ := p[key].([]*string)
	return s
}

func StringMap(p map[string]any, key string) map[string]string {
	m, _ := p[key].(map[string]string)
	return m
}

func NullableStringMap(p map[string]any, key string) map[string]*string {
	m, _ := p[key].(map[string]*string)
	return m
}

func IntMap(p map[string]any, key string) map[string]int {
	m, _ := p[key].(map[string]int)
	return m
}

func Int(p map[string]any, key string) int {
	n, _ := p[key].(int)
	return n
}

func Bool(p map[string]any, key string) bool {
	b, _ := p[key].(bool)
	return b
}

func Issues(p map[string]any, key string) []Issue {
	s, _ := p[key].([]Issue)
	return s
}

func Removals(p map[string]any, key string) []Removal {
	s, _ := p[key].([]Removal)
	return s
}

// UsefulFunc reports whether a valid payload carries enough content to be
// accepted without another attempt.
type UsefulFunc func(payload map[string]any) bool

// Useful returns the baseline usefulness check of a stage. Stages with
// context-dependent expectations (lemma count, candidate count) supply their
// own check to the invocation controller.
func Useful(stage Stage) UsefulFunc {
	switch stage {
	case StageAnalyseSense:
		return func(p map[string]any) bool {
			s := String(p, "sense_summary")
			return s != "" && s != PlaceholderSummary
		}
	case StageTranslateDefinition:
		return func(p map[string]any) bool { return String(p, "definition_translation") != "" }
	}
	return func(map[string]any) bool { return true }
}

// AnyTranslated reports whether at least one lemma translation is present.
func AnyTranslated(p map[string]any) bool {
	for _, t := range NullableStrings(p, "initial_translations") {
		if t != nil {
			return true
		}
	}
	return false
}
