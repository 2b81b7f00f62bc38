// Package langcheck verifies that generated text is in the target language.
package langcheck

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// MinLength is the minimum rune count needed for a reliable detection.
// Shorter texts pass unchecked.
const MinLength = 20

// Latin-script Serbian is routinely detected as Croatian or Bosnian; the
// check treats mutually intelligible variants as one language.
var variants = map[string]string{
	"sr": "sh", "hr": "sh", "bs": "sh",
	"nb": "no", "nn": "no",
}

// Checker is expensive to build; reuse the instance.
type Checker struct {
	det lingua.LanguageDetector
}

// New builds a checker for the given ISO 639-1 codes, or for every language
// lingua knows when none are given. English and the Serbo-Croatian variants
// are always included so the detector has alternatives to choose from.
func New(isoCodes ...string) *Checker {
	builder := lingua.NewLanguageDetectorBuilder()
	if len(isoCodes) == 0 {
		return &Checker{det: builder.FromAllLanguages().Build()}
	}

	want := map[string]bool{"en": true, "sr": true, "hr": true, "bs": true}
	for _, c := range isoCodes {
		want[strings.ToLower(strings.TrimSpace(c))] = true
	}
	var langs []lingua.Language
	for _, lang := range lingua.AllLanguages() {
		if want[strings.ToLower(lang.IsoCode639_1().String())] {
			langs = append(langs, lang)
		}
	}
	return &Checker{det: builder.FromLanguages(langs...).Build()}
}

// Detect returns the lowercase ISO 639-1 code of the text's language.
func (c *Checker) Detect(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	lang, ok := c.det.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Check returns an error when text is long enough to judge and is detected
// as something other than targetLang. Undetermined texts pass.
func (c *Checker) Check(text, targetLang string) error {
	if targetLang == "" {
		return nil
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) < MinLength {
		return nil
	}
	detected, ok := c.Detect(text)
	if !ok {
		return nil
	}
	if !Same(detected, targetLang) {
		return fmt.Errorf("expected %s but detected %s", targetLang, detected)
	}
	return nil
}

// Same reports whether two ISO 639-1 codes denote the same language for
// checking purposes. Region subtags ("sr-Latn") are ignored.
func Same(a, b string) bool {
	a, b = base(a), base(b)
	if a == b {
		return true
	}
	va, oka := variants[a]
	vb, okb := variants[b]
	return oka && okb && va == vb
}

func base(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return code
}
