// Package postprocess removes common LLM artifacts from model output.
//
// It is applied to raw backend text before structured decoding: reasoning
// traces, answer wrappers and conversational prefaces are stripped so that
// the remaining text is the model's actual answer.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from text in three phases and returns the
// trimmed result:
//  1. Reasoning block and answer-wrapper removal
//  2. Preface echo removal
//  3. Quote wrapping removal
func Clean(text string) string {
	text = StripReasoning(text)
	text = StripEchoes(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// --- Phase 1: reasoning blocks ---

// thinkingBlockRe matches complete <think>…</think> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
// Flags: i = case-insensitive, s = dot matches newline.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>|<analysis>.*?</analysis>`,
)

// truncatedThinkingRe matches an opened reasoning tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>|<analysis>).*$`,
)

// orphanCloseRe matches reasoning that was emitted without an opening tag,
// which some chat templates do: everything up to a lone closing tag.
var orphanCloseRe = regexp.MustCompile(`(?is)^.*?</(?:think|thinking|reasoning)>`)

// answerTagRe extracts the body of an explicit <answer>…</answer> wrapper.
var answerTagRe = regexp.MustCompile(`(?is)<answer>(.*?)</answer>`)

// finalChannelMarkers precede the final answer in channel-style outputs.
var finalChannelMarkers = []string{
	"<|channel|>final<|message|>",
	"assistantfinal",
}

// StripReasoning removes reasoning traces and unwraps explicit answer tags.
func StripReasoning(text string) string {
	for _, marker := range finalChannelMarkers {
		if idx := strings.LastIndex(text, marker); idx >= 0 {
			text = text[idx+len(marker):]
		}
	}
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = orphanCloseRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	if m := answerTagRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	return strings.TrimSpace(text)
}

// --- Phase 2: preface echoes ---

// echoPatterns match introductory phrases that LLMs sometimes prepend even
// when instructed to return bare JSON. Each pattern is anchored to the start
// of the string and requires a colon to reduce false positives.
var echoPatterns = []*regexp.Regexp{
	// "Certainly / Sure / Of course[,] here is [the] JSON|result|answer|output:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course|okay|ok)[,.!]? here(?:'s| is)(?: the| my)? (?:requested |final )?(?:json(?: object)?|result|answer|output|analysis)\s*:`),
	// "Here is / Here's [the] [final] JSON|result|answer|output:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the| my)? (?:requested |final )?(?:json(?: object)?|result|answer|output|analysis)\s*:`),
	// "[Final] answer: / Output: / JSON:"
	regexp.MustCompile(`(?i)^(?:final )?(?:answer|output|json|response)\s*:`),
}

// StripEchoes removes a leading conversational preface.
func StripEchoes(text string) string {
	text = strings.TrimSpace(text)
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 3: quote wrapping ---

// removeQuoteWrapping strips a matching pair of outer quotes when the entire
// text is wrapped in them. Supported pairs:
//
//	"…"  '…'  «…»  "…"  '…'
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
