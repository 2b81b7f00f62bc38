package postprocess

import "testing"

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "no reasoning",
			input:    `{"status": "ok"}`,
			expected: `{"status": "ok"}`,
		},
		{
			name:     "think block before json",
			input:    "<think>Let me analyse the sense first.</think>\n{\"confidence\": \"high\"}",
			expected: `{"confidence": "high"}`,
		},
		{
			name:     "reasoning block",
			input:    "<reasoning>Checking agreement</reasoning>{}",
			expected: "{}",
		},
		{
			name:     "multiple blocks",
			input:    "<thinking>One</thinking>{\"a\":1}<reflection>Two</reflection>",
			expected: `{"a":1}`,
		},
		{
			name:     "truncated block",
			input:    "{\"a\":1}<think>and then the model stopped",
			expected: `{"a":1}`,
		},
		{
			name:     "orphan closing tag",
			input:    "I should answer in JSON.</think>{\"a\":1}",
			expected: `{"a":1}`,
		},
		{
			name:     "answer wrapper",
			input:    "Thoughts first. <answer>{\"a\":1}</answer> trailing",
			expected: `{"a":1}`,
		},
		{
			name:     "final channel marker",
			input:    "<|channel|>analysis<|message|>reasoning here<|end|><|channel|>final<|message|>{\"a\":1}",
			expected: `{"a":1}`,
		},
		{
			name:     "collapsed channel marker",
			input:    "analysisThe user wants JSON.assistantfinal{\"a\":1}",
			expected: `{"a":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripReasoning(tt.input)
			if result != tt.expected {
				t.Errorf("StripReasoning(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStripEchoes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "no echo",
			input:    `{"a":1}`,
			expected: `{"a":1}`,
		},
		{
			name:     "here is the json",
			input:    "Here is the JSON: {\"a\":1}",
			expected: `{"a":1}`,
		},
		{
			name:     "here's my answer",
			input:    "Here's my answer:\n{\"a\":1}",
			expected: `{"a":1}`,
		},
		{
			name:     "sure preface",
			input:    "Sure, here is the requested JSON object: {}",
			expected: "{}",
		},
		{
			name:     "final answer label",
			input:    "Final answer: {}",
			expected: "{}",
		},
		{
			name:     "echo not at start",
			input:    "The model said here is the JSON: {}",
			expected: "The model said here is the JSON: {}",
		},
		{
			name:     "echo without colon",
			input:    "Here is the JSON {}",
			expected: "Here is the JSON {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripEchoes(tt.input)
			if result != tt.expected {
				t.Errorf("StripEchoes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRemoveQuoteWrapping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "single char", input: "a", expected: "a"},
		{name: "no quotes", input: "ustanova", expected: "ustanova"},
		{name: "double quotes", input: "\"ustanova\"", expected: "ustanova"},
		{name: "guillemets", input: "«ustanova»", expected: "ustanova"},
		{name: "curly double quotes", input: "“ustanova”", expected: "ustanova"},
		{name: "unmatched quotes", input: "\"ustanova'", expected: "\"ustanova'"},
		{name: "whitespace inside", input: "\"  ustanova  \"", expected: "ustanova"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := removeQuoteWrapping(tt.input)
			if result != tt.expected {
				t.Errorf("removeQuoteWrapping(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{
			name:     "full cleanup",
			input:    "<think>Thinking</think>Here is the answer:\n\"ustanova\"",
			expected: "ustanova",
		},
		{
			name:     "truncated reasoning at end",
			input:    "institucija<thinking>Incomplete",
			expected: "institucija",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Clean(tt.input)
			if result != tt.expected {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
