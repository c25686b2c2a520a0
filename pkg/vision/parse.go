package vision

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// parseStructured derives a structured view from the model's reply. It is
// best effort and never fails; the raw reply is always preserved under
// "full_analysis".
func parseStructured(kind Kind, content string) map[string]any {
	out := map[string]any{}

	if obj, ok := tryUnmarshalObject(content); ok {
		out = obj
	} else {
		switch kind {
		case KindObjectDetection:
			if objects := parseObjectLines(content); len(objects) > 0 {
				out["objects"] = objects
			}
		case KindTextExtraction:
			found := !containsNoText(content)
			out["text_found"] = found
			if found {
				out["extracted_text"] = strings.TrimSpace(content)
			}
		case KindColorAnalysis:
			if colors := scanColorWords(content); len(colors) > 0 {
				out["colors_mentioned"] = colors
			}
		}
	}

	out["full_analysis"] = content
	return out
}

// tryUnmarshalObject decodes content as a JSON object if it looks like one,
// repairing almost-JSON (markdown fences, trailing commas) before giving up.
func tryUnmarshalObject(content string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "```") {
		return nil, false
	}

	var obj map[string]any
	err := json.Unmarshal([]byte(trimmed), &obj)
	if err == nil {
		return obj, true
	}
	fixed, rerr := jsonrepair.JSONRepair(trimmed)
	if rerr != nil {
		return nil, false
	}
	if json.Unmarshal([]byte(fixed), &obj) != nil {
		return nil, false
	}
	return obj, true
}

// parseObjectLines extracts "name: detail" pairs from list-style replies.
func parseObjectLines(content string) []map[string]string {
	var objects []map[string]string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. \t")
		if line == "" {
			continue
		}
		name, detail, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(strings.Trim(name, "*"))
		detail = strings.TrimSpace(detail)
		if name == "" || detail == "" {
			continue
		}
		objects = append(objects, map[string]string{
			"name":        name,
			"description": detail,
		})
	}
	return objects
}

// containsNoText reports whether the reply says no text was visible.
func containsNoText(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "no text detected") ||
		strings.Contains(lower, "no text visible") ||
		strings.Contains(lower, "no text is visible")
}

// Common color names scanned for in color analysis replies.
var colorWords = []string{
	"red", "orange", "yellow", "green", "blue", "purple", "violet",
	"pink", "brown", "black", "white", "gray", "grey", "gold",
	"silver", "beige", "teal", "cyan", "magenta", "turquoise",
}

var colorWordSet = func() map[string]bool {
	m := make(map[string]bool, len(colorWords))
	for _, w := range colorWords {
		m[w] = true
	}
	return m
}()

// scanColorWords returns the distinct color names mentioned, in the order
// of first mention. Matching is on whole words so "red" does not fire on
// "covered".
func scanColorWords(content string) []string {
	var colors []string
	seen := map[string]bool{}
	for _, field := range strings.Fields(strings.ToLower(content)) {
		word := strings.Trim(field, ".,;:()[]\"'*-")
		if colorWordSet[word] && !seen[word] {
			seen[word] = true
			colors = append(colors, word)
		}
	}
	return colors
}
