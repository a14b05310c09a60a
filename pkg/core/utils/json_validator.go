package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrNoPayload is returned when model output contains nothing that looks like a JSON object.
var ErrNoPayload = errors.New("no structured payload")

// ExtractPayload locates the JSON object inside raw model output.
// Order of attempts:
// 1. First fenced code block tagged json whose body is an object
// 2. First fenced code block of any language whose body is an object
// 3. First brace-balanced {...} object in the text
// 4. Everything from the first '{' onward (a truncated object, left for repair)
func ExtractPayload(raw string) (string, error) {
	blocks := FencedBlocks(raw)
	for _, b := range blocks {
		body := strings.TrimSpace(b.Body)
		if (b.Language == "json" || b.Language == "jsonc" || b.Language == "hjson") && strings.HasPrefix(body, "{") {
			return body, nil
		}
	}
	for _, b := range blocks {
		if body := strings.TrimSpace(b.Body); strings.HasPrefix(body, "{") {
			return body, nil
		}
	}
	if obj, ok := BalancedObject(raw); ok {
		return obj, nil
	}
	if idx := strings.IndexByte(raw, '{'); idx >= 0 {
		return strings.TrimSpace(raw[idx:]), nil
	}
	return "", ErrNoPayload
}

// BalancedObject returns the first complete {...} object in s. Braces inside
// string literals and escaped quotes are not counted.
func BalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`,
	"‘", "'", "’", "'",
)

// SanitizeJSON applies the cheap textual fixes that precede a real repair:
// prose around the object is dropped, typographic quotes are straightened and
// raw control characters inside string literals are escaped.
func SanitizeJSON(s string) string {
	s = strings.TrimSpace(s)
	if first := strings.IndexByte(s, '{'); first >= 0 {
		if last := strings.LastIndexByte(s, '}'); last > first {
			s = s[first : last+1]
		} else {
			s = s[first:]
		}
	}
	s = smartQuotes.Replace(s)
	return escapeControlChars(s)
}

func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				b.WriteString(`\n`)
				continue
			case r == '\r':
				b.WriteString(`\r`)
				continue
			case r == '\t':
				b.WriteString(`\t`)
				continue
			case r < 0x20:
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
		} else if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RepairJSON attempts to fix common JSON errors from LLM outputs.
// Uses github.com/RealAlexandreAI/json-repair for intelligent repair.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - TRUE/FALSE/Null instead of true/false/null
// - Trailing commas
// - Comments in JSON
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
// Hjson tolerates comments, unquoted keys and strings, and optional commas.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(jsonBytes), nil
}

// SmartParse tries multiple parsing strategies to decode free-form model output into schema.
// Order of attempts:
// 1. Standard JSON parse of the extracted payload
// 2. JSON repair
// 3. Hjson parse (most lenient)
func SmartParse(input string, schema interface{}) (string, error) {
	payload, err := ExtractPayload(input)
	if err != nil {
		return "", fmt.Errorf("SMART_PARSE_FAILED: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), schema); err == nil {
		return payload, nil
	}

	if repaired, err := RepairJSON(SanitizeJSON(payload)); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return repaired, nil
		}
	}

	if hjsonResult, err := ParseHJSON(payload); err == nil {
		if err := json.Unmarshal([]byte(hjsonResult), schema); err == nil {
			return hjsonResult, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}
