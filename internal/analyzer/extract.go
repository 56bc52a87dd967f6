package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	FieldErrors  = "Errors"
	FieldCode    = "Code"
	FieldDetails = "Details"

	ParseFailureErrors = "Failed to parse AI response. The model may have returned malformed JSON."
	ParseFailureCode   = "// Unable to generate optimized code due to parsing error"

	// excerpt of the cleaned model output kept in the fallback record
	rawExcerptLimit = 500
)

var (
	// \x60 is a backtick; raw strings cannot hold one.
	fenceRegex = regexp.MustCompile("(?im)^\x60\x60\x60json\\s*|\\s*\x60\x60\x60$")

	// Greedy: first '{' to last '}'. Braces inside string values can fool it.
	objectRegex = regexp.MustCompile(`(?s)\{.*\}`)

	errNotObject = errors.New("AI response is not a JSON object")
)

// ExtractCandidate pulls a JSON object out of free-form model output. It
// never fails outright: when nothing can be decoded it returns the fallback
// record together with the decode error, which callers only log.
func ExtractCandidate(raw string) (map[string]any, error) {
	cleaned := StripFences(raw)

	span := cleaned
	if m := objectRegex.FindString(cleaned); m != "" {
		span = m
	}

	candidate, err := decodeObject(span)
	if err != nil {
		return fallbackRecord(err, cleaned), err
	}
	return candidate, nil
}

// StripFences trims the text and removes ```json openers and ``` closers
// found at line boundaries.
func StripFences(raw string) string {
	return fenceRegex.ReplaceAllString(strings.TrimSpace(raw), "")
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("unexpected end of JSON input")
		}
		return nil, err
	}
	if out == nil {
		return nil, errNotObject
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid character after top-level value")
	}
	return out, nil
}

func fallbackRecord(err error, cleaned string) map[string]any {
	return map[string]any{
		FieldErrors:  ParseFailureErrors,
		FieldCode:    ParseFailureCode,
		FieldDetails: fmt.Sprintf("Technical error: %v\n\nRaw response: %s...", err, truncateString(cleaned, rawExcerptLimit)),
	}
}

// truncateString cuts s to at most maxLen runes.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
