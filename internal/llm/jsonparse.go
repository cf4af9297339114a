// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ParseError reports a reply that is not the JSON the caller asked for.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing model JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DecodeJSON decodes text into v. The reply must be exactly one JSON value.
// A markdown code fence wrapping the whole reply is removed first; any other
// surrounding prose is a ParseError.
func DecodeJSON(text string, v any) error {
	body := strings.TrimSpace(text)
	if body == "" {
		return ErrEmptyResponse
	}
	body, err := stripFence(body)
	if err != nil {
		return &ParseError{Raw: text, Err: err}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return &ParseError{Raw: text, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &ParseError{Raw: text, Err: errors.New("trailing data after JSON value")}
	}
	return nil
}

// stripFence removes a ``` or ```json fence that encloses the whole body.
func stripFence(body string) (string, error) {
	if !strings.HasPrefix(body, "```") {
		return body, nil
	}
	nl := strings.IndexByte(body, '\n')
	if nl < 0 || !strings.HasSuffix(body, "```") || len(body) < nl+4 {
		return "", errors.New("unterminated code fence")
	}
	lang := strings.TrimSpace(body[3:nl])
	if lang != "" && !strings.EqualFold(lang, "json") {
		return "", fmt.Errorf("code fence language %q is not json", lang)
	}
	inner := body[nl+1 : len(body)-3]
	if strings.Contains(inner, "```") {
		return "", errors.New("multiple code fences")
	}
	return strings.TrimSpace(inner), nil
}
