// Package normalize turns loosely formatted model output into domain payloads.
//
// Vendors frequently wrap JSON in markdown fences, quote numbers, or return
// more days than requested. Everything here is tolerant of that; anything that
// cannot be repaired is reported as ErrParse or ErrInvalidPayload so the
// adapter can classify it.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

var (
	// ErrParse means the text did not contain a decodable JSON object.
	ErrParse = errors.New("normalize: unparseable response")
	// ErrInvalidPayload means the JSON decoded but does not satisfy the role contract.
	ErrInvalidPayload = errors.New("normalize: invalid payload")
)

// Payload normalizes raw model text for role.
func Payload(role domain.Role, text string, in *domain.StageInput) (domain.Payload, error) {
	switch role {
	case domain.RoleDrafting:
		if in == nil || in.Request == nil {
			return nil, fmt.Errorf("%w: drafting requires a request", ErrInvalidPayload)
		}
		it, err := Draft(text, in.Request)
		if err != nil {
			return nil, err
		}
		return domain.DraftPayload{Itinerary: it}, nil
	case domain.RoleValidation:
		return Validation(text)
	case domain.RoleQA:
		return Quality(text)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidPayload, role)
	}
}

// ExtractJSON returns the outermost JSON object embedded in text.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", ErrParse
	}
	return s[start : end+1], nil
}

func decode(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

// flexString accepts a JSON string, number or bool.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*f = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*f = flexString(strconv.FormatBool(t))
	default:
		*f = ""
	}
	return nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = flexFloat(n)
	return nil
}

// flexStrings accepts an array of strings or a single string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var one flexString
	if err := json.Unmarshal(b, &one); err == nil && b[0] != '[' {
		if one != "" {
			*f = []string{string(one)}
		}
		return nil
	}
	var many []flexString
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	out := make([]string, 0, len(many))
	for _, s := range many {
		if s != "" {
			out = append(out, string(s))
		}
	}
	*f = out
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
