package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxTagLength is the longest tag accepted, in characters.
const MaxTagLength = 50

// Tags are stored as JSON, which cannot carry invalid UTF-8 unchanged.
var tagsRule = validation.Each(
	validation.By(validUTF8),
	validation.RuneLength(1, MaxTagLength).Error("each tag must be 1-50 characters"),
)

func validUTF8(value any) error {
	if s, ok := value.(string); ok && !utf8.ValidString(s) {
		return errors.New("each tag must be valid UTF-8")
	}
	return nil
}

// EncodeTags serializes tags for storage. A nil list encodes as "[]".
func EncodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		// A []string always marshals.
		panic(err)
	}
	return string(data)
}

// DecodeTags parses stored tags. It never returns a nil list. On error the
// returned list is empty and the caller decides whether to log it.
func DecodeTags(s string) ([]string, error) {
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return []string{}, fmt.Errorf("decoding tags %q: %w", s, err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// ParseTagList splits a comma-separated tag string as entered in forms.
func ParseTagList(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

// NormalizeTags trims each tag and drops empty ones. Order and repeats are
// kept.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
