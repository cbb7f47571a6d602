package cdmkn

import (
	"encoding/json"
	"fmt"
)

// Tag classifies a run of lines within a change.
type Tag uint8

const (
	// TagSame marks lines present in both the previous and the current text.
	TagSame Tag = iota
	// TagAdd marks lines present only in the current text.
	TagAdd
	// TagRemove marks lines present only in the previous text.
	TagRemove
)

// String returns the tag name as stored in the change log.
func (t Tag) String() string {
	switch t {
	case TagSame:
		return "same"
	case TagAdd:
		return "add"
	case TagRemove:
		return "remove"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// ParseTag converts a stored tag name back into a Tag.
func ParseTag(s string) (Tag, error) {
	switch s {
	case "same":
		return TagSame, nil
	case "add":
		return TagAdd, nil
	case "remove":
		return TagRemove, nil
	default:
		return 0, fmt.Errorf("unknown change tag %q", s)
	}
}

// InCurrent reports whether runs with this tag belong to the text after the change.
func (t Tag) InCurrent() bool { return t == TagSame || t == TagAdd }

// InPrevious reports whether runs with this tag belong to the text before the change.
func (t Tag) InPrevious() bool { return t == TagSame || t == TagRemove }

func (t Tag) MarshalText() ([]byte, error) {
	if t > TagRemove {
		return nil, fmt.Errorf("cannot marshal %s", t)
	}
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	parsed, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ChangeElement is a contiguous run of lines sharing one tag. Content keeps
// the original line separators of the run.
type ChangeElement struct {
	Tag     Tag    `json:"type"`
	Content string `json:"content"`
}

// EncodeElements serializes elements into the JSON form stored in the change log.
func EncodeElements(elements []ChangeElement) (string, error) {
	if elements == nil {
		elements = []ChangeElement{}
	}
	b, err := json.Marshal(elements)
	if err != nil {
		return "", fmt.Errorf("encoding change elements: %w", err)
	}
	return string(b), nil
}

// DecodeElements parses stored change elements. Any malformed payload is
// reported as-is; callers wrap it in a CorruptHistoryError.
func DecodeElements(raw string) ([]ChangeElement, error) {
	var elements []ChangeElement
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, err
	}
	if elements == nil {
		return nil, fmt.Errorf("change elements are null")
	}
	return elements, nil
}
