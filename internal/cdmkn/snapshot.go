package cdmkn

import (
	"strings"

	"cdmkn-go/internal/database/sqlc"
)

// ReconstructCurrent returns the full document text after the change: the
// concatenation of its Same and Add runs.
func ReconstructCurrent(elements []ChangeElement) string {
	return reconstruct(elements, Tag.InCurrent)
}

// ReconstructPrevious returns the full document text immediately before the
// change: the concatenation of its Same and Remove runs.
func ReconstructPrevious(elements []ChangeElement) string {
	return reconstruct(elements, Tag.InPrevious)
}

func reconstruct(elements []ChangeElement, keep func(Tag) bool) string {
	var b strings.Builder
	for _, e := range elements {
		if keep(e.Tag) {
			b.WriteString(e.Content)
		}
	}
	return b.String()
}

// Snippet is an addressable edited run within a change.
type Snippet struct {
	Index   int
	Tag     Tag
	Content string
}

// ExtractSnippets returns the non-Same runs of a change in order, indexed from
// zero regardless of how many unchanged runs surround them.
func ExtractSnippets(elements []ChangeElement) []Snippet {
	snippets := []Snippet{}
	for _, e := range elements {
		if e.Tag == TagSame {
			continue
		}
		snippets = append(snippets, Snippet{Index: len(snippets), Tag: e.Tag, Content: e.Content})
	}
	return snippets
}

// RenderUnified returns the raw tagged sequence of a single change for display.
func RenderUnified(elements []ChangeElement) []ChangeElement {
	out := make([]ChangeElement, len(elements))
	copy(out, elements)
	return out
}

// DecodeChange parses the stored elements of a change row. A malformed
// payload is reported as *CorruptHistoryError and never repaired.
func DecodeChange(change *sqlc.Change) ([]ChangeElement, error) {
	elements, err := DecodeElements(change.ChangeElements)
	if err != nil {
		return nil, &CorruptHistoryError{ChangeID: change.ID, Err: err}
	}
	return elements, nil
}
