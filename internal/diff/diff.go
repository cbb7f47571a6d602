// Package diff computes line-level differences between two texts in the
// form stored by the change log.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"cdmkn-go/internal/cdmkn"
)

// Result is the outcome of diffing two texts.
type Result struct {
	// Elements are the tagged runs, in document order. Within an edited
	// region the removed run always precedes the added run.
	Elements []cdmkn.ChangeElement
	// Distance counts the non-Same elements. Zero means the texts are equal.
	Distance int
}

// Lines diffs prev against cur line by line. Each line keeps its terminating
// newline; a final line without one is still a line. Lines never succeeds
// partially and never fails.
func Lines(prev, cur string) Result {
	if prev == cur {
		if prev == "" {
			return Result{Elements: []cdmkn.ChangeElement{}}
		}
		return Result{Elements: []cdmkn.ChangeElement{{Tag: cdmkn.TagSame, Content: prev}}}
	}
	if prev == "" {
		return Result{Elements: []cdmkn.ChangeElement{{Tag: cdmkn.TagAdd, Content: cur}}, Distance: 1}
	}
	if cur == "" {
		return Result{Elements: []cdmkn.ChangeElement{{Tag: cdmkn.TagRemove, Content: prev}}, Distance: 1}
	}

	var table lineTable
	prevRunes := table.encode(splitLines(prev))
	curRunes := table.encode(splitLines(cur))

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(prevRunes, curRunes, false)

	var b builder
	for _, d := range diffs {
		text := table.decode(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.add(cdmkn.TagSame, text)
		case diffmatchpatch.DiffDelete:
			b.add(cdmkn.TagRemove, text)
		case diffmatchpatch.DiffInsert:
			b.add(cdmkn.TagAdd, text)
		}
	}
	return b.result()
}

// splitLines splits s after every newline.
func splitLines(s string) []string {
	var lines []string
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

// lineTable maps each distinct line to a private rune so the character
// diff runs over whole lines.
type lineTable struct {
	lines []string
	index map[string]rune
}

// surrogate code points cannot round-trip through a Go string, so rune
// numbering jumps over them.
const (
	surrogateMin = 0xD800
	surrogateLen = 0x800
)

func (t *lineTable) encode(lines []string) []rune {
	if t.index == nil {
		t.index = make(map[string]rune)
	}
	runes := make([]rune, len(lines))
	for i, line := range lines {
		r, ok := t.index[line]
		if !ok {
			n := len(t.lines)
			if n >= surrogateMin {
				n += surrogateLen
			}
			r = rune(n)
			t.index[line] = r
			t.lines = append(t.lines, line)
		}
		runes[i] = r
	}
	return runes
}

func (t *lineTable) decode(text string) string {
	var b strings.Builder
	for _, r := range text {
		n := int(r)
		if n >= surrogateMin+surrogateLen {
			n -= surrogateLen
		}
		b.WriteString(t.lines[n])
	}
	return b.String()
}

// builder merges adjacent runs and orders each edited region as one Remove
// followed by one Add.
type builder struct {
	elements []cdmkn.ChangeElement
	removed  strings.Builder
	added    strings.Builder
}

func (b *builder) add(tag cdmkn.Tag, text string) {
	if text == "" {
		return
	}
	switch tag {
	case cdmkn.TagRemove:
		b.removed.WriteString(text)
	case cdmkn.TagAdd:
		b.added.WriteString(text)
	default:
		b.flush()
		if n := len(b.elements); n > 0 && b.elements[n-1].Tag == cdmkn.TagSame {
			b.elements[n-1].Content += text
			return
		}
		b.elements = append(b.elements, cdmkn.ChangeElement{Tag: cdmkn.TagSame, Content: text})
	}
}

func (b *builder) flush() {
	if b.removed.Len() > 0 {
		b.elements = append(b.elements, cdmkn.ChangeElement{Tag: cdmkn.TagRemove, Content: b.removed.String()})
		b.removed.Reset()
	}
	if b.added.Len() > 0 {
		b.elements = append(b.elements, cdmkn.ChangeElement{Tag: cdmkn.TagAdd, Content: b.added.String()})
		b.added.Reset()
	}
}

func (b *builder) result() Result {
	b.flush()
	r := Result{Elements: b.elements}
	if r.Elements == nil {
		r.Elements = []cdmkn.ChangeElement{}
	}
	for _, e := range r.Elements {
		if e.Tag != cdmkn.TagSame {
			r.Distance++
		}
	}
	return r
}
