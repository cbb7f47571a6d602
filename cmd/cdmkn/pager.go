package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// pager splits n items into pages and tracks the visible one.
type pager struct {
	n    int
	size int
	page int
}

func newPager(n, size int) *pager {
	if size < 1 {
		size = 1
	}
	return &pager{n: n, size: size}
}

func (p *pager) pages() int {
	if p.n == 0 {
		return 1
	}
	return (p.n + p.size - 1) / p.size
}

// bounds returns the half-open item range of the visible page.
func (p *pager) bounds() (int, int) {
	start := p.page * p.size
	end := min(start+p.size, p.n)
	return start, end
}

// key applies one keypress and reports whether paging should stop.
// Space and n move to older entries, p to newer ones, q quits.
func (p *pager) key(b byte) (quit bool) {
	switch b {
	case ' ', 'n':
		if p.page < p.pages()-1 {
			p.page++
		}
	case 'p':
		if p.page > 0 {
			p.page--
		}
	case 'q', 3, 4: // q, ctrl-c, ctrl-d
		return true
	}
	return false
}

// page shows items through render one page at a time. When stdin is not a
// terminal every item is printed at once.
func page(w io.Writer, n, size int, render func(w io.Writer, i int)) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) || n <= size {
		for i := range n {
			render(w, i)
		}
		return nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	p := newPager(n, size)
	buf := make([]byte, 1)
	for {
		start, end := p.bounds()
		// Raw mode needs explicit carriage returns.
		fmt.Fprint(w, "\x1b[2J\x1b[H")
		for i := start; i < end; i++ {
			render(&crlfWriter{w: w}, i)
		}
		fmt.Fprintf(w, "\r\n-- page %d/%d  [space/n] older  [p] newer  [q] quit --", p.page+1, p.pages())

		if _, err := os.Stdin.Read(buf); err != nil {
			return nil
		}
		if p.key(buf[0]) {
			fmt.Fprint(w, "\r\n")
			return nil
		}
	}
}

// crlfWriter turns \n into \r\n for output while the terminal is raw.
type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(b []byte) (int, error) {
	for i, ch := range b {
		var err error
		if ch == '\n' {
			_, err = c.w.Write([]byte("\r\n"))
		} else {
			_, err = c.w.Write(b[i : i+1])
		}
		if err != nil {
			return i, err
		}
	}
	return len(b), nil
}
