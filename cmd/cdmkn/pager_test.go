package main

import (
	"bytes"
	"testing"
)

func TestPager(t *testing.T) {
	p := newPager(45, 20)
	if p.pages() != 3 {
		t.Fatalf("pages() = %d, want 3", p.pages())
	}

	steps := []struct {
		key       byte
		wantStart int
		wantEnd   int
		wantQuit  bool
	}{
		{key: 'p', wantStart: 0, wantEnd: 20},
		{key: ' ', wantStart: 20, wantEnd: 40},
		{key: 'n', wantStart: 40, wantEnd: 45},
		{key: 'n', wantStart: 40, wantEnd: 45},
		{key: 'p', wantStart: 20, wantEnd: 40},
		{key: 'x', wantStart: 20, wantEnd: 40},
		{key: 'q', wantStart: 20, wantEnd: 40, wantQuit: true},
	}
	for i, s := range steps {
		quit := p.key(s.key)
		start, end := p.bounds()
		if quit != s.wantQuit || start != s.wantStart || end != s.wantEnd {
			t.Errorf("step %d (%q): quit=%v bounds=[%d,%d), want quit=%v [%d,%d)",
				i, s.key, quit, start, end, s.wantQuit, s.wantStart, s.wantEnd)
		}
	}
}

func TestPagerEmpty(t *testing.T) {
	p := newPager(0, 0)
	if p.pages() != 1 {
		t.Errorf("pages() = %d, want 1", p.pages())
	}
	if start, end := p.bounds(); start != 0 || end != 0 {
		t.Errorf("bounds() = [%d,%d)", start, end)
	}
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &crlfWriter{w: &buf}
	n, err := w.Write([]byte("a\nb\n"))
	if err != nil || n != 4 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if got := buf.String(); got != "a\r\nb\r\n" {
		t.Errorf("output = %q", got)
	}
}

func TestParseChangeID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "12", want: 12},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseChangeID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseChangeID(%q) = %d, %v", tt.in, got, err)
		}
	}
}
