package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, lines <-chan string, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	timeout := time.After(3 * time.Second)
	for len(out) < n {
		select {
		case line, ok := <-lines:
			if !ok {
				return out
			}
			out = append(out, line)
		case <-timeout:
			t.Fatalf("timed out after %d of %d lines: %v", len(out), n, out)
		}
	}
	return out
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource(strings.NewReader("one\ntwo\nthree\n"), 8)
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := collect(t, src.Lines(), 3)
	if len(got) != 3 || got[0] != "one" || got[2] != "three" {
		t.Fatalf("unexpected lines: %v", got)
	}

	// Channel closes when the reader is drained.
	if _, ok := <-src.Lines(); ok {
		t.Fatal("lines channel not closed at EOF")
	}
}

func TestFileSourceFollowsAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.log")
	if err := os.WriteFile(path, []byte("history line\n"), 0600); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(path, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// History before Start is not replayed; only appends arrive.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := f.WriteString("new line one\nnew line two\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got := collect(t, src.Lines(), 2)
	if got[0] != "new line one" || got[1] != "new line two" {
		t.Fatalf("unexpected lines: %v", got)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "absent.log"), 8)
	if err := src.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing transcript")
	}
}

func TestTrimNewline(t *testing.T) {
	cases := []struct{ in, want string }{
		{"line\n", "line"},
		{"line\r\n", "line"},
		{"line", "line"},
		{"\n", ""},
	}
	for _, c := range cases {
		if got := trimNewline(c.in); got != c.want {
			t.Fatalf("trimNewline(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
