package source

import (
	"bufio"
	"context"
	"io"
	"log/slog"
)

// ReaderSource feeds lines from any io.Reader, typically standard input with
// the agent's output piped in.
type ReaderSource struct {
	r     io.Reader
	lines chan string
}

// NewReaderSource creates a source over r.
func NewReaderSource(r io.Reader, buffer int) *ReaderSource {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &ReaderSource{r: r, lines: make(chan string, buffer)}
}

// Start begins scanning lines in a goroutine.
func (s *ReaderSource) Start(ctx context.Context) error {
	go func() {
		defer close(s.lines)
		scanner := bufio.NewScanner(s.r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case s.lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("ReaderSource: scan ended with error", "error", err)
		}
	}()
	return nil
}

// Lines returns the line channel.
func (s *ReaderSource) Lines() <-chan string { return s.lines }
