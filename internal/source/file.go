package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileSource follows an append-only transcript file, delivering new lines as
// they are written. Truncation (log rotation) restarts from the top.
type FileSource struct {
	path    string
	lines   chan string
	partial string
}

// NewFileSource creates a follower for path.
func NewFileSource(path string, buffer int) *FileSource {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &FileSource{path: path, lines: make(chan string, buffer)}
}

// Start opens the file and begins following appends.
func (s *FileSource) Start(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open transcript %s: %w", s.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors and rotation replace the file inode.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		f.Close()
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	go s.follow(ctx, f, watcher)
	return nil
}

// Lines returns the line channel.
func (s *FileSource) Lines() <-chan string { return s.lines }

func (s *FileSource) follow(ctx context.Context, f *os.File, watcher *fsnotify.Watcher) {
	defer close(s.lines)
	defer f.Close()
	defer watcher.Close()

	reader := bufio.NewReader(f)
	offset, _ := f.Seek(0, io.SeekEnd) // start at the tail; history is not replayed
	reader.Reset(f)

	for {
		offset = s.drain(ctx, f, reader, offset)

		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				// File replaced: reopen and read from the top.
				nf, err := os.Open(s.path)
				if err != nil {
					continue
				}
				f.Close()
				f = nf
				offset = 0
				s.partial = ""
				reader.Reset(f)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("FileSource: watcher error", "error", err)
		}
	}
}

// drain reads every complete line currently available past offset. A partial
// trailing line is held back until the rest of it arrives.
func (s *FileSource) drain(ctx context.Context, f *os.File, reader *bufio.Reader, offset int64) int64 {
	if st, err := f.Stat(); err == nil && st.Size() < offset {
		// Truncated in place.
		f.Seek(0, io.SeekStart)
		reader.Reset(f)
		offset = 0
		s.partial = ""
	}
	for {
		chunk, err := reader.ReadString('\n')
		offset += int64(len(chunk))
		if err != nil {
			s.partial += chunk
			return offset
		}
		line := s.partial + trimNewline(chunk)
		s.partial = ""
		select {
		case s.lines <- line:
		case <-ctx.Done():
			return offset
		}
	}
}

func trimNewline(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
