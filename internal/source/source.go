// Package source provides the transcript feeds the watchdog monitors:
// standard input, an append-only log file, or a Kafka topic. A source never
// blocks its producer; lines queue on a bounded internal channel.
package source

import "context"

// Source delivers transcript lines until its input ends or ctx is cancelled.
type Source interface {
	// Start begins producing lines. Non-blocking; readers run in their own
	// goroutine and stop when ctx is cancelled.
	Start(ctx context.Context) error
	// Lines returns the channel of transcript lines. It is closed when the
	// underlying input ends.
	Lines() <-chan string
}

// defaultBuffer is the line queue depth when none is configured.
const defaultBuffer = 256
