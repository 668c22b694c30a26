package logging

import (
	"strings"
	"sync"
)

// Tail keeps the most recent log lines in memory for on-screen display.
// It implements zapcore.WriteSyncer.
type Tail struct {
	mu    sync.Mutex
	lines []string
	start int
	max   int
	seq   uint64
}

// NewTail returns a Tail holding at most size lines.
func NewTail(size int) *Tail {
	if size <= 0 {
		size = 200
	}
	return &Tail{max: size, lines: make([]string, 0, size)}
}

// Write stores each newline-terminated line in p.
func (t *Tail) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, line := range strings.Split(text, "\n") {
		if len(t.lines) < t.max {
			t.lines = append(t.lines, line)
		} else {
			t.lines[t.start] = line
			t.start = (t.start + 1) % t.max
		}
		t.seq++
	}
	return len(p), nil
}

// Sync is a no-op.
func (t *Tail) Sync() error { return nil }

// Lines returns the stored lines, oldest first.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.lines))
	out = append(out, t.lines[t.start:]...)
	out = append(out, t.lines[:t.start]...)
	return out
}

// Seq counts lines written so far. Callers compare it to detect new output.
func (t *Tail) Seq() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}
