// Package record writes terminal sessions as asciinema v2 casts.
package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// clearHome repaints from the top-left corner so each frame replaces the previous one.
const clearHome = "\x1b[H\x1b[2J"

type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Env       map[string]string `json:"env,omitempty"`
}

// Recorder appends one output event per frame. A nil *Recorder records nothing.
type Recorder struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	start  time.Time
	now    func() time.Time
	frames int
}

// Create opens path for writing. An empty path returns a nil recorder.
func Create(path string, width, height int) (*Recorder, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	r, err := New(f, width, height, time.Now)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// New writes the cast header to w.
func New(w io.Writer, width, height int, now func() time.Time) (*Recorder, error) {
	if now == nil {
		now = time.Now
	}
	r := &Recorder{w: bufio.NewWriter(w), now: now, start: now()}
	header := Header{
		Version:   2,
		Width:     width,
		Height:    height,
		Timestamp: r.start.Unix(),
		Env: map[string]string{
			"TERM":  "xterm-256color",
			"SHELL": "/bin/bash",
		},
	}
	if err := r.writeLine(header); err != nil {
		return nil, err
	}
	return r, r.w.Flush()
}

func (r *Recorder) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(data); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

// Frame records one full screen.
func (r *Recorder) Frame(screen [][]rune) error {
	if r == nil {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(clearHome)
	for i, row := range screen {
		if i > 0 {
			sb.WriteString("\r\n")
		}
		sb.WriteString(strings.TrimRight(string(row), " "))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	elapsed := r.now().Sub(r.start).Seconds()
	if err := r.writeLine([]any{elapsed, "o", sb.String()}); err != nil {
		return fmt.Errorf("record frame: %w", err)
	}
	r.frames++
	return nil
}

// Frames returns how many frames were recorded.
func (r *Recorder) Frames() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.w.Flush()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
