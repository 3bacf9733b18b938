// Package recorder records terminal sessions in asciinema v2 format
// (JSON lines: a header object followed by [offset, type, data] events).
package recorder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Header is the asciinema v2 recording header.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Env       map[string]string `json:"env,omitempty"`
}

// Recorder writes one session recording. All methods are safe for concurrent
// use; events are timestamped relative to the recorder's creation.
type Recorder struct {
	writer    io.Writer
	file      *os.File // set only when the recorder owns the file
	startTime time.Time
	mu        sync.Mutex
}

// NewFile creates a Recorder writing to the given path and emits the header.
func NewFile(path string, cols, rows int) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	r := &Recorder{writer: file, file: file, startTime: time.Now()}
	if err := r.writeHeader(cols, rows); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// NewWriter creates a Recorder writing to w and emits the header. Useful in tests.
func NewWriter(w io.Writer, cols, rows int) (*Recorder, error) {
	r := &Recorder{writer: w, startTime: time.Now()}
	if err := r.writeHeader(cols, rows); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) writeHeader(cols, rows int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(Header{
		Version:   2,
		Width:     cols,
		Height:    rows,
		Timestamp: r.startTime.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if _, err := r.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// Output records an output event ("o").
func (r *Recorder) Output(data []byte) error {
	return r.event("o", data)
}

// Input records an input event ("i").
func (r *Recorder) Input(data []byte) error {
	return r.event("i", data)
}

func (r *Recorder) event(eventType string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, err := json.Marshal([]interface{}{
		time.Since(r.startTime).Seconds(),
		eventType,
		string(data),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := r.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close closes the underlying file if the recorder owns one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
