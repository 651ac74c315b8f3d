package evcam

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// StreamReader parses text event files in the common event-camera dataset
// format: one event per line, "timestamp x y polarity", timestamp in seconds
// as a decimal, polarity 0/1 or -1/1. Lines are assumed time-ordered; the
// reader does not re-sort.
type StreamReader struct {
	scanner     *bufio.Scanner
	sensorWidth int
	line        int
	closer      io.Closer
}

// NewStreamReader wraps an io.Reader producing event lines. sensorWidth is
// needed to derive the linear pixel index (y*sensorWidth + x).
func NewStreamReader(r io.Reader, sensorWidth int) *StreamReader {
	return &StreamReader{
		scanner:     bufio.NewScanner(r),
		sensorWidth: sensorWidth,
	}
}

// OpenEventFile opens an event text file for streaming. Close the reader
// when done.
func OpenEventFile(path string, sensorWidth int) (*StreamReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	sr := NewStreamReader(f, sensorWidth)
	sr.closer = f
	return sr, nil
}

// Close releases the underlying file, if the reader owns one.
func (s *StreamReader) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Next returns the next event in the stream, or io.EOF when exhausted.
func (s *StreamReader) Next() (Event, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		ev, err := s.parseLine(text)
		if err != nil {
			return Event{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		return ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func (s *StreamReader) parseLine(text string) (Event, error) {
	fields := strings.Fields(text)
	if len(fields) != 4 {
		return Event{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}

	sec, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Event{}, fmt.Errorf("bad timestamp: %w", err)
	}
	x, err := strconv.Atoi(fields[1])
	if err != nil {
		return Event{}, fmt.Errorf("bad x coordinate: %w", err)
	}
	y, err := strconv.Atoi(fields[2])
	if err != nil {
		return Event{}, fmt.Errorf("bad y coordinate: %w", err)
	}
	pol, err := strconv.Atoi(fields[3])
	if err != nil {
		return Event{}, fmt.Errorf("bad polarity: %w", err)
	}
	if x < 0 || y < 0 || (s.sensorWidth > 0 && x >= s.sensorWidth) {
		return Event{}, fmt.Errorf("pixel (%d, %d) outside sensor", x, y)
	}

	polarity := int8(1)
	if pol <= 0 {
		polarity = -1
	}

	return Event{
		UnixNanos: int64(sec * 1e9),
		X:         x,
		Y:         y,
		Polarity:  polarity,
		Pixel:     y*s.sensorWidth + x,
	}, nil
}

// ReadBatch reads up to n events. A short batch (possibly empty) with
// io.EOF means the stream is exhausted; any other error aborts the batch.
func (s *StreamReader) ReadBatch(n int) ([]Event, error) {
	batch := make([]Event, 0, n)
	for len(batch) < n {
		ev, err := s.Next()
		if err == io.EOF {
			return batch, io.EOF
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, ev)
	}
	return batch, nil
}
