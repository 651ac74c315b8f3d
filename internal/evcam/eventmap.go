package evcam

import (
	"fmt"
	"sync"
)

// EventMap records, per sensor pixel, the time and camera rotation in effect
// when that pixel last produced an event. Every entry starts as the identity
// rotation (no event seen yet).
//
// Readers and the single writer must be serialised externally with respect
// to EKF correction steps: a correction call treats the map as a read-only
// snapshot for its duration. The internal lock only makes individual
// operations safe, it does not order a concurrent Record against an
// in-flight evaluation.
type EventMap struct {
	mu        sync.RWMutex
	rotations []Mat3
	unixNanos []int64
}

// NewEventMap creates an event map for a sensor with the given pixel count.
func NewEventMap(pixels int) *EventMap {
	m := &EventMap{
		rotations: make([]Mat3, pixels),
		unixNanos: make([]int64, pixels),
	}
	for i := range m.rotations {
		m.rotations[i] = Identity3()
	}
	return m
}

// Pixels returns the number of pixels tracked by the map.
func (m *EventMap) Pixels() int {
	return len(m.rotations)
}

// Rotation returns the rotation recorded for a pixel's most recent event,
// or the identity if the pixel has not fired yet.
func (m *EventMap) Rotation(pixel int) (Mat3, error) {
	if pixel < 0 || pixel >= len(m.rotations) {
		return Mat3{}, fmt.Errorf("pixel index %d out of range [0, %d)", pixel, len(m.rotations))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rotations[pixel], nil
}

// LastUnixNanos returns the timestamp of the pixel's most recent event,
// zero if it has not fired.
func (m *EventMap) LastUnixNanos(pixel int) (int64, error) {
	if pixel < 0 || pixel >= len(m.unixNanos) {
		return 0, fmt.Errorf("pixel index %d out of range [0, %d)", pixel, len(m.unixNanos))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unixNanos[pixel], nil
}

// Record stores the rotation and timestamp for a single pixel's event.
func (m *EventMap) Record(pixel int, unixNanos int64, rot Mat3) error {
	if pixel < 0 || pixel >= len(m.rotations) {
		return fmt.Errorf("pixel index %d out of range [0, %d)", pixel, len(m.rotations))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotations[pixel] = rot
	m.unixNanos[pixel] = unixNanos
	return nil
}

// RecordBatch stores the same rotation for every event in a batch, keeping
// each event's own timestamp. Called after a correction step with the
// post-correction rotation.
func (m *EventMap) RecordBatch(events []Event, rot Mat3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		if ev.Pixel < 0 || ev.Pixel >= len(m.rotations) {
			return fmt.Errorf("pixel index %d out of range [0, %d)", ev.Pixel, len(m.rotations))
		}
		m.rotations[ev.Pixel] = rot
		m.unixNanos[ev.Pixel] = ev.UnixNanos
	}
	return nil
}
