// Package evcam estimates camera rotation from an event-camera stream
// against an equirectangular brightness panorama. The measurement core
// compares, per event, the panorama intensity under the current rotation
// estimate with the intensity under the rotation recorded at that pixel's
// previous event, and differentiates that contrast with respect to the
// rotation state.
package evcam

// Event is a single event-camera measurement: one pixel reporting a
// brightness change of a given sign at a given time.
type Event struct {
	UnixNanos int64
	X         int
	Y         int
	Polarity  int8 // +1 brightness increase, -1 decrease
	Pixel     int  // linear index into the undistortion table: y*sensorWidth + x
}

// PixelIndices extracts the per-event pixel indices in event order.
func PixelIndices(events []Event) []int {
	pixels := make([]int, len(events))
	for i, ev := range events {
		pixels[i] = ev.Pixel
	}
	return pixels
}
