package evcam

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// Calibration maps sensor pixel indices to undistorted image-plane
// coordinates. The table is fixed for the lifetime of a session; one entry
// per sensor pixel in row-major order (index = y*SensorWidth + x).
type Calibration struct {
	SensorWidth  int
	SensorHeight int
	undistX      []float64
	undistY      []float64
}

// Pixels returns the number of entries in the undistortion table.
func (c *Calibration) Pixels() int {
	return len(c.undistX)
}

// Bearing returns the homogeneous bearing vector [u, v, 1] for a pixel
// index, where (u, v) is the undistorted image-plane coordinate.
// The vector is deliberately not normalised; the projector accepts
// directions of any length.
func (c *Calibration) Bearing(pixel int) (r3.Vector, error) {
	if pixel < 0 || pixel >= len(c.undistX) {
		return r3.Vector{}, fmt.Errorf("pixel index %d out of range [0, %d)", pixel, len(c.undistX))
	}
	return r3.Vector{X: c.undistX[pixel], Y: c.undistY[pixel], Z: 1}, nil
}

// NewPinholeCalibration builds an ideal (distortion-free) undistortion table
// for a pinhole sensor with focal lengths fx, fy and principal point
// (cx, cy), all in pixels. Useful for synthetic data and tests.
func NewPinholeCalibration(width, height int, fx, fy, cx, cy float64) *Calibration {
	c := &Calibration{
		SensorWidth:  width,
		SensorHeight: height,
		undistX:      make([]float64, width*height),
		undistY:      make([]float64, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			c.undistX[i] = (float64(x) - cx) / fx
			c.undistY[i] = (float64(y) - cy) / fy
		}
	}
	return c
}

// LoadCalibration reads an undistortion table from a whitespace-separated
// text file with one "u v" pair per line, ordered by pixel index. The file
// must contain exactly width*height entries.
func LoadCalibration(path string, width, height int) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calibration: %w", err)
	}
	defer f.Close()

	c, err := readCalibration(f, width, height)
	if err != nil {
		return nil, fmt.Errorf("calibration %s: %w", path, err)
	}
	return c, nil
}

func readCalibration(r io.Reader, width, height int) (*Calibration, error) {
	want := width * height
	c := &Calibration{
		SensorWidth:  width,
		SensorHeight: height,
		undistX:      make([]float64, 0, want),
		undistY:      make([]float64, 0, want),
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 fields, got %d", line, len(fields))
		}
		u, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad u coordinate: %w", line, err)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad v coordinate: %w", line, err)
		}
		c.undistX = append(c.undistX, u)
		c.undistY = append(c.undistY, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(c.undistX) != want {
		return nil, fmt.Errorf("expected %d entries for %dx%d sensor, got %d", want, width, height, len(c.undistX))
	}
	return c, nil
}
