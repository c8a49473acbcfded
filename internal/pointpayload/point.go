// Package pointpayload defines the fixed-layout Point record that lives in
// the shared memory region and the helpers that read/write it. The region is
// raw, process-shared bytes rather than a Go struct pointer (two attaching
// processes see the segment at different addresses), so every access goes
// through encoding/binary against a []byte view.
package pointpayload

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/moneytech/pointmon/internal/ipcerr"
	"github.com/moneytech/pointmon/internal/logging"
)

// MaxPoints is the fixed number of slots in the shared region.
const MaxPoints = 20

// PointSize is the on-the-wire size of one Point: a 4-byte valid flag and two
// 4-byte IEEE-754 floats.
const PointSize = 12

// RegionSize is the total byte size of the shared region.
const RegionSize = MaxPoints * PointSize

// Point is a single valid-flag + x/y coordinate record.
type Point struct {
	Valid int32
	X     float32
	Y     float32
}

var _ [PointSize]byte = [unsafe.Sizeof(Point{})]byte{}

// PointTask is one parsed line from the producer's script.
type PointTask struct {
	Index int
	Delay int
	Point Point
}

// Invalidating reports whether the task invalidates its slot rather than
// installing a point: a negative delay means invalidate.
func (t PointTask) Invalidating() bool {
	return t.Delay < 0
}

// SleepSeconds is the magnitude of the task's delay, regardless of sign.
func (t PointTask) SleepSeconds() int {
	if t.Delay < 0 {
		return -t.Delay
	}
	return t.Delay
}

// encodePoint writes p into buf[off:off+PointSize].
func encodePoint(buf []byte, off int, p Point) {
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(p.Valid))
	binary.LittleEndian.PutUint32(buf[off+4:off+8], math.Float32bits(p.X))
	binary.LittleEndian.PutUint32(buf[off+8:off+12], math.Float32bits(p.Y))
}

// decodePoint reads a Point from buf[off:off+PointSize].
func decodePoint(buf []byte, off int) Point {
	return Point{
		Valid: int32(binary.LittleEndian.Uint32(buf[off : off+4])),
		X:     math.Float32frombits(binary.LittleEndian.Uint32(buf[off+4 : off+8])),
		Y:     math.Float32frombits(binary.LittleEndian.Uint32(buf[off+8 : off+12])),
	}
}

// Install copies p into slot idx of the region, bounds-checking idx.
// Out-of-range indices are logged fatal and the write is skipped.
func Install(base []byte, idx int, p Point) error {
	logging.Log(logging.Info, " Installing new point (index:%d)", idx)
	if idx < 0 || idx >= MaxPoints {
		logging.Log(logging.Fatal, " Error: invalid point index (%d). Cancelling point installation.", idx)
		return ipcerr.New("Install", ipcerr.CodeInvalidIndex, fmt.Sprintf("index %d out of range", idx))
	}
	encodePoint(base, idx*PointSize, p)
	return nil
}

// Invalidate clears the valid flag at slot idx, bounds-checking idx.
func Invalidate(base []byte, idx int) error {
	logging.Log(logging.Info, " Invalidating existing point (index:%d)", idx)
	if idx < 0 || idx >= MaxPoints {
		logging.Log(logging.Fatal, " Error: invalid point index (%d). Cancelling point invalidation.", idx)
		return ipcerr.New("Invalidate", ipcerr.CodeInvalidIndex, fmt.Sprintf("index %d out of range", idx))
	}
	p := decodePoint(base, idx*PointSize)
	p.Valid = 0
	encodePoint(base, idx*PointSize, p)
	return nil
}

// Stats summarizes the valid points in a region.
type Stats struct {
	ValidCount int
	AvgX       float32
	AvgY       float32
}

// ShowPoints computes Stats over base[:max*PointSize] and logs a
// human-readable tree-formatted dump of every valid point.
func ShowPoints(base []byte, max int) Stats {
	var sumX, sumY float32
	var valid int
	for idx := 0; idx < max; idx++ {
		p := decodePoint(base, idx*PointSize)
		if p.Valid == 1 {
			valid++
			sumX += p.X
			sumY += p.Y
		}
	}

	stats := Stats{ValidCount: valid}
	if valid > 0 {
		stats.AvgX = sumX / float32(valid)
		stats.AvgY = sumY / float32(valid)
		logging.Log(logging.Warning, " ● PointStats(valid_count=%d, avg_x=%2.3f, avg_y=%2.3f)",
			stats.ValidCount, stats.AvgX, stats.AvgY)

		remaining := valid
		for idx := 0; idx < max; idx++ {
			p := decodePoint(base, idx*PointSize)
			if p.Valid != 1 {
				continue
			}
			remaining--
			branch := "├──"
			if remaining == 0 {
				branch = "└──"
			}
			logging.Log(logging.Warning, "   %s Idx:%d = Point(is_valid=%d, x=%2.3f, y=%2.3f)",
				branch, idx, p.Valid, p.X, p.Y)
		}
	} else {
		logging.Log(logging.Warning, " ● PointStats(valid_count=0, avg_x=0, avg_y=0)")
	}
	return stats
}

// ShowTask logs a human-readable, tree-entry-style representation of a task.
func ShowTask(t PointTask) {
	logging.Log(logging.Warning, " ● Task(idx=%d, delay=%d, Point(is_valid=%d, x=%2.3f, y=%2.3f))",
		t.Index, t.Delay, t.Point.Valid, t.Point.X, t.Point.Y)
}
