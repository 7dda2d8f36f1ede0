// Package zonestat reads the daily per-zone input series consumed by
// the simulator: wind production, demand, reservoir inflow and
// optional absolute reservoir levels.
package zonestat

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

const dateFormat = "2006-01-02"

// Point is one daily value in an input series.
type Point struct {
	// Date holds the day the value applies to, at midnight UTC.
	Date time.Time
	// Value holds the reading for that day, in MWh (or, for
	// reservoir level series, an absolute level).
	Value float64
}

// PointReader represents a source of daily points.
// Each call to ReadPoint returns the next point in the stream.
type PointReader interface {
	// ReadPoint returns the next point in the stream.
	// It returns io.EOF at the end of the available points.
	ReadPoint() (Point, error)
}

// NewMemPointReader returns a PointReader that returns
// successive values from the given slice.
func NewMemPointReader(points []Point) PointReader {
	return &memPointReader{points}
}

type memPointReader struct {
	points []Point
}

func (r *memPointReader) ReadPoint() (Point, error) {
	if len(r.points) == 0 {
		return Point{}, io.EOF
	}
	p := r.points[0]
	r.points = r.points[1:]
	return p, nil
}

// NewPointReader returns a PointReader that reads points from a
// textual series file. Each line holds two comma-separated fields:
//	date of the reading (YYYY-MM-DD)
//	value for that day
// Blank lines and lines starting with # are ignored.
func NewPointReader(r io.Reader) PointReader {
	return &filePointReader{
		scanner: bufio.NewScanner(r),
	}
}

type filePointReader struct {
	scanner *bufio.Scanner
}

func (r *filePointReader) ReadPoint() (Point, error) {
	for {
		if !r.scanner.Scan() {
			if r.scanner.Err() == nil {
				return Point{}, io.EOF
			}
			return Point{}, r.scanner.Err()
		}
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return Point{}, fmt.Errorf("invalid series line found: %q", line)
		}
		date, err := time.Parse(dateFormat, strings.TrimSpace(fields[0]))
		if err != nil {
			return Point{}, fmt.Errorf("invalid date in series line %q", fields[0])
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return Point{}, fmt.Errorf("invalid value in series line %q", fields[1])
		}
		return Point{
			Date:  date,
			Value: value,
		}, nil
	}
}

// WritePoints reads all the points from r and writes them to w
// in the format understood by NewPointReader.
func WritePoints(w io.Writer, r PointReader) error {
	for {
		p, err := r.ReadPoint()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("error reading point: %v", err)
		}
		if _, err := fmt.Fprintf(w, "%s,%g\n", p.Date.Format(dateFormat), p.Value); err != nil {
			return fmt.Errorf("error writing point: %v", err)
		}
	}
}

// GapPolicy determines what a Series reports for a date that has no
// point of its own.
type GapPolicy int

const (
	// GapNone reports dates without a point as missing. Used for
	// sparse series such as observed reservoir levels.
	GapNone GapPolicy = iota
	// GapHold carries the most recent earlier value forward. Used
	// for demand, which is assumed to persist until re-measured.
	GapHold
)

// Series holds one zone's daily values for a single quantity, ordered
// by date.
type Series struct {
	policy GapPolicy
	points []Point
}

// NewSeries returns a Series over the given points with the given gap
// policy. The points are sorted by date; when several points share a
// date the last one given wins.
func NewSeries(points []Point, policy GapPolicy) *Series {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	deduped := sorted[:0]
	for _, p := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return &Series{
		policy: policy,
		points: deduped,
	}
}

// ReadSeries reads all points from r into a Series with the given gap
// policy.
func ReadSeries(r PointReader, policy GapPolicy) (*Series, error) {
	var points []Point
	for {
		p, err := r.ReadPoint()
		if err == io.EOF {
			return NewSeries(points, policy), nil
		}
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
}

// Len returns the number of points in the series.
func (s *Series) Len() int {
	return len(s.points)
}

// First returns the earliest point in the series.
func (s *Series) First() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[0], true
}

// Value returns the series value for the given date. For a date with
// no point of its own the result depends on the series' gap policy.
func (s *Series) Value(date time.Time) (float64, bool) {
	// Index of the first point after date.
	i := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Date.After(date)
	})
	if i == 0 {
		return 0, false
	}
	p := s.points[i-1]
	if p.Date.Equal(date) {
		return p.Value, true
	}
	if s.policy == GapHold {
		return p.Value, true
	}
	return 0, false
}
