package mot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/sort/internal/monitoring"
	"github.com/banshee-data/sort/internal/tracking"
)

// Column positions in a MOT line.
const (
	colFrame = iota
	colID
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colX
	colY
	colZ
	colClass

	minFields = colHeight + 1
)

// ErrMalformedLine is returned for lines that cannot be parsed.
var ErrMalformedLine = errors.New("mot: malformed line")

// Sequence holds every detection of a file grouped by frame.
type Sequence struct {
	Frames   map[int][]tracking.Detection
	MaxFrame int
	// Skipped counts lines dropped for a non-positive box size.
	Skipped int
}

// Detections returns the detections for frame, or nil for an empty frame.
func (s *Sequence) Detections(frame int) []tracking.Detection {
	return s.Frames[frame]
}

// ReadDetections parses a MOT detection file. Blank lines and lines starting
// with '#' are ignored. Boxes with non-positive width or height are
// dropped and counted in Skipped.
func ReadDetections(r io.Reader) (*Sequence, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	cr.ReuseRecord = true

	seq := &Sequence{Frames: make(map[int][]tracking.Detection)}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
		line, _ := cr.FieldPos(0)

		frame, det, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !det.Valid() {
			seq.Skipped++
			monitoring.Debugf("[mot] line %d: skipping box %+v", line, det.Box)
			continue
		}

		seq.Frames[frame] = append(seq.Frames[frame], det)
		if frame > seq.MaxFrame {
			seq.MaxFrame = frame
		}
	}
	return seq, nil
}

func parseRecord(record []string) (int, tracking.Detection, error) {
	if len(record) < minFields {
		return 0, tracking.Detection{}, fmt.Errorf("%w: %d fields, want at least %d", ErrMalformedLine, len(record), minFields)
	}

	frame, err := strconv.Atoi(strings.TrimSpace(record[colFrame]))
	if err != nil {
		return 0, tracking.Detection{}, fmt.Errorf("%w: frame %q", ErrMalformedLine, record[colFrame])
	}
	if frame < 1 {
		return 0, tracking.Detection{}, fmt.Errorf("%w: frame %d is not 1-based", ErrMalformedLine, frame)
	}

	var box [4]float64
	for i := range box {
		col := colLeft + i
		box[i], err = parseFloat(record[col])
		if err != nil {
			return 0, tracking.Detection{}, fmt.Errorf("%w: column %d: %v", ErrMalformedLine, col+1, err)
		}
	}

	conf := 1.0
	if len(record) > colConf {
		if conf, err = parseFloat(record[colConf]); err != nil {
			return 0, tracking.Detection{}, fmt.Errorf("%w: confidence: %v", ErrMalformedLine, err)
		}
	}

	objType := 0
	if len(record) > colClass {
		if objType, err = strconv.Atoi(strings.TrimSpace(record[colClass])); err != nil {
			return 0, tracking.Detection{}, fmt.Errorf("%w: class %q", ErrMalformedLine, record[colClass])
		}
	}

	return frame, tracking.NewDetection(box[0], box[1], box[2], box[3], objType, conf), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
