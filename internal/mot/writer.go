package mot

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/banshee-data/sort/internal/tracking"
)

// Writer emits tracker output in MOT format.
type Writer struct {
	w *csv.Writer
}

// NewWriter creates a Writer on w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// WriteFrame writes one line per track for frame.
func (w *Writer) WriteFrame(frame int, tracks []tracking.TrackSnapshot) error {
	fr := strconv.Itoa(frame)
	for _, trk := range tracks {
		record := []string{
			fr,
			strconv.Itoa(trk.ID + 1),
			formatFloat(trk.Box.X),
			formatFloat(trk.Box.Y),
			formatFloat(trk.Box.Width),
			formatFloat(trk.Box.Height),
			"1", "-1", "-1", "-1",
		}
		if err := w.w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered lines and reports the first write error.
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
