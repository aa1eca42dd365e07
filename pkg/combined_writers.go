package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// CombinedWriter fans out every write to all of its writers, e.g. stdout and a rotated log file.
// A failing writer does not stop the others; Err accumulates all write errors seen so far.
type CombinedWriter struct {
	Writers []io.Writer
	Err     error
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{
		Writers: append([]io.Writer(nil), writers...),
	}
}

func (cw *CombinedWriter) Write(p []byte) (n int, err error) {
	for _, w := range cw.Writers {
		written, werr := w.Write(p)
		if werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		n += written
	}
	cw.Err = multierr.Append(cw.Err, err)
	return n, err
}
