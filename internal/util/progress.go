package util

import (
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress counts finished items. Implementations must be safe for use from
// one goroutine at a time.
type Progress interface {
	Add(n int) error
	Finish() error
}

// NewProgress returns a stderr progress bar for total items, or a silent
// counter when visible is false
func NewProgress(total int, description string, visible bool) Progress {
	return newProgress(os.Stderr, total, description, visible)
}

func newProgress(w io.Writer, total int, description string, visible bool) Progress {
	if !visible {
		return nopProgress{}
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

type nopProgress struct{}

func (nopProgress) Add(int) error { return nil }
func (nopProgress) Finish() error { return nil }
