package ephemeris

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/solarwindow/pvpoll/internal/logger"
)

const (
	availabilityUnknown int32 = iota
	availabilityPresent
	availabilityMissing
)

// FileGatedProvider makes an inner provider available only while a data file
// exists. The file is checked on every call so a file installed after startup
// is picked up without a restart.
type FileGatedProvider struct {
	path  string
	inner Provider
	log   logger.Logger
	state atomic.Int32

	// OnAvailabilityChange, when set, is called on every transition
	OnAvailabilityChange func(available bool)
}

// NewFileGatedProvider wraps inner behind the presence of path
func NewFileGatedProvider(path string, inner Provider) *FileGatedProvider {
	return &FileGatedProvider{
		path:  path,
		inner: inner,
		log:   GetLogger().With(logger.String("datafile", path)),
	}
}

// Available reports whether the data file is present right now
func (p *FileGatedProvider) Available() bool {
	_, err := os.Stat(p.path)
	p.transition(err == nil, err)
	return err == nil
}

// Elevation delegates to the inner provider when the data file exists
func (p *FileGatedProvider) Elevation(body Body, t time.Time, loc Location) (float64, error) {
	if !p.Available() {
		return 0, fmt.Errorf("%w: data file %s not found", ErrUnavailable, p.path)
	}
	return p.inner.Elevation(body, t, loc)
}

func (p *FileGatedProvider) transition(available bool, statErr error) {
	next := availabilityMissing
	if available {
		next = availabilityPresent
	}
	prev := p.state.Swap(next)
	if prev == next {
		return
	}

	if available {
		p.log.Info("ephemeris data file available")
	} else {
		p.log.Warn("ephemeris data file missing, elevation queries degrade until it appears",
			logger.Error(statErr))
	}
	if p.OnAvailabilityChange != nil {
		p.OnAvailabilityChange(available)
	}
}
