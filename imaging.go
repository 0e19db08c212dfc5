package groundctl

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/jd3nn1s/groundctl/clock"
	"github.com/jd3nn1s/groundctl/naio"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	rawWidth   = 752
	rawHeight  = 480
	rectWidth  = 376
	rectHeight = 240
	eyes       = 2

	rawSourceSize  = rawWidth * rawHeight * eyes
	rectSourceSize = rectWidth * rectHeight * 3 * eyes

	// StagingCapacity holds a full resolution pair expanded to 3 channels.
	StagingCapacity = rawSourceSize * 3
)

// Frame is a staged stereo pair: the left eye followed by the right eye,
// 3 channels per pixel.
type Frame struct {
	Type     naio.ImageType
	Width    int
	Height   int
	Channels int
	// Fallback marks the synthetic no-signal pattern.
	Fallback bool
	Seq      uint64
	Data     []byte
}

// Stager decompresses and lays out the latest stereo image off the reader
// goroutine, and replaces stale frames with a test pattern.
type Stager struct {
	slot       *Slot[*naio.StereoImage]
	clock      clock.Clock
	staleAfter time.Duration
	scratch    []byte

	mu         sync.Mutex
	buf        []byte
	frame      Frame
	lastStaged time.Time
}

func NewStager(slot *Slot[*naio.StereoImage], c clock.Clock, staleAfter time.Duration) *Stager {
	s := &Stager{
		slot:       slot,
		clock:      c,
		staleAfter: staleAfter,
		// one extra byte to detect oversize output
		scratch: make([]byte, rawSourceSize+1),
		buf:     make([]byte, StagingCapacity),
	}
	s.mu.Lock()
	s.fillPattern()
	s.mu.Unlock()
	return s
}

// Run stages images every period until ctx is done.
func (s *Stager) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				log.WithField("err", err).Warn("dropping stereo frame")
			}
		}
	}
}

// Tick runs one staging cycle.
func (s *Stager) Tick() error {
	img, ok := s.slot.Take()
	if !ok || img == nil {
		if s.clock.Since(s.lastStagedTime()) > s.staleAfter {
			s.mu.Lock()
			s.fillPattern()
			s.mu.Unlock()
		}
		return nil
	}
	return s.stage(img)
}

func (s *Stager) lastStagedTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStaged
}

func (s *Stager) stage(img *naio.StereoImage) error {
	limit := rectSourceSize
	if img.Type.Raw() {
		limit = rawSourceSize
	}

	src := img.Data
	if img.Type.Compressed() {
		n, err := inflate(s.scratch, limit, img.Data)
		if err != nil {
			return errors.Wrapf(err, "unable to decompress image type %d", img.Type)
		}
		src = s.scratch[:n]
	} else if len(src) > limit {
		return errors.Errorf("image of %d bytes exceeds %d for type %d", len(src), limit, img.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(src)
	if img.Type.Raw() {
		// grey replicated over three channels
		for i, v := range src {
			s.buf[i*3] = v
			s.buf[i*3+1] = v
			s.buf[i*3+2] = v
		}
		n *= 3
		s.frame.Width, s.frame.Height = rawWidth, rawHeight
	} else {
		copy(s.buf, src)
		s.frame.Width, s.frame.Height = rectWidth, rectHeight
	}
	s.frame.Type = img.Type
	s.frame.Channels = 3
	s.frame.Fallback = false
	s.frame.Seq++
	s.frame.Data = s.buf[:n]
	s.lastStaged = s.clock.Now()
	return nil
}

// fillPattern overwrites the whole buffer with a repeating ramp. Callers hold
// s.mu.
func (s *Stager) fillPattern() {
	var v uint8
	for i := range s.buf {
		if v >= 255 {
			v = 0
		}
		s.buf[i] = v
		v++
	}
	s.frame = Frame{
		Width:    rawWidth,
		Height:   rawHeight,
		Channels: 3,
		Fallback: true,
		Seq:      s.frame.Seq + 1,
		Data:     s.buf,
	}
	s.lastStaged = s.clock.Now()
}

// Snapshot copies the staged frame out.
func (s *Stager) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.frame
	f.Data = make([]byte, len(s.frame.Data))
	copy(f.Data, s.frame.Data)
	return f
}

// Info is the staged frame without its pixels.
func (s *Stager) Info() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.frame
	f.Data = nil
	return f
}

// inflate decompresses src into scratch and fails if the output would be
// larger than limit. scratch must hold at least limit+1 bytes.
func inflate(scratch []byte, limit int, src []byte) (int, error) {
	if len(scratch) <= limit {
		return 0, errors.Errorf("scratch buffer of %d bytes cannot hold %d", len(scratch), limit)
	}
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	dst := scratch[:limit+1]
	n := 0
	for n < len(dst) {
		m, err := zr.Read(dst[n:])
		n += m
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if n > limit {
		return 0, errors.Errorf("decompressed size exceeds %d bytes", limit)
	}
	return n, nil
}
