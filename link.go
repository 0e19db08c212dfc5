package groundctl

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jd3nn1s/groundctl/naio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// sized for the largest burst the robot sends in one go
	readBufferSize = 4000000

	dialTimeout    = 5 * time.Second
	writeTimeout   = time.Second
	readErrorPause = 100 * time.Millisecond

	// zero motor packets sent before the first real setpoint
	primeBurst = 100
	watchdogID = 42
)

// link owns one TCP connection and its codec.
type link struct {
	name      string
	addr      string
	reconnect bool

	mu      sync.Mutex
	conn    net.Conn
	codec   *naio.Codec
	session string
}

func (l *link) Name() string {
	return l.name
}

func (l *link) Open(ctx context.Context) error {
	conn, err := dial(ctx, l.addr)
	if err != nil {
		return errors.Wrapf(err, "unable to connect to %s", l.addr)
	}
	l.mu.Lock()
	l.conn = conn
	l.codec = naio.NewCodec()
	l.session = uuid.NewString()
	l.mu.Unlock()
	l.logger().Info("connected")
	return nil
}

func (l *link) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (l *link) current() (net.Conn, *naio.Codec) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn, l.codec
}

func (l *link) logger() *log.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return log.WithFields(log.Fields{
		"link":    l.name,
		"addr":    l.addr,
		"session": l.session,
	})
}

// closeOnDone closes the connection when ctx ends, which is what unblocks a
// pending read. The returned func stops the watcher.
func (l *link) closeOnDone(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// readLoop feeds everything read from the connection to the codec and hands
// the decoded packets to dispatch. Read failures are retried after a pause
// unless the link reconnects, in which case they end the loop.
func (l *link) readLoop(ctx context.Context, dispatch Dispatcher, pause time.Duration) error {
	conn, codec := l.current()
	if conn == nil {
		return errors.Errorf("%s: not connected", l.name)
	}
	buf := make([]byte, readBufferSize)
	failing := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := conn.Read(buf)
		if n > 0 {
			packets, _ := codec.Feed(buf[:n])
			for _, p := range packets {
				dispatch(p)
			}
		}
		if err == nil && n == 0 {
			err = errors.New("empty read")
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.reconnect {
				return errors.Wrapf(err, "%s: read failed", l.name)
			}
			entry := l.logger().WithField("err", err)
			if !failing {
				entry.Warn("read failed, still polling")
			} else {
				entry.Debug("read failed")
			}
			failing = true
			if !sleepCtx(ctx, readErrorPause) {
				return ctx.Err()
			}
			continue
		}
		if failing {
			l.logger().Info("reads recovered")
			failing = false
		}
		if !sleepCtx(ctx, pause) {
			return ctx.Err()
		}
	}
}

// write sends b in one call. Failures are the caller's to log; nothing is
// retried.
func (l *link) write(b []byte) error {
	conn, _ := l.current()
	if conn == nil {
		return errors.Errorf("%s: not connected", l.name)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(b)
	return err
}

// TelemetryLink carries commands to the robot and most of its telemetry back.
type TelemetryLink struct {
	link
	store      *Store
	setpoint   SetpointSource
	queue      *OutboundQueue
	sendPeriod time.Duration
}

func NewTelemetryLink(addr string, reconnect bool, store *Store, setpoint SetpointSource, queue *OutboundQueue, sendPeriod time.Duration) *TelemetryLink {
	return &TelemetryLink{
		link: link{
			name:      "telemetry",
			addr:      addr,
			reconnect: reconnect,
		},
		store:      store,
		setpoint:   setpoint,
		queue:      queue,
		sendPeriod: sendPeriod,
	}
}

// Start runs the reader and writer until ctx ends or, when reconnecting, the
// reader fails.
func (t *TelemetryLink) Start(ctx context.Context) error {
	stop := t.closeOnDone(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return t.readLoop(gctx, t.store.Dispatch, 0)
	})
	g.Go(func() error {
		return t.writeLoop(gctx)
	})
	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (t *TelemetryLink) writeLoop(ctx context.Context) error {
	t.prime()
	ticker := time.NewTicker(t.sendPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.sendCycle(); err != nil {
				t.logger().WithField("err", err).Debug("send cycle dropped")
			}
		}
	}
}

func (t *TelemetryLink) prime() {
	frame := naio.Encode(&naio.Motors{})
	burst := bytes.Repeat(frame, primeBurst)
	if err := t.write(burst); err != nil {
		t.logger().WithField("err", err).Debug("unable to prime motors")
	}
}

// sendCycle writes the queued packets followed by one motor packet.
func (t *TelemetryLink) sendCycle() error {
	sp := t.setpoint.Current()
	pending := t.queue.Drain()

	buf := bytes.NewBuffer(nil)
	for _, p := range pending {
		buf.Write(naio.Encode(p))
	}
	buf.Write(naio.Encode(&naio.Motors{Left: sp.Left, Right: sp.Right}))
	return t.write(buf.Bytes())
}

// ImageLink receives stereo images on its own connection and keeps it alive
// with watchdog packets.
type ImageLink struct {
	link
	store          *Store
	pollPeriod     time.Duration
	watchdogPeriod time.Duration
	settleDelay    time.Duration
}

func NewImageLink(addr string, reconnect bool, store *Store, pollPeriod, watchdogPeriod, settleDelay time.Duration) *ImageLink {
	return &ImageLink{
		link: link{
			name:      "image",
			addr:      addr,
			reconnect: reconnect,
		},
		store:          store,
		pollPeriod:     pollPeriod,
		watchdogPeriod: watchdogPeriod,
		settleDelay:    settleDelay,
	}
}

func (i *ImageLink) Start(ctx context.Context) error {
	stop := i.closeOnDone(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if !sleepCtx(gctx, i.settleDelay) {
		return ctx.Err()
	}
	g.Go(func() error {
		return i.readLoop(gctx, i.store.DispatchImage, i.pollPeriod)
	})
	if !sleepCtx(gctx, i.settleDelay) {
		return g.Wait()
	}
	g.Go(func() error {
		return i.watchdogLoop(gctx)
	})
	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (i *ImageLink) watchdogLoop(ctx context.Context) error {
	frame := naio.Encode(&naio.Watchdog{ID: watchdogID})
	ticker := time.NewTicker(i.watchdogPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := i.write(frame); err != nil {
				i.logger().WithField("err", err).Debug("watchdog dropped")
			}
		}
	}
}
