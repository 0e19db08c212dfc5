package groundctl

import (
	"context"
	"time"

	"github.com/jd3nn1s/groundctl/clock"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Status is everything a consumer shows the operator, copied out at once.
type Status struct {
	Telemetry Telemetry     `json:"telemetry"`
	Hazards   HazardFlags   `json:"hazards"`
	Maneuver  ManeuverState `json:"maneuver"`
	Odometry  OdometryState `json:"odometry"`
	Setpoint  MotorSetpoint `json:"setpoint"`
	Frame     Frame         `json:"frame"`
}

// Client talks to one robot. The embedded Governor takes the operator's
// input.
type Client struct {
	*Governor

	cfg       Config
	Store     *Store
	Detector  *Detector
	Odometry  *Odometry
	Sequencer *Sequencer
	Queue     *OutboundQueue
	Stager    *Stager

	telemetryLink *TelemetryLink
	imageLink     *ImageLink

	testMode   bool
	forwarders []Forwarder

	group *errgroup.Group
}

func NewClient(cfg Config) *Client {
	store := NewStore()
	detector := NewDetector()
	odometry := NewOdometry()
	seq := NewSequencer(cfg.RowLength)
	queue := &OutboundQueue{}
	gov := NewGovernor(seq, detector, odometry, queue)

	return &Client{
		Governor:  gov,
		cfg:       cfg,
		Store:     store,
		Detector:  detector,
		Odometry:  odometry,
		Sequencer: seq,
		Queue:     queue,
		Stager:    NewStager(&store.Stereo, clock.Real{}, cfg.StaleAfter.Duration),
		telemetryLink: NewTelemetryLink(cfg.TelemetryAddr(), cfg.Reconnect,
			store, gov, queue, cfg.SendPeriod.Duration),
		imageLink: NewImageLink(cfg.ImageAddr(), cfg.Reconnect, store,
			cfg.ImagePollPeriod.Duration, cfg.WatchdogPeriod.Duration, cfg.SettleDelay.Duration),
	}
}

// SetTestMode replaces both links with generated telemetry.
func (c *Client) SetTestMode(testMode bool) {
	c.testMode = testMode
}

func (c *Client) AddForwarder(f Forwarder) {
	c.forwarders = append(c.forwarders, f)
}

// Start launches every worker and returns. Use Wait to block until they stop.
func (c *Client) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	c.group = g

	if c.testMode {
		log.Info("test mode, not connecting")
		c.runTestMode(gctx, g)
	} else {
		g.Go(func() error {
			return c.runLink(gctx, c.telemetryLink)
		})
		g.Go(func() error {
			// the robot needs the telemetry connection first
			if !sleepCtx(gctx, c.cfg.SettleDelay.Duration) {
				return gctx.Err()
			}
			return c.runLink(gctx, c.imageLink)
		})
	}
	g.Go(func() error {
		return c.Stager.Run(gctx, c.cfg.StagingPeriod.Duration)
	})
	g.Go(func() error {
		return every(gctx, c.cfg.ControlPeriod.Duration, c.controlCycle)
	})
	g.Go(func() error {
		return every(gctx, c.cfg.OdometryPeriod.Duration, func() {
			c.Odometry.Integrate(c.Governor.Moving())
		})
	})
}

// Wait blocks until every worker has stopped. Cancellation is not an error.
func (c *Client) Wait() error {
	if c.group == nil {
		return nil
	}
	err := c.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Client) runLink(ctx context.Context, r Retryable) error {
	if c.cfg.Reconnect {
		return retry(ctx, r)
	}
	return once(ctx, r)
}

// controlCycle refreshes the hazards from the latest scan, credits odometry
// and computes the next setpoint.
func (c *Client) controlCycle() {
	scan, _ := c.Store.Lidar.Get()
	hazards := c.Detector.Update(scan)

	odo, _ := c.Store.Odo.Get()
	c.Odometry.Observe(odo, c.Governor.Moving())

	c.Governor.Cycle(hazards)
	c.statusUpdate()
}

func (c *Client) statusUpdate() {
	if len(c.forwarders) == 0 {
		return
	}
	status := c.Status()
	for _, f := range c.forwarders {
		if err := f.Forward(&status); err != nil {
			log.WithField("err", err).Error("unable to forward status")
		}
	}
}

func (c *Client) Status() Status {
	return Status{
		Telemetry: c.Store.Snapshot(),
		Hazards:   c.Detector.Flags(),
		Maneuver:  c.Sequencer.State(),
		Odometry:  c.Odometry.State(),
		Setpoint:  c.Governor.Current(),
		Frame:     c.Stager.Info(),
	}
}

// Frame copies out the staged image.
func (c *Client) Frame() Frame {
	return c.Stager.Snapshot()
}

// every calls fn each period until ctx is done.
func every(ctx context.Context, period time.Duration, fn func()) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}
