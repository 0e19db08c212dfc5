package groundctl

import (
	"math"
	"sync"

	"github.com/jd3nn1s/groundctl/naio"
)

const (
	// distance credited for one wheel tick
	TickDistance = 6.454
	// wheel track width, same unit as TickDistance
	trackWidth   = 34.0
	wheelRadius  = 0.31
)

type Wheel int

const (
	FrontRight Wheel = iota
	RearRight
	RearLeft
	FrontLeft
	wheelCount
)

func (w Wheel) String() string {
	switch w {
	case FrontRight:
		return "front-right"
	case RearRight:
		return "rear-right"
	case RearLeft:
		return "rear-left"
	case FrontLeft:
		return "front-left"
	}
	return "unknown"
}

type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

type OdometryState struct {
	Ticks    [wheelCount]int
	Distance [wheelCount]float64

	// cumulative travel fed into the pose integration
	LeftTravel  float64
	RightTravel float64

	Pose Pose
	// seconds elapsed since start, whether moving or not
	Elapsed int
}

// Odometry turns wheel tick counters into distances and a dead-reckoned
// pose. The pose model is the one the maneuver bounds are tuned against and
// is deliberately not a differential drive integration.
type Odometry struct {
	mu    sync.Mutex
	state OdometryState
}

func NewOdometry() *Odometry {
	return &Odometry{}
}

// Observe credits wheel distance for tick counters that changed since the
// last observation. The first change after a reset only records the value.
func (o *Odometry) Observe(odo *naio.Odometry, moving bool) {
	if odo == nil || !moving {
		return
	}
	ticks := [wheelCount]int{
		FrontRight: int(odo.FR),
		RearRight:  int(odo.RR),
		RearLeft:   int(odo.RL),
		FrontLeft:  int(odo.FL),
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for w, v := range ticks {
		last := o.state.Ticks[w]
		if v == last {
			continue
		}
		if last != 0 {
			o.state.Distance[w] += TickDistance
		}
		o.state.Ticks[w] = v
	}
}

// Integrate advances the pose by one step. Called once per second.
func (o *Odometry) Integrate(moving bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Elapsed++
	if !moving {
		return
	}

	s := &o.state
	left := s.LeftTravel + s.Distance[RearLeft]
	right := s.RightTravel + s.Distance[RearRight]
	heading := (left - right) / trackWidth
	displacement := ((left - s.LeftTravel) + (right - s.RightTravel)) / 2

	s.Pose.X += displacement * wheelRadius * math.Cos(heading)
	s.Pose.Y += displacement * wheelRadius * math.Sin(heading)
	s.Pose.Heading = heading
	s.LeftTravel = left
	s.RightTravel = right
}

// LeftDistance is the rear-left wheel distance the maneuver is bounded by.
func (o *Odometry) LeftDistance() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Distance[RearLeft]
}

func (o *Odometry) State() OdometryState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Odometry) Reset() {
	o.mu.Lock()
	o.state = OdometryState{}
	o.mu.Unlock()
}
