package groundctl

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	turnSteps    = 200
	reverseTicks = 400

	// DefaultRowLength is five wheel ticks.
	DefaultRowLength = TickDistance * 5
	// DefaultCropWidth is three wheel ticks.
	DefaultCropWidth = TickDistance * 3

	// fixed sequencer gain, the bounds are tuned for it
	autoGain = 1
)

// Drive is a motor command in the logical -63..63 range.
type Drive struct {
	Left  int8
	Right int8
}

var (
	advance = Drive{Left: 10 * autoGain, Right: 10 * autoGain}
	retreat = Drive{Left: -10 * autoGain, Right: -10 * autoGain}
	// the row-end maneuver always pivots left
	pivot = Drive{Left: 10, Right: 63}
)

type ManeuverStage int

const (
	ForwardRow ManeuverStage = iota
	Turn1
	Reverse
	Turn2
)

func (s ManeuverStage) String() string {
	switch s {
	case ForwardRow:
		return "FORWARD_ROW"
	case Turn1:
		return "TURN_1"
	case Reverse:
		return "REVERSE"
	case Turn2:
		return "TURN_2"
	}
	return "UNKNOWN"
}

type ManeuverState struct {
	Enabled bool
	Stage   ManeuverStage
	// true once the second turn is done and the machine drives back
	Returning bool

	LegStart     float64
	TurnStart    float64
	TurnSteps    int
	ReverseTicks int

	RowLength float64
	CropWidth float64
}

// Bound is the rear-left distance at which the current forward leg ends.
func (s ManeuverState) Bound() float64 {
	return s.LegStart + s.RowLength
}

// Sequencer drives the row-end maneuver: travel a row, pivot, back up, pivot,
// travel back. Only a center hazard stops it.
type Sequencer struct {
	mu    sync.Mutex
	state ManeuverState
}

// NewSequencer starts disabled. A rowLength of zero or less means
// DefaultRowLength.
func NewSequencer(rowLength float64) *Sequencer {
	if rowLength <= 0 {
		rowLength = DefaultRowLength
	}
	return &Sequencer{state: ManeuverState{
		RowLength: rowLength,
		CropWidth: DefaultCropWidth,
	}}
}

// Enable starts the maneuver with the current rear-left distance as origin.
func (s *Sequencer) Enable(leftDist float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Enabled {
		return
	}
	s.reset()
	s.state.Enabled = true
	s.state.LegStart = leftDist
	log.WithField("origin", leftDist).Info("autonomous mode on")
}

func (s *Sequencer) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disable()
}

func (s *Sequencer) disable() {
	if s.state.Enabled {
		log.WithField("stage", s.state.Stage).Info("autonomous mode off")
	}
	s.reset()
	s.state.Enabled = false
}

func (s *Sequencer) reset() {
	s.state.Stage = ForwardRow
	s.state.Returning = false
	s.state.TurnStart = 0
	s.state.TurnSteps = 0
	s.state.ReverseTicks = 0
}

func (s *Sequencer) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Enabled
}

// AdjustRowLength changes the row length by steps ticks, never below zero.
func (s *Sequencer) AdjustRowLength(steps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RowLength += float64(steps) * TickDistance
	if s.state.RowLength < 0 {
		s.state.RowLength = 0
	}
}

func (s *Sequencer) AdjustCropWidth(steps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CropWidth += float64(steps) * TickDistance
	if s.state.CropWidth < 0 {
		s.state.CropWidth = 0
	}
}

func (s *Sequencer) State() ManeuverState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Step advances the machine by one command cycle. active is false when the
// machine is disabled, including when this step completed the maneuver.
// Counters only move on steps that issued a command.
func (s *Sequencer) Step(leftDist float64, hazards HazardFlags) (cmd Drive, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if !st.Enabled {
		return Drive{}, false
	}

	if st.Stage == ForwardRow {
		if leftDist < st.Bound() {
			if hazards.Center {
				return Drive{}, true
			}
			return advance, true
		}
		if st.Returning {
			log.WithField("distance", leftDist).Info("row-end maneuver complete")
			s.disable()
			return Drive{}, false
		}
		s.enter(Turn1, leftDist)
	}

	if hazards.Center {
		return Drive{}, true
	}

	switch st.Stage {
	case Turn1, Turn2:
		st.TurnSteps++
		if st.TurnSteps >= turnSteps {
			st.TurnSteps = 0
			if st.Stage == Turn1 {
				s.enter(Reverse, leftDist)
			} else {
				st.LegStart = st.TurnStart
				st.Returning = true
				s.enter(ForwardRow, leftDist)
			}
		}
		return pivot, true
	case Reverse:
		st.ReverseTicks++
		if st.ReverseTicks >= reverseTicks {
			st.ReverseTicks = 0
			s.enter(Turn2, leftDist)
		}
		return retreat, true
	}
	return Drive{}, true
}

func (s *Sequencer) enter(stage ManeuverStage, leftDist float64) {
	if stage == Turn1 || stage == Turn2 {
		s.state.TurnStart = leftDist
	}
	log.WithFields(log.Fields{
		"from":     s.state.Stage,
		"to":       stage,
		"distance": leftDist,
	}).Debug("maneuver transition")
	s.state.Stage = stage
}
