package groundctl

import (
	"sync"

	"github.com/jd3nn1s/groundctl/naio"
	log "github.com/sirupsen/logrus"
)

// wire scale applied to the logical drive range
const motorScale = 2

// Direction is a set of held manual direction inputs.
type Direction uint8

const (
	DirForward Direction = 1 << iota
	DirBackward
	DirLeft
	DirRight
)

func (d Direction) has(o Direction) bool {
	return d&o == o
}

// PadButton is a slow-speed on-screen direction pad press.
type PadButton uint8

const (
	PadNone PadButton = iota
	PadUp
	PadLeft
	PadRight
	PadDown
)

// MotorSetpoint is what goes on the wire, already scaled.
type MotorSetpoint struct {
	Left  int8
	Right int8
}

func scale(d Drive) MotorSetpoint {
	return MotorSetpoint{Left: d.Left * motorScale, Right: d.Right * motorScale}
}

// Governor merges operator input, the sequencer and the hazard flags into the
// one setpoint the writer sends.
type Governor struct {
	inMu sync.Mutex
	held Direction
	pad  PadButton

	spMu     sync.Mutex
	setpoint MotorSetpoint

	seq      *Sequencer
	hazards  HazardSource
	distance DistanceSource
	queue    *OutboundQueue
}

func NewGovernor(seq *Sequencer, hazards HazardSource, distance DistanceSource, queue *OutboundQueue) *Governor {
	return &Governor{
		seq:      seq,
		hazards:  hazards,
		distance: distance,
		queue:    queue,
	}
}

// SetDirections replaces the set of held direction inputs.
func (g *Governor) SetDirections(d Direction) {
	g.inMu.Lock()
	g.held = d
	g.inMu.Unlock()
}

func (g *Governor) SetPad(p PadButton) {
	g.inMu.Lock()
	g.pad = p
	g.inMu.Unlock()
}

func (g *Governor) SetAutonomous(on bool) {
	if on {
		g.seq.Enable(g.distance.LeftDistance())
		return
	}
	g.seq.Disable()
}

func (g *Governor) AdjustRowLength(steps int) {
	g.seq.AdjustRowLength(steps)
}

func (g *Governor) AdjustCropWidth(steps int) {
	g.seq.AdjustCropWidth(steps)
}

// RequestVideo asks the robot to start or stop streaming raw stereo images.
func (g *Governor) RequestVideo(on bool) {
	if on {
		g.queue.Push(
			&naio.Command{Type: naio.TurnOffImageZlibCompression},
			&naio.Command{Type: naio.TurnOnRawStereoCamera},
		)
	} else {
		g.queue.Push(&naio.Command{Type: naio.TurnOffRawStereoCamera})
	}
	log.WithField("on", on).Info("video requested")
}

// Cycle computes the setpoint for one input cycle.
func (g *Governor) Cycle(hazards HazardFlags) MotorSetpoint {
	g.inMu.Lock()
	held, pad := g.held, g.pad
	g.inMu.Unlock()

	cmd, manual := manualDrive(held, pad, g.seq.Enabled(), hazards)
	if !manual {
		if auto, active := g.seq.Step(g.distance.LeftDistance(), hazards); active {
			cmd = auto
		}
	}

	sp := scale(cmd)
	if hazards.Any() {
		sp = MotorSetpoint{}
	}
	g.spMu.Lock()
	g.setpoint = sp
	g.spMu.Unlock()
	return sp
}

// Current is the setpoint to send now. Any raised hazard forces a full stop.
func (g *Governor) Current() MotorSetpoint {
	g.spMu.Lock()
	sp := g.setpoint
	g.spMu.Unlock()
	if g.hazards.Flags().Any() {
		return MotorSetpoint{}
	}
	return sp
}

// Moving reports forward drive on either wheel, which gates odometry.
func (g *Governor) Moving() bool {
	sp := g.Current()
	return sp.Left > 0 || sp.Right > 0
}

// manualDrive maps held inputs to a drive command. manual is true whenever an
// input is held, even if the hazards blocked it.
func manualDrive(held Direction, pad PadButton, autonomous bool, hz HazardFlags) (cmd Drive, manual bool) {
	gate := func(blocked bool, d Drive) (Drive, bool) {
		if blocked {
			return Drive{}, true
		}
		return d, true
	}

	switch {
	case held.has(DirForward | DirLeft):
		return gate(hz.Left || hz.Center, Drive{32, 63})
	case held.has(DirForward | DirRight):
		return gate(hz.Right || hz.Center, Drive{63, 32})
	case held.has(DirBackward | DirLeft):
		return gate(hz.Left, Drive{-32, -63})
	case held.has(DirBackward | DirRight):
		return gate(hz.Right, Drive{-63, -32})
	case held.has(DirForward):
		return gate(hz.Center, Drive{63, 63})
	case held.has(DirBackward):
		return Drive{-63, -63}, true
	case held.has(DirLeft):
		return gate(hz.Left, Drive{-63, 63})
	case held.has(DirRight):
		return gate(hz.Right, Drive{63, -63})
	}

	if autonomous {
		return Drive{}, false
	}
	switch pad {
	case PadUp:
		return gate(hz.Center, Drive{10, 10})
	case PadLeft:
		return gate(hz.Left, Drive{10, 63})
	case PadRight:
		return gate(hz.Right, Drive{63, 10})
	case PadDown:
		return Drive{-63, -63}, true
	}
	return Drive{}, false
}
