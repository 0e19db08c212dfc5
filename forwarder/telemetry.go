package forwarder

import (
	"github.com/jd3nn1s/groundctl"
)

type Header struct {
	Type uint8
}

const TypeTelemetry = 1

const (
	HazardLeft = 1 << iota
	HazardCenter
	HazardRight
)

// Record is the fixed little-endian layout sent after the header.
type Record struct {
	X       float64
	Y       float64
	Heading float64

	LeftDistance  float64
	RightDistance float64

	SetpointLeft  int8
	SetpointRight int8
	Hazards       uint8

	Autonomous uint8
	Stage      uint8
	Returning  uint8
	RowLength  float32

	GyroZ     int16
	Latitude  float64
	Longitude float64

	FrameSeq uint32
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func NewRecord(s *groundctl.Status) Record {
	r := Record{
		X:             s.Odometry.Pose.X,
		Y:             s.Odometry.Pose.Y,
		Heading:       s.Odometry.Pose.Heading,
		LeftDistance:  s.Odometry.Distance[groundctl.RearLeft],
		RightDistance: s.Odometry.Distance[groundctl.RearRight],
		SetpointLeft:  s.Setpoint.Left,
		SetpointRight: s.Setpoint.Right,
		Autonomous:    boolByte(s.Maneuver.Enabled),
		Stage:         uint8(s.Maneuver.Stage),
		Returning:     boolByte(s.Maneuver.Returning),
		RowLength:     float32(s.Maneuver.RowLength),
		GyroZ:         s.Telemetry.GyroZ,
		Latitude:      s.Telemetry.Latitude,
		Longitude:     s.Telemetry.Longitude,
		FrameSeq:      uint32(s.Frame.Seq),
	}
	if s.Hazards.Left {
		r.Hazards |= HazardLeft
	}
	if s.Hazards.Center {
		r.Hazards |= HazardCenter
	}
	if s.Hazards.Right {
		r.Hazards |= HazardRight
	}
	return r
}
