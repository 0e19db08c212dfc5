package groundctl

import (
	"github.com/jd3nn1s/groundctl/naio"
	log "github.com/sirupsen/logrus"
)

// Store has one slot per telemetry kind. Decoded packets are never modified
// after they are stored, so sharing the pointer is a complete copy-out.
type Store struct {
	Lidar  Slot[*naio.Lidar]
	Gyro   Slot[*naio.Gyro]
	Accel  Slot[*naio.Accel]
	Odo    Slot[*naio.Odometry]
	GPS    Slot[*naio.GPS]
	Posts  Slot[*naio.Posts]
	Stereo Slot[*naio.StereoImage]
}

func NewStore() *Store {
	return &Store{}
}

// Dispatch stores p in the slot matching its kind. Outbound-only kinds are
// ignored.
func (s *Store) Dispatch(p naio.Packet) {
	switch v := p.(type) {
	case *naio.Lidar:
		s.Lidar.Set(v)
	case *naio.Gyro:
		s.Gyro.Set(v)
	case *naio.Accel:
		s.Accel.Set(v)
	case *naio.Odometry:
		s.Odo.Set(v)
	case *naio.GPS:
		s.GPS.Set(v)
	case *naio.Posts:
		s.Posts.Set(v)
	case *naio.StereoImage:
		s.Stereo.Set(v)
	case *naio.Motors, *naio.Command, *naio.Watchdog:
		log.WithField("packet", v).Debug("ignoring outbound packet kind from robot")
	}
}

// DispatchImage only accepts stereo images; the image link carries nothing
// else of interest.
func (s *Store) DispatchImage(p naio.Packet) {
	if img, ok := p.(*naio.StereoImage); ok {
		s.Stereo.Set(img)
	}
}

// Telemetry is a flat copy of the latest readings for display.
type Telemetry struct {
	GyroX, GyroY, GyroZ    int16
	AccelX, AccelY, AccelZ int16
	TicksFR, TicksRR       uint8
	TicksRL, TicksFL       uint8

	Latitude    float64
	Longitude   float64
	Altitude    float64
	Satellites  uint8
	FixQuality  uint8
	GroundSpeed float64

	RedPosts []naio.Post

	HasGyro, HasAccel, HasOdo, HasGPS, HasLidar bool
}

// Snapshot copies every slot out.
func (s *Store) Snapshot() Telemetry {
	t := Telemetry{}
	if g, ok := s.Gyro.Get(); ok {
		t.HasGyro = true
		t.GyroX, t.GyroY, t.GyroZ = g.X, g.Y, g.Z
	}
	if a, ok := s.Accel.Get(); ok {
		t.HasAccel = true
		t.AccelX, t.AccelY, t.AccelZ = a.X, a.Y, a.Z
	}
	if o, ok := s.Odo.Get(); ok {
		t.HasOdo = true
		t.TicksFR, t.TicksRR, t.TicksRL, t.TicksFL = o.FR, o.RR, o.RL, o.FL
	}
	if g, ok := s.GPS.Get(); ok {
		t.HasGPS = true
		t.Latitude = g.Lat
		t.Longitude = g.Lon
		t.Altitude = g.Alt
		t.Satellites = g.SatUsed
		t.FixQuality = g.Quality
		t.GroundSpeed = g.GroundSpeed
	}
	if p, ok := s.Posts.Get(); ok {
		for _, post := range p.List {
			if post.Type == naio.PostRed {
				t.RedPosts = append(t.RedPosts, post)
			}
		}
	}
	_, t.HasLidar = s.Lidar.Get()
	return t
}
