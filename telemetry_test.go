package groundctl

import (
	"sync"
	"testing"

	"github.com/jd3nn1s/groundctl/naio"
	"github.com/stretchr/testify/assert"
)

func TestSlot(t *testing.T) {
	s := Slot[int]{}
	_, ok := s.Get()
	assert.False(t, ok)
	assert.True(t, s.Updated().IsZero())

	s.Set(1)
	s.Set(2)
	v, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.False(t, s.Updated().IsZero())

	// get leaves the value, take clears it
	v, ok = s.Take()
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = s.Take()
	assert.False(t, ok)
}

func TestSlotConcurrent(t *testing.T) {
	s := Slot[*naio.Gyro]{}
	wg := sync.WaitGroup{}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set(&naio.Gyro{X: int16(i)})
				_, _ = s.Get()
			}
		}(i)
	}
	wg.Wait()
	_, ok := s.Get()
	assert.True(t, ok)
}

func TestDispatchLastWriteWins(t *testing.T) {
	store := NewStore()
	store.Dispatch(&naio.Gyro{X: 1})
	store.Dispatch(&naio.Accel{Z: 5})
	store.Dispatch(&naio.Gyro{X: 2})

	g, ok := store.Gyro.Get()
	assert.True(t, ok)
	assert.Equal(t, int16(2), g.X)
	a, _ := store.Accel.Get()
	assert.Equal(t, int16(5), a.Z)

	_, ok = store.GPS.Get()
	assert.False(t, ok)
}

func TestDispatchIgnoresOutbound(t *testing.T) {
	store := NewStore()
	store.Dispatch(&naio.Motors{Left: 1})
	store.Dispatch(&naio.Watchdog{ID: 42})
	assert.Equal(t, Telemetry{}, store.Snapshot())
}

func TestDispatchImage(t *testing.T) {
	store := NewStore()
	store.DispatchImage(&naio.Gyro{X: 1})
	_, ok := store.Gyro.Get()
	assert.False(t, ok)

	img := &naio.StereoImage{Type: naio.RawImages, Data: []byte{1}}
	store.DispatchImage(img)
	got, ok := store.Stereo.Get()
	assert.True(t, ok)
	assert.Equal(t, img, got)
}

func TestSnapshot(t *testing.T) {
	store := NewStore()
	store.Dispatch(&naio.Gyro{X: 1, Y: 2, Z: 3})
	store.Dispatch(&naio.Odometry{FR: 1, RR: 2, RL: 3, FL: 4})
	store.Dispatch(&naio.GPS{Lat: 45, Lon: 1, Alt: 10, SatUsed: 7, Quality: 2, GroundSpeed: 1.5})
	store.Dispatch(&naio.Posts{List: []naio.Post{
		{Type: naio.PostRed, X: 1, Y: 2},
		{Type: naio.PostGreen, X: 3, Y: 4},
		{Type: naio.PostRed, X: 5, Y: 6},
	}})
	store.Dispatch(&naio.Lidar{})

	assert.Equal(t, Telemetry{
		GyroX: 1, GyroY: 2, GyroZ: 3,
		TicksFR: 1, TicksRR: 2, TicksRL: 3, TicksFL: 4,
		Latitude:    45,
		Longitude:   1,
		Altitude:    10,
		Satellites:  7,
		FixQuality:  2,
		GroundSpeed: 1.5,
		RedPosts: []naio.Post{
			{Type: naio.PostRed, X: 1, Y: 2},
			{Type: naio.PostRed, X: 5, Y: 6},
		},
		HasGyro:  true,
		HasOdo:   true,
		HasGPS:   true,
		HasLidar: true,
	}, store.Snapshot())
}

func TestOutboundQueue(t *testing.T) {
	q := &OutboundQueue{}
	assert.Empty(t, q.Drain())
	q.Push(&naio.Command{Type: naio.TurnOnRawStereoCamera})
	q.Push(&naio.Command{Type: naio.TurnOffRawStereoCamera})
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []naio.Packet{
		&naio.Command{Type: naio.TurnOnRawStereoCamera},
		&naio.Command{Type: naio.TurnOffRawStereoCamera},
	}, q.Drain())
	assert.Equal(t, 0, q.Len())
}
