package groundctl

import (
	"context"
	"time"

	"github.com/jd3nn1s/groundctl/naio"
	"golang.org/x/sync/errgroup"
)

const (
	// raw lidar units, ten per centimetre
	testClearRange    = 2000
	testObstacleRange = 300
	testObstacleWidth = 12
)

// runTestMode feeds generated packets into the store in place of the links.
func (c *Client) runTestMode(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		// an obstacle sweeping across the scan and back
		pos := 0
		down := false
		return every(ctx, 100*time.Millisecond, func() {
			c.Store.Dispatch(testLidarScan(pos))
			if down {
				pos -= 2
			} else {
				pos += 2
			}
			if pos >= naio.LidarSamples-testObstacleWidth {
				down = true
			} else if pos <= 0 {
				down = false
			}
		})
	})

	g.Go(func() error {
		odo := naio.Odometry{}
		return every(ctx, 250*time.Millisecond, func() {
			// ticks only turn while the wheels are told to
			if c.Governor.Moving() {
				odo.FR++
				odo.RR++
				odo.RL++
				odo.FL++
			}
			o := odo
			c.Store.Dispatch(&o)
		})
	})

	g.Go(func() error {
		gps := naio.GPS{Lat: 45.0, Lon: 1.0, Alt: 100, Unit: 1, SatUsed: 9, Quality: 1}
		var tick int16
		down := false
		return every(ctx, 20*time.Millisecond, func() {
			c.Store.Dispatch(&naio.Gyro{X: tick, Y: -tick, Z: tick / 2})
			c.Store.Dispatch(&naio.Accel{X: -tick, Y: tick, Z: 1000})
			sample := gps
			c.Store.Dispatch(&sample)

			if down {
				tick--
				gps.GroundSpeed -= 0.01
				gps.Lat -= 0.00001
				gps.Lon -= 0.00001
			} else {
				tick++
				gps.GroundSpeed += 0.01
				gps.Lat += 0.00001
				gps.Lon += 0.00001
			}
			if tick == 500 {
				down = true
			} else if tick == 0 {
				down = false
			}
		})
	})

	g.Go(func() error {
		var shift uint8
		return every(ctx, 250*time.Millisecond, func() {
			c.Store.Dispatch(testStereoImage(shift))
			shift += 8
		})
	})
}

func testLidarScan(obstacleAt int) *naio.Lidar {
	scan := &naio.Lidar{}
	for i := range scan.Distance {
		scan.Distance[i] = testClearRange
		if i >= obstacleAt && i < obstacleAt+testObstacleWidth {
			scan.Distance[i] = testObstacleRange
		}
		scan.Albedo[i] = uint8(i)
	}
	return scan
}

// testStereoImage is a raw grey pair with diagonal stripes.
func testStereoImage(shift uint8) *naio.StereoImage {
	data := make([]byte, rawSourceSize)
	for i := range data {
		x := i % rawWidth
		y := (i / rawWidth) % rawHeight
		data[i] = uint8(x+y) + shift
	}
	return &naio.StereoImage{Type: naio.RawImages, Data: data}
}
