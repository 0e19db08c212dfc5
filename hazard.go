package groundctl

import (
	"sync"

	"github.com/jd3nn1s/groundctl/naio"
)

const (
	// samples closer than this (cm) are treated as noise
	minValidRange = 3.0
	// distance (cm) substituted for missing or noisy samples
	noObstacle = 5000.0

	// detection threshold (cm) on a zone step average
	detectionRange = 50.0
	// samples averaged per comparison
	zoneStep = 10

	leftZoneStart   = 80
	centerZoneStart = 120
	rightZoneStart  = 160
	rightZoneEnd    = 200
)

// HazardFlags marks the scan zones that report an obstacle.
type HazardFlags struct {
	Left   bool
	Center bool
	Right  bool
}

func (h HazardFlags) Any() bool {
	return h.Left || h.Center || h.Right
}

// ComputeHazards evaluates the navigation window of a scan. A nil scan is
// treated as clear.
func ComputeHazards(scan *naio.Lidar) HazardFlags {
	var flags HazardFlags
	if scan == nil {
		return flags
	}

	var left, center, right float64
	for i := leftZoneStart + 1; i <= rightZoneEnd; i++ {
		dist := float64(scan.Distance[i]) / 10.0
		if dist < minValidRange {
			dist = noObstacle
		}

		switch {
		case i <= centerZoneStart:
			left = accumulate(left, dist, i, &flags.Left)
		case i <= rightZoneStart:
			center = accumulate(center, dist, i, &flags.Center)
		default:
			right = accumulate(right, dist, i, &flags.Right)
		}
	}
	return flags
}

func accumulate(sum, dist float64, i int, flag *bool) float64 {
	sum += dist
	if i%zoneStep != 0 {
		return sum
	}
	if sum/zoneStep < detectionRange {
		*flag = true
	}
	return 0
}

// Detector keeps the flags computed on the last tick for the other workers.
type Detector struct {
	mu    sync.Mutex
	flags HazardFlags
}

func NewDetector() *Detector {
	return &Detector{}
}

// Update recomputes the flags from scan and replaces the previous ones.
func (d *Detector) Update(scan *naio.Lidar) HazardFlags {
	flags := ComputeHazards(scan)
	d.mu.Lock()
	d.flags = flags
	d.mu.Unlock()
	return flags
}

func (d *Detector) Flags() HazardFlags {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags
}
