package groundctl

import (
	"context"
	"net"

	"github.com/jd3nn1s/groundctl/naio"
)

type HazardSource interface {
	Flags() HazardFlags
}

type DistanceSource interface {
	LeftDistance() float64
}

// SetpointSource is read by the telemetry writer every send cycle.
type SetpointSource interface {
	Current() MotorSetpoint
}

// Forwarder mirrors the status somewhere else. Forward is called from the
// control loop and must not block.
type Forwarder interface {
	Forward(status *Status) error
}

// Dispatcher receives every packet a link decodes, in decode order.
type Dispatcher func(naio.Packet)

// to allow testing
var dial = func(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	return d.DialContext(ctx, "tcp", addr)
}
