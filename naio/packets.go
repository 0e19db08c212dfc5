package naio

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// packet ids on the wire
const (
	idMotors      uint8 = 0x01
	idLidar       uint8 = 0x07
	idGyro        uint8 = 0x0a
	idAccel       uint8 = 0x0b
	idOdometry    uint8 = 0x0c
	idGPS         uint8 = 0x0d
	idCommand     uint8 = 0x51
	idWatchdog    uint8 = 0x59
	idPosts       uint8 = 0x5a
	idStereoImage uint8 = 0x62
)

// LidarSamples is the number of one-degree samples in a ranging scan.
const LidarSamples = 271

// Packet is one decoded frame. The set of implementations is closed; switch on
// the concrete type to handle each kind.
type Packet interface {
	packetID() uint8
	marshal() []byte
}

// Motors carries a motor setpoint already scaled for the wire.
type Motors struct {
	Left  int8
	Right int8
}

type Lidar struct {
	Distance [LidarSamples]uint16
	Albedo   [LidarSamples]uint8
}

type Gyro struct {
	X, Y, Z int16
}

type Accel struct {
	X, Y, Z int16
}

// Odometry holds the per-wheel tick counters.
type Odometry struct {
	FR, RR, RL, FL uint8
}

type GPS struct {
	Time        float64
	Lat         float64
	Lon         float64
	Alt         float64
	Unit        uint8
	SatUsed     uint8
	Quality     uint8
	GroundSpeed float64
}

type PostType uint8

const (
	PostUnknown PostType = iota
	PostRed
	PostGreen
	PostBlue
)

type Post struct {
	Type PostType
	X, Y float64
}

type Posts struct {
	List []Post
}

type ImageType uint8

const (
	RawImages                    ImageType = 0x01
	RectifiedColorizedImages     ImageType = 0x02
	RawImagesZlib                ImageType = 0x03
	RectifiedColorizedImagesZlib ImageType = 0x04
)

// Compressed reports whether the image payload is zlib encoded.
func (t ImageType) Compressed() bool {
	return t == RawImagesZlib || t == RectifiedColorizedImagesZlib
}

// Raw reports whether the image is the full resolution single channel pair.
func (t ImageType) Raw() bool {
	return t == RawImages || t == RawImagesZlib
}

func (t ImageType) valid() bool {
	return t >= RawImages && t <= RectifiedColorizedImagesZlib
}

type StereoImage struct {
	Type ImageType
	Data []byte
}

type CommandType uint8

const (
	TurnOffImageZlibCompression CommandType = 0x01
	TurnOnImageZlibCompression  CommandType = 0x02
	TurnOnRawStereoCamera       CommandType = 0x03
	TurnOffRawStereoCamera      CommandType = 0x04
)

type Command struct {
	Type CommandType
}

type Watchdog struct {
	ID uint32
}

func (*Motors) packetID() uint8      { return idMotors }
func (*Lidar) packetID() uint8       { return idLidar }
func (*Gyro) packetID() uint8        { return idGyro }
func (*Accel) packetID() uint8       { return idAccel }
func (*Odometry) packetID() uint8    { return idOdometry }
func (*GPS) packetID() uint8         { return idGPS }
func (*Posts) packetID() uint8       { return idPosts }
func (*StereoImage) packetID() uint8 { return idStereoImage }
func (*Command) packetID() uint8     { return idCommand }
func (*Watchdog) packetID() uint8    { return idWatchdog }

func fixed(v interface{}) []byte {
	buf := bytes.NewBuffer(nil)
	// writes into a bytes.Buffer of fixed-size values cannot fail
	_ = binary.Write(buf, binary.BigEndian, v)
	return buf.Bytes()
}

func (p *Motors) marshal() []byte   { return fixed(p) }
func (p *Lidar) marshal() []byte    { return fixed(p) }
func (p *Gyro) marshal() []byte     { return fixed(p) }
func (p *Accel) marshal() []byte    { return fixed(p) }
func (p *Odometry) marshal() []byte { return fixed(p) }
func (p *GPS) marshal() []byte      { return fixed(p) }
func (p *Command) marshal() []byte  { return fixed(p) }
func (p *Watchdog) marshal() []byte { return fixed(p) }

func (p *Posts) marshal() []byte {
	buf := bytes.NewBuffer(nil)
	_ = binary.Write(buf, binary.BigEndian, uint16(len(p.List)))
	for _, post := range p.List {
		_ = binary.Write(buf, binary.BigEndian, &post)
	}
	return buf.Bytes()
}

func (p *StereoImage) marshal() []byte {
	out := make([]byte, 0, 1+len(p.Data))
	out = append(out, uint8(p.Type))
	return append(out, p.Data...)
}

// maxPosts is the most entries a u16 count can announce.
const maxPosts = 1<<16 - 1

var fixedSizes = map[uint8]int{
	idMotors:   binary.Size(Motors{}),
	idLidar:    binary.Size(Lidar{}),
	idGyro:     binary.Size(Gyro{}),
	idAccel:    binary.Size(Accel{}),
	idOdometry: binary.Size(Odometry{}),
	idGPS:      binary.Size(GPS{}),
	idCommand:  binary.Size(Command{}),
	idWatchdog: binary.Size(Watchdog{}),
}

// validSize reports whether a frame of kind id may declare size payload
// bytes. Unknown ids accept nothing.
func validSize(id uint8, size uint32) bool {
	if want, ok := fixedSizes[id]; ok {
		return int(size) == want
	}
	switch id {
	case idPosts:
		n := int(size) - 2
		return n >= 0 && n%binary.Size(Post{}) == 0 && n <= maxPosts*binary.Size(Post{})
	case idStereoImage:
		return size >= 1 && size <= MaxPayload
	}
	return false
}

func unmarshalFixed(payload []byte, v interface{}) error {
	if binary.Size(v) != len(payload) {
		return errors.Errorf("incorrect payload size %d for %T", len(payload), v)
	}
	return binary.Read(bytes.NewReader(payload), binary.BigEndian, v)
}

func unmarshal(id uint8, payload []byte) (Packet, error) {
	var p Packet
	switch id {
	case idMotors:
		p = &Motors{}
	case idLidar:
		p = &Lidar{}
	case idGyro:
		p = &Gyro{}
	case idAccel:
		p = &Accel{}
	case idOdometry:
		p = &Odometry{}
	case idGPS:
		p = &GPS{}
	case idCommand:
		p = &Command{}
	case idWatchdog:
		p = &Watchdog{}
	case idPosts:
		return unmarshalPosts(payload)
	case idStereoImage:
		return unmarshalStereoImage(payload)
	default:
		return nil, errors.Errorf("unknown packet id 0x%02x", id)
	}
	if err := unmarshalFixed(payload, p); err != nil {
		return nil, err
	}
	return p, nil
}

func unmarshalPosts(payload []byte) (Packet, error) {
	rdr := bytes.NewReader(payload)
	var count uint16
	if err := binary.Read(rdr, binary.BigEndian, &count); err != nil {
		return nil, errors.Wrap(err, "unable to read post count")
	}
	postSize := binary.Size(Post{})
	if rdr.Len() != int(count)*postSize {
		return nil, errors.Errorf("post list of %d entries has %d bytes", count, rdr.Len())
	}
	p := &Posts{List: make([]Post, count)}
	if err := binary.Read(rdr, binary.BigEndian, p.List); err != nil {
		return nil, errors.Wrap(err, "unable to read post list")
	}
	return p, nil
}

func unmarshalStereoImage(payload []byte) (Packet, error) {
	if len(payload) < 1 {
		return nil, errors.New("empty stereo image payload")
	}
	t := ImageType(payload[0])
	if !t.valid() {
		return nil, errors.Errorf("unknown image type 0x%02x", payload[0])
	}
	data := make([]byte, len(payload)-1)
	copy(data, payload[1:])
	return &StereoImage{Type: t, Data: data}, nil
}
