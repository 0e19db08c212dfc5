// Package naio implements the NAIO01 framing used by the robot on both the
// telemetry and the image connections.
package naio

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	log "github.com/sirupsen/logrus"
)

const (
	headerSize = 6 + 1 + 4
	crcSize    = 4

	// MaxPayload bounds the declared size of a stereo image, the only kind
	// without a fixed or count-bounded payload.
	MaxPayload = 4000000
)

var magic = []byte("NAIO01")

// Codec accumulates bytes from a stream and splits them into packets. A Codec
// is owned by a single reader and is not safe for concurrent use.
type Codec struct {
	buf []byte
}

func NewCodec() *Codec {
	return &Codec{}
}

// Feed appends b to the internal buffer and returns every packet that is now
// complete. headerSeen reports whether a frame header was found in the
// buffered data, even if its frame is not complete yet.
func (c *Codec) Feed(b []byte) (packets []Packet, headerSeen bool) {
	c.buf = append(c.buf, b...)
	for {
		start := bytes.Index(c.buf, magic)
		if start < 0 {
			c.discardGarbage()
			return packets, headerSeen
		}
		headerSeen = true
		c.buf = c.buf[start:]
		if len(c.buf) < headerSize {
			return packets, headerSeen
		}

		id := c.buf[len(magic)]
		size := binary.BigEndian.Uint32(c.buf[len(magic)+1 : headerSize])
		if !validSize(id, size) {
			log.WithFields(log.Fields{"id": id, "size": size}).Debug("naio: implausible frame size, resyncing")
			c.buf = c.buf[1:]
			continue
		}
		frameSize := headerSize + int(size) + crcSize
		if len(c.buf) < frameSize {
			return packets, headerSeen
		}

		body := c.buf[:headerSize+int(size)]
		want := binary.BigEndian.Uint32(c.buf[headerSize+int(size) : frameSize])
		if crc32.ChecksumIEEE(body) != want {
			log.WithField("id", id).Debug("naio: bad checksum, resyncing")
			c.buf = c.buf[1:]
			continue
		}

		p, err := unmarshal(id, body[headerSize:])
		if err != nil {
			log.WithField("err", err).Debug("naio: undecodable frame, resyncing")
			c.buf = c.buf[1:]
			continue
		}
		packets = append(packets, p)
		c.buf = c.buf[frameSize:]
	}
}

// discardGarbage drops everything except a tail that could still be the
// beginning of a header.
func (c *Codec) discardGarbage() {
	keep := len(magic) - 1
	if len(c.buf) <= keep {
		return
	}
	tail := c.buf[len(c.buf)-keep:]
	c.buf = append(c.buf[:0], tail...)
}

// Buffered returns the number of bytes waiting for a complete frame.
func (c *Codec) Buffered() int {
	return len(c.buf)
}

// Encode serialises p into a complete frame.
func Encode(p Packet) []byte {
	payload := p.marshal()
	out := make([]byte, 0, headerSize+len(payload)+crcSize)
	out = append(out, magic...)
	out = append(out, p.packetID())
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out))
}
