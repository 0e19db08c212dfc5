package forwarder

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jd3nn1s/groundctl"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var maxRecordSize = binary.Size(Header{}) + binary.Size(Record{})

const sendLimit = 100 * time.Millisecond

type UDPConfig struct {
	Server string
	Port   int
}

// UDPForwarder mirrors the status to a UDP listener, at most once per
// sendLimit. A record arriving while one is pending replaces it.
type UDPForwarder struct {
	Config *UDPConfig

	conn    net.Conn
	fwdChan chan Record
}

// NewUDPForwarder loads fileName, relative to the binary unless absolute.
func NewUDPForwarder(fileName string) (*UDPForwarder, error) {
	if !filepath.IsAbs(fileName) {
		dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to determine binary location")
		}
		fileName = filepath.Join(dir, fileName)
	}
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return NewUDPForwarderFromReader(file)
}

func NewUDPForwarderFromReader(configReader io.Reader) (*UDPForwarder, error) {
	configData, err := io.ReadAll(configReader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config reader")
	}
	config := UDPConfig{}
	if _, err := toml.Decode(string(configData), &config); err != nil {
		return nil, errors.Wrapf(err, "unable to load udp forwarder configuration")
	}
	udp := &UDPForwarder{
		Config:  &config,
		fwdChan: make(chan Record, 1),
	}
	if err = udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

// Forward replaces any record still waiting for the limiter with the latest.
func (udp *UDPForwarder) Forward(status *groundctl.Status) error {
	r := NewRecord(status)
	for {
		select {
		case udp.fwdChan <- r:
			return nil
		default:
		}
		// full, drop the stale one and try again
		select {
		case <-udp.fwdChan:
		default:
		}
	}
}

func (udp *UDPForwarder) Start(ctx context.Context) error {
	limiter := time.NewTicker(sendLimit)
	defer limiter.Stop()
	for {
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case r := <-udp.fwdChan:
			if err := udp.forward(&r); err != nil {
				log.WithField("err", err).Error("unable to forward status to server")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (udp *UDPForwarder) forward(r *Record) error {
	buf := bytes.NewBuffer(make([]byte, 0, maxRecordSize))
	hdr := Header{
		Type: TypeTelemetry,
	}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "unable to write udp packet header")
	}
	if err := binary.Write(buf, binary.LittleEndian, r); err != nil {
		return errors.Wrap(err, "unable to write status udp packet")
	}
	_, err := udp.conn.Write(buf.Bytes())
	return err
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := maxRecordSize * 2

	conn, err := net.Dial("udp", net.JoinHostPort(udp.Config.Server, strconv.Itoa(udp.Config.Port)))
	if err != nil {
		return err
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}
