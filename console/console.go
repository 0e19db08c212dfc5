// Package console serves the operator's browser: a JSON snapshot, a
// websocket for driving and the latest staged image.
package console

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jd3nn1s/groundctl"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	pushPeriod      = 100 * time.Millisecond
	writeTimeout    = time.Second
	shutdownTimeout = 2 * time.Second
)

// Robot is what the console reads from and steers.
type Robot interface {
	Status() groundctl.Status
	Frame() groundctl.Frame

	SetDirections(d groundctl.Direction)
	SetPad(p groundctl.PadButton)
	SetAutonomous(on bool)
	AdjustRowLength(steps int)
	AdjustCropWidth(steps int)
	RequestVideo(on bool)
}

// ControlMessage is one message from the controlling browser. Held keys and
// the pad replace the previous state; the other fields act once when set.
type ControlMessage struct {
	Forward  bool   `json:"forward"`
	Backward bool   `json:"backward"`
	Left     bool   `json:"left"`
	Right    bool   `json:"right"`
	Pad      string `json:"pad"`

	Autonomous *bool `json:"autonomous,omitempty"`
	RowLength  int   `json:"row_length,omitempty"`
	CropWidth  int   `json:"crop_width,omitempty"`
	Video      *bool `json:"video,omitempty"`
}

func (m *ControlMessage) directions() groundctl.Direction {
	var d groundctl.Direction
	if m.Forward {
		d |= groundctl.DirForward
	}
	if m.Backward {
		d |= groundctl.DirBackward
	}
	if m.Left {
		d |= groundctl.DirLeft
	}
	if m.Right {
		d |= groundctl.DirRight
	}
	return d
}

func parsePad(s string) (groundctl.PadButton, error) {
	switch s {
	case "":
		return groundctl.PadNone, nil
	case "up":
		return groundctl.PadUp, nil
	case "left":
		return groundctl.PadLeft, nil
	case "right":
		return groundctl.PadRight, nil
	case "down":
		return groundctl.PadDown, nil
	}
	return groundctl.PadNone, errors.Errorf("unknown pad button %q", s)
}

type Server struct {
	robot    Robot
	slot     controlSlot
	upgrader websocket.Upgrader
}

func NewServer(robot Robot) *Server {
	return &Server{
		robot: robot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/state.json", s.handleState)
	mux.HandleFunc("/control", s.handleControl)
	mux.HandleFunc("/frame", s.handleFrame)
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "console on %s", addr)
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done, then drops the active controller.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler: s.Handler(),
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(l)
	}()
	log.WithField("addr", l.Addr().String()).Info("console listening")

	select {
	case err := <-errChan:
		return errors.Wrapf(err, "console on %s", l.Addr())
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithField("err", err).Warn("unable to shut down console cleanly")
	}
	s.slot.close()
	return ctx.Err()
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(s.robot.Status()); err != nil {
		log.WithField("err", err).Debug("unable to write state")
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	f := s.robot.Frame()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Frame-Width", strconv.Itoa(f.Width))
	w.Header().Set("X-Frame-Height", strconv.Itoa(f.Height))
	w.Header().Set("X-Frame-Channels", strconv.Itoa(f.Channels))
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	w.Header().Set("X-Frame-Fallback", strconv.FormatBool(f.Fallback))
	if _, err := w.Write(f.Data); err != nil {
		log.WithField("err", err).Debug("unable to write frame")
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache")
	if err := s.slot.acquire(); err != nil {
		status := http.StatusConflict
		if err == errConsoleClosed {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer s.slot.release()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("err", err).Warn("unable to upgrade control socket")
		return
	}
	defer ws.Close()
	if err := s.slot.attach(ws); err != nil {
		return
	}
	// a dropped controller must not leave a key held
	defer s.release()

	logger := log.WithField("remote", r.RemoteAddr)
	logger.Info("controller connected")

	done := make(chan struct{})
	defer close(done)
	go s.push(ws, done)

	for {
		var msg ControlMessage
		if err := ws.ReadJSON(&msg); err != nil {
			logger.WithField("err", err).Info("controller disconnected")
			return
		}
		if err := s.apply(&msg); err != nil {
			logger.WithField("err", err).Warn("ignoring control message")
		}
	}
}

func (s *Server) apply(msg *ControlMessage) error {
	pad, err := parsePad(msg.Pad)
	if err != nil {
		return err
	}
	if msg.Autonomous != nil {
		s.robot.SetAutonomous(*msg.Autonomous)
	}
	if msg.RowLength != 0 {
		s.robot.AdjustRowLength(msg.RowLength)
	}
	if msg.CropWidth != 0 {
		s.robot.AdjustCropWidth(msg.CropWidth)
	}
	if msg.Video != nil {
		s.robot.RequestVideo(*msg.Video)
	}
	s.robot.SetDirections(msg.directions())
	s.robot.SetPad(pad)
	return nil
}

func (s *Server) release() {
	s.robot.SetDirections(0)
	s.robot.SetPad(groundctl.PadNone)
}

// push sends the status to the controller until done is closed or a write
// fails.
func (s *Server) push(ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pushPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := ws.WriteJSON(s.robot.Status()); err != nil {
				log.WithField("err", err).Debug("unable to push status")
				return
			}
		}
	}
}
