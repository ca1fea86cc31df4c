// Package stream pushes simulation frames and occupancy changes to
// presentation clients as Server-Sent Events.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/r3labs/sse/v2"

	"github.com/cxd309/tms-rail/internal/engine"
	"github.com/cxd309/tms-rail/internal/logging"
	"github.com/cxd309/tms-rail/internal/track"
)

// Stream names, selected by clients with ?stream=<name>.
const (
	StreamFrames    = "frames"
	StreamOccupancy = "occupancy"
)

// Server is an SSE endpoint carrying the frames and occupancy streams.
type Server struct {
	s   *sse.Server
	log logging.Logger
}

// NewServer creates both streams. Late subscribers only see events
// published after they connect.
func NewServer(log logging.Logger) *Server {
	s := sse.New()
	s.AutoReplay = false
	s.CreateStream(StreamFrames)
	s.CreateStream(StreamOccupancy)
	return &Server{s: s, log: logging.OrNoop(log).With(logging.String("component", "stream"))}
}

// OccupancyMessage is the payload of an occupancy event.
type OccupancyMessage struct {
	Segment  track.SegmentID `json:"segment"`
	Occupied bool            `json:"occupied"`
	Dwell    float64         `json:"dwell,omitempty"`
}

func encodeFrame(f engine.Frame) (*sse.Event, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return &sse.Event{
		ID:    []byte(strconv.Itoa(f.Tick)),
		Event: []byte("frame"),
		Data:  data,
	}, nil
}

func encodeOccupancy(e track.Event) (*sse.Event, bool, error) {
	if e.Kind != track.EventOccupancy {
		return nil, false, nil
	}
	data, err := json.Marshal(OccupancyMessage{Segment: e.Segment, Occupied: e.Occupied, Dwell: e.Dwell})
	if err != nil {
		return nil, false, err
	}
	return &sse.Event{Event: []byte(e.Kind), Data: data}, true, nil
}

// PublishFrame sends f to frame subscribers. It never blocks; a frame is
// dropped if the stream's buffer is full.
func (s *Server) PublishFrame(f engine.Frame) error {
	ev, err := encodeFrame(f)
	if err != nil {
		return err
	}
	if !s.s.TryPublish(StreamFrames, ev) {
		s.log.Debug(context.Background(), "frame dropped", logging.Int("tick", f.Tick))
	}
	return nil
}

// OccupancyListener returns a network listener that forwards occupancy
// changes to the occupancy stream.
func (s *Server) OccupancyListener() track.Listener {
	return func(e track.Event) {
		ev, ok, err := encodeOccupancy(e)
		if err != nil {
			s.log.Warn(context.Background(), "encoding occupancy event", logging.Err(err))
			return
		}
		if ok {
			s.s.TryPublish(StreamOccupancy, ev)
		}
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.s.ServeHTTP(w, r)
}

// Close disconnects every subscriber.
func (s *Server) Close() {
	s.s.Close()
}
