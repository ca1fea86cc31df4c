package train

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/track"
)

// Transition reports a wheelset crossing from one segment to the next. To
// is track.NoSegment when the wheelset ran off the end of the network.
type Transition struct {
	From, To track.SegmentID
}

// WheelSet follows the network at a scalar distance along its current
// segment. Once it runs off a terminal segment it stays unbound.
type WheelSet struct {
	net *track.Network

	seg      track.SegmentID
	distance float64

	position    geometry.Vec3
	orientation geometry.Quat

	// OnTransition, when set, is called for every segment boundary crossed.
	OnTransition func(Transition)
}

// NewWheelSet returns an unbound wheelset on net.
func NewWheelSet(net *track.Network) *WheelSet {
	return &WheelSet{net: net, seg: track.NoSegment, orientation: mgl64.QuatIdent()}
}

// Bind places the wheelset offset units along seg. Offsets past the end of
// the segment carry over onto following segments; negative offsets walk
// back over previous ones. Where the network runs out the offset is clamped
// to the end reached.
func (w *WheelSet) Bind(seg track.SegmentID, offset float64) error {
	s := w.net.Segment(seg)
	if s == nil {
		return fmt.Errorf("bind to segment %d: %w", seg, ErrUnknownSegment)
	}
	limit := w.net.Len()
	for hops := 0; offset < 0 && hops <= limit; hops++ {
		prev, ok := s.Previous()
		if !ok {
			offset = 0
			break
		}
		s = w.net.Segment(prev)
		offset += s.Length()
	}
	for hops := 0; offset >= s.Length() && hops <= limit; hops++ {
		next, ok := s.Next()
		if !ok {
			offset = s.Length()
			break
		}
		offset -= s.Length()
		s = w.net.Segment(next)
	}
	w.seg = s.ID()
	w.distance = offset
	w.refresh()
	return nil
}

// Advance moves the wheelset delta units forward, crossing onto next
// segments as needed. Reaching a segment's end exactly moves onto the next
// segment with no residual; running past the end of a terminal segment
// unbinds the wheelset for good.
func (w *WheelSet) Advance(delta float64) {
	if w.seg == track.NoSegment {
		return
	}
	w.distance += delta
	limit := w.net.Len()
	for hops := 0; hops <= limit; hops++ {
		s := w.net.Segment(w.seg)
		length := s.Length()
		if w.distance < length {
			break
		}
		next, ok := s.Next()
		if !ok {
			if w.distance <= length {
				break
			}
			from := w.seg
			w.seg = track.NoSegment
			w.distance -= length
			w.notify(from, track.NoSegment)
			return
		}
		from := w.seg
		w.distance -= length
		w.seg = next
		w.notify(from, next)
	}
	w.refresh()
}

func (w *WheelSet) notify(from, to track.SegmentID) {
	if w.OnTransition != nil {
		w.OnTransition(Transition{From: from, To: to})
	}
}

func (w *WheelSet) refresh() {
	s := w.net.Segment(w.seg)
	w.position = s.PositionAt(w.distance)
	w.orientation = geometry.Orientation(s.TangentAt(w.distance))
}

// Bound reports whether the wheelset is still on the network.
func (w *WheelSet) Bound() bool { return w.seg != track.NoSegment }

// Segment is the current segment, or track.NoSegment once unbound.
func (w *WheelSet) Segment() track.SegmentID { return w.seg }

// Distance is the distance travelled along the current segment.
func (w *WheelSet) Distance() float64 { return w.distance }

// Length is the current segment's length, or zero when unbound.
func (w *WheelSet) Length() float64 {
	if s := w.net.Segment(w.seg); s != nil {
		return s.Length()
	}
	return 0
}

// Remaining is the distance left to the end of the current segment.
func (w *WheelSet) Remaining() float64 {
	if !w.Bound() {
		return 0
	}
	return w.Length() - w.distance
}

// Progress is the fraction of the current segment already covered.
func (w *WheelSet) Progress() float64 {
	l := w.Length()
	if l <= 0 {
		return 0
	}
	return w.distance / l
}

// RemainingFraction is 1 - Progress while bound, and zero otherwise.
func (w *WheelSet) RemainingFraction() float64 {
	if !w.Bound() {
		return 0
	}
	return 1 - w.Progress()
}

// Position is the last sampled world position. ok is false once unbound.
func (w *WheelSet) Position() (pos geometry.Vec3, ok bool) {
	if !w.Bound() {
		return geometry.Vec3{}, false
	}
	return w.position, true
}

// Orientation aligns geometry.Forward with the track tangent at the
// wheelset.
func (w *WheelSet) Orientation() geometry.Quat { return w.orientation }
