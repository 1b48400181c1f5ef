package store

import "tickstream/internal/model"

// ring is a fixed-capacity append-then-overwrite buffer of ticks.
//
// While count < len(buf) new ticks are appended at index count. Once full,
// cursor marks the oldest surviving tick: it is overwritten by the next push
// and then advanced modulo capacity.
type ring struct {
	buf    []model.Tick
	count  int
	cursor int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]model.Tick, capacity)}
}

func (r *ring) push(t model.Tick) {
	if r.count < len(r.buf) {
		r.buf[r.count] = t
		r.count++
		return
	}
	r.buf[r.cursor] = t
	r.cursor = (r.cursor + 1) % len(r.buf)
}

func (r *ring) len() int {
	return r.count
}

// snapshot copies the live ticks in arrival order.
func (r *ring) snapshot() []model.Tick {
	out := make([]model.Tick, r.count)
	if r.count < len(r.buf) {
		copy(out, r.buf[:r.count])
		return out
	}
	n := copy(out, r.buf[r.cursor:])
	copy(out[n:], r.buf[:r.cursor])
	return out
}
