// Package notify implements the toast queue shown in the corner of the
// terminal UI. Timing is computed from timestamps rather than wall
// clocks so the UI layer can drive it from tick messages and tests can
// drive it from fixed times.
package notify

import "time"

// Level selects the toast accent.
type Level int

const (
	Info Level = iota
	Success
	Error
)

// Linger is how long a toast stays fully visible; Fade is the fade-out
// window appended after it.
const (
	Linger = 3 * time.Second
	Fade   = 400 * time.Millisecond
)

// Toast is one queued notification.
type Toast struct {
	ID      int
	Level   Level
	Message string
	At      time.Time
}

// Fading reports whether the toast is inside its fade-out window.
func (t Toast) Fading(now time.Time) bool {
	age := now.Sub(t.At)
	return age >= Linger && age < Linger+Fade
}

// expired reports whether the toast is fully gone.
func (t Toast) expired(now time.Time) bool {
	return now.Sub(t.At) >= Linger+Fade
}

// Queue holds active toasts, newest last.
type Queue struct {
	toasts []Toast
	nextID int
}

// Push enqueues a toast stamped at now.
func (q *Queue) Push(level Level, message string, now time.Time) Toast {
	q.nextID++
	t := Toast{ID: q.nextID, Level: level, Message: message, At: now}
	q.toasts = append(q.toasts, t)
	return t
}

// Active drops expired toasts and returns the rest, oldest first.
func (q *Queue) Active(now time.Time) []Toast {
	kept := q.toasts[:0]
	for _, t := range q.toasts {
		if !t.expired(now) {
			kept = append(kept, t)
		}
	}
	q.toasts = kept
	return q.toasts
}

// Dismiss removes a toast before its timer runs out.
func (q *Queue) Dismiss(id int) {
	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
			return
		}
	}
}

// NextExpiry returns the soonest time any active toast changes state
// (starts fading or disappears). The second return is false when the
// queue is empty and no timer is needed.
func (q *Queue) NextExpiry(now time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	for _, t := range q.toasts {
		if t.expired(now) {
			continue
		}
		edge := t.At.Add(Linger)
		if !now.Before(edge) {
			edge = t.At.Add(Linger + Fade)
		}
		if !found || edge.Before(next) {
			next = edge
			found = true
		}
	}
	return next, found
}
