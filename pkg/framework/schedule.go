package framework

import "time"

// Schedule runs a Controller at most once per Interval, based on the
// time of loop iterations. Missed runs are not caught up.
type Schedule struct {
	Interval   time.Duration
	Controller Controller
	// Immediate runs the controller on the first iteration.
	Immediate bool

	next time.Time
}

// Every creates a Schedule.
func Every(interval time.Duration, ctl Controller) *Schedule {
	return &Schedule{Interval: interval, Controller: ctl}
}

// Now sets Immediate.
func (s *Schedule) Now() *Schedule {
	s.Immediate = true
	return s
}

// Control implements Controller.
func (s *Schedule) Control(cc ControlContext) error {
	now := cc.Time()
	if s.next.IsZero() && !s.Immediate {
		s.next = now.Add(s.Interval)
		return nil
	}
	if now.Before(s.next) {
		return nil
	}
	s.next = now.Add(s.Interval)
	return s.Controller.Control(cc)
}
