package ren

import "time"

// Date is a calendar date value. The runtime keeps its own calendar
// representation; the binding exchanges instants as nanoseconds since
// the Unix epoch and renders them in UTC.
type Date struct{ Value }

// NewDate creates a date value bound to the engine resolved by the
// registered finder.
func NewDate(t time.Time) (Date, error) {
	e, err := CurrentEngine()
	if err != nil {
		return Date{}, err
	}
	return e.NewDate(t), nil
}

// NewDate creates a date value bound to e.
func (e *Engine) NewDate(t time.Time) Date {
	var v Value
	e.rt.SetDate(e.handle, &v.cell, t.UnixNano())
	v.finishInit(e)
	return Date{v}
}

// IsValid reports whether the value is a date.
func (d Date) IsValid() bool { return d.IsDate() }

// Time extracts the date as a time.Time in UTC. It panics if the value
// is not a date; callers are expected to have checked IsValid.
func (d Date) Time() time.Time {
	if !d.IsDate() {
		panic("ren: Time called on a value that is not a date")
	}
	return time.Unix(0, d.engine.rt.Date(d.engine.handle, &d.cell)).UTC()
}
