package governance

import "encoding/json"

// Schedule is a time value that is either already absolute or still
// relative to the moment it gets frozen. Mirrors the Schedule enum in
// original_source/rs/nx-gov-main/src/types.rs: `At(t)` / `In(delta)`.
//
// The zero value is `In(0)`: a relative Schedule with a zero delta.
type Schedule struct {
	absolute bool
	value    int64 // absolute: unix nanoseconds; relative: delta nanoseconds
}

// scheduleWire is Schedule's exported wire shape, used for both its JSON
// and gob encodings since the real fields are unexported (mirrors the
// Principal GobEncode/MarshalJSON split in principal.go).
type scheduleWire struct {
	Absolute bool  `json:"absolute"`
	Value    int64 `json:"value"`
}

// MarshalJSON renders the Schedule as its {absolute, value} wire shape.
func (s Schedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(scheduleWire{Absolute: s.absolute, Value: s.value})
}

// UnmarshalJSON parses the Schedule from its {absolute, value} wire shape.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var w scheduleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.absolute, s.value = w.Absolute, w.Value
	return nil
}

// GobEncode renders the Schedule for the schema-tight gob framing used by
// Proposal.
func (s Schedule) GobEncode() ([]byte, error) {
	return json.Marshal(scheduleWire{Absolute: s.absolute, Value: s.value})
}

// GobDecode parses the Schedule from its gob framing.
func (s *Schedule) GobDecode(data []byte) error {
	var w scheduleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.absolute, s.value = w.Absolute, w.Value
	return nil
}

// At constructs an already-absolute Schedule for the given unix-nanosecond
// timestamp.
func At(unixNano int64) Schedule {
	return Schedule{absolute: true, value: unixNano}
}

// In constructs a relative Schedule: deltaNanos after the time it is
// converted to absolute.
func In(deltaNanos int64) Schedule {
	return Schedule{absolute: false, value: deltaNanos}
}

// IsAbsolute reports whether the schedule already carries a fixed timestamp.
func (s Schedule) IsAbsolute() bool {
	return s.absolute
}

// IsInFuture reports whether the schedule represents a point still ahead of
// now. A relative Schedule is always considered future by construction: it
// has not yet been anchored to a clock reading.
func (s Schedule) IsInFuture(nowUnixNano int64) bool {
	if !s.absolute {
		return true
	}
	return s.value > nowUnixNano
}

// ConvertToAbsolute freezes a relative Schedule to `At(now + delta)`. It is
// idempotent on an already-absolute Schedule.
func (s Schedule) ConvertToAbsolute(nowUnixNano int64) Schedule {
	if s.absolute {
		return s
	}
	return At(nowUnixNano + s.value)
}

// ToTimestamp returns the absolute unix-nanosecond value and true, or
// (0, false) when the schedule is still relative.
func (s Schedule) ToTimestamp() (int64, bool) {
	if !s.absolute {
		return 0, false
	}
	return s.value, true
}
