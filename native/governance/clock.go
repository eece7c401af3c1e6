package governance

import "time"

// defaultNowFn samples the wall clock, expressed in unix nanoseconds to
// match Schedule's and Proposal's time representation.
func defaultNowFn() int64 {
	return time.Now().UTC().UnixNano()
}
