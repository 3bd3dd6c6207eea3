package rules

import (
	"fmt"
	"sync/atomic"
	"time"
)

// idCounter is the single process-wide atomic source of uniqueness for
// minted ids; combined with a timestamp it is collision-free without
// coordination across goroutines (spec §10 "the id counter is a single
// atomic integer").
var idCounter int64

// NewID mints an id of the form "<role>_<unixMillis>_<counter>", e.g.
// "fact_1732999999000_7" or "rule_1732999999001_8". role is typically one
// of "fact", "rule", "skc", "skf", or "note".
func NewID(role string) string {
	n := atomic.AddInt64(&idCounter, 1)
	return fmt.Sprintf("%s_%d_%d", role, time.Now().UnixMilli(), n)
}
