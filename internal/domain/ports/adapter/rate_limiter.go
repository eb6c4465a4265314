package adapter

import "context"

// RateCheck is the limiter's answer to "may this worker start a job now".
type RateCheck struct {
	Allowed   bool
	Remaining int
	Limit     int
}

// RateLimiter caps job throughput against a quota shared by the whole
// fleet. CanProcess never mutates the counter; Consume records one started
// job. Implementations must degrade rather than fail: a broken backing
// store may cost global accuracy, never worker progress.
type RateLimiter interface {
	CanProcess(ctx context.Context) RateCheck
	Consume(ctx context.Context)
}
