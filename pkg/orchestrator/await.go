// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"ezua-toolkit/pkg/logging"
)

// AwaitOptions bounds a polling loop.
type AwaitOptions struct {
	// Timeout after which AwaitTerminal gives up; zero means no deadline
	// beyond the caller's context.
	Timeout time.Duration

	// Interval between polls.
	Interval time.Duration

	// MaxPollRetries is the number of consecutive transient poll
	// failures tolerated before a *PollError surfaces.
	MaxPollRetries int
}

func (o AwaitOptions) withDefaults() AwaitOptions {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.MaxPollRetries <= 0 {
		o.MaxPollRetries = 3
	}
	return o
}

// AwaitTerminal polls the workload at a bounded interval until it reaches a
// terminal phase, the timeout elapses (*TimeoutError, record left at its
// last observed phase), or the context is cancelled. Transient poll
// failures are retried up to MaxPollRetries consecutive times, the interval
// doubling as backoff, before surfacing as *PollError.
func AwaitTerminal(ctx context.Context, o Orchestrator, rec Record, opts AwaitOptions) (Record, error) {
	opts = opts.withDefaults()

	if rec.Phase.Terminal() {
		return rec, nil
	}

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	failures := 0
	interval := opts.Interval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-deadline:
			return rec, &TimeoutError{After: opts.Timeout}
		case <-timer.C:
		}

		next, err := o.Status(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return rec, ctx.Err()
			}
			failures++
			logging.Debug("Status poll for %s failed (%d/%d): %v", rec.ID(), failures, opts.MaxPollRetries, err)
			if failures >= opts.MaxPollRetries {
				return rec, &PollError{Attempts: failures, Last: err}
			}
			interval *= 2
			timer.Reset(interval)
			continue
		}
		failures = 0
		interval = opts.Interval

		rec, err = rec.Observe(next.Phase, next.Message)
		if err != nil {
			return rec, err
		}
		if rec.Phase.Terminal() {
			return rec, nil
		}
		timer.Reset(interval)
	}
}

// AwaitAll polls several records concurrently, one goroutine per record
// over the shared client. Results are returned in input order; the error
// aggregates every per-record failure.
func AwaitAll(ctx context.Context, o Orchestrator, recs []Record, opts AwaitOptions) ([]Record, error) {
	results := make([]Record, len(recs))
	errs := make([]error, len(recs))

	var wg sync.WaitGroup
	for i, rec := range recs {
		wg.Add(1)
		go func(i int, rec Record) {
			defer wg.Done()
			results[i], errs[i] = AwaitTerminal(ctx, o, rec, opts)
		}(i, rec)
	}
	wg.Wait()

	return results, errors.Join(errs...)
}
