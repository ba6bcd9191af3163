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

// Package orchestrator defines the submission client boundary: submitting a
// materialized descriptor to a cluster and tracking it to a terminal phase.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"ezua-toolkit/pkg/descriptor"
)

// Phase is a workload lifecycle state. The machine is
// Pending -> Running -> {Succeeded, Failed}; Pending may jump straight to a
// terminal phase (scheduler rejection, or a run too fast for one poll).
// Terminal phases are absorbing and no state is re-enterable.
type Phase string

const (
	PhasePending   Phase = "Pending"
	PhaseRunning   Phase = "Running"
	PhaseSucceeded Phase = "Succeeded"
	PhaseFailed    Phase = "Failed"
)

// Terminal reports whether no further transition can occur.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

func (p Phase) rank() int {
	switch p {
	case PhasePending:
		return 0
	case PhaseRunning:
		return 1
	case PhaseSucceeded, PhaseFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from p to next is legal.
func (p Phase) CanTransition(next Phase) bool {
	if p.Terminal() {
		return false
	}
	return next.rank() > p.rank()
}

// Record tracks one submitted workload for the duration of polling.
type Record struct {
	// Name, Namespace, Kind and APIVersion identify the workload object.
	Name       string
	Namespace  string
	Kind       string
	APIVersion string

	Phase       Phase
	SubmittedAt time.Time

	// Message is the last observed status detail (failure reason,
	// gathered events).
	Message string
}

// ID renders the record identifier for log output.
func (r Record) ID() string {
	return fmt.Sprintf("%s/%s/%s", r.Namespace, r.Kind, r.Name)
}

// Observe folds a newly observed phase into the record. Terminal records
// absorb every later observation unchanged; a backwards transition is a
// protocol violation and reported as an error.
func (r Record) Observe(phase Phase, message string) (Record, error) {
	if r.Phase.Terminal() || phase == r.Phase {
		if phase == r.Phase && message != "" {
			r.Message = message
		}
		return r, nil
	}
	if !r.Phase.CanTransition(phase) {
		return r, fmt.Errorf("illegal phase transition %s -> %s for %s", r.Phase, phase, r.ID())
	}
	r.Phase = phase
	if message != "" {
		r.Message = message
	}
	return r, nil
}

// SubmissionRejectedError reports a synchronous rejection by the cluster
// API (quota, admission policy, malformed spec, duplicate name).
type SubmissionRejectedError struct {
	Reason string
}

func (e *SubmissionRejectedError) Error() string {
	return "submission rejected: " + e.Reason
}

// PollError surfaces a status poll that kept failing beyond the bounded
// retry budget.
type PollError struct {
	Attempts int
	Last     error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("status poll failed %d times: %v", e.Attempts, e.Last)
}

func (e *PollError) Unwrap() error {
	return e.Last
}

// TimeoutError reports that no terminal phase was reached in time. The
// record stays at its last observed phase.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("workload did not reach a terminal phase within %s", e.After)
}

// Orchestrator is the capability boundary to the cluster orchestration API.
// Implementations share a read-only connection handle and are safe for
// concurrent use.
type Orchestrator interface {
	// Submit sends the descriptor to the cluster and returns a Pending
	// record, or *SubmissionRejectedError on synchronous rejection.
	Submit(ctx context.Context, d *descriptor.Descriptor) (Record, error)

	// Status fetches the current phase of a submitted workload.
	Status(ctx context.Context, r Record) (Record, error)

	// Logs streams the workload's main container log to w.
	Logs(ctx context.Context, r Record, w io.Writer) error

	// Delete removes the workload from the cluster.
	Delete(ctx context.Context, r Record) error
}
