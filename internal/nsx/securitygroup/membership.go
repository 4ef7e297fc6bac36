package securitygroup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/zinrai/l2network-mvp-go/internal/logger"
)

const (
	DefaultRetryInterval = 2 * time.Second
	DefaultMaxAttempts   = 5
)

// MemberAdder is the control plane call retried by the scheduler.
type MemberAdder interface {
	AddMemberToSecurityGroup(ctx context.Context, securityGroupID, memberID string) error
}

type State int

const (
	StatePending State = iota
	StateRetrying
	StateSucceeded
	StateGaveUp
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateGaveUp:
		return "gave_up"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateGaveUp || s == StateCancelled
}

type Result struct {
	State    State
	Attempts int
	// Err aggregates the error of every failed attempt.
	Err error
}

type SchedulerOption func(*Scheduler)

func WithClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

func WithRetryInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = d }
}

func WithMaxAttempts(n int) SchedulerOption {
	return func(s *Scheduler) { s.maxAttempts = n }
}

// WithObserver registers a callback invoked once per task when it reaches a
// terminal state.
func WithObserver(f func(Result)) SchedulerOption {
	return func(s *Scheduler) { s.observer = f }
}

// Scheduler runs membership tasks in the background. Tasks stop when the
// context passed to NewScheduler is cancelled.
type Scheduler struct {
	ctx         context.Context
	adder       MemberAdder
	clock       clock.Clock
	interval    time.Duration
	maxAttempts int
	observer    func(Result)
	wg          sync.WaitGroup
}

func NewScheduler(ctx context.Context, adder MemberAdder, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		ctx:         ctx,
		adder:       adder,
		clock:       clock.NewClock(),
		interval:    DefaultRetryInterval,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until every task started by s has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

type Task struct {
	SecurityGroupID string
	MemberID        string

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	result Result
}

// AddPortToSecurityGroup calls the control plane right away and then once per
// retry interval until the call succeeds or the attempts are used up.
func (s *Scheduler) AddPortToSecurityGroup(securityGroupID, memberID string) *Task {
	ctx, cancel := context.WithCancel(s.ctx)
	ctx = logger.WithFields(ctx, map[string]interface{}{
		"securityGroup": securityGroupID,
		"member":        memberID,
	})
	t := &Task{
		SecurityGroupID: securityGroupID,
		MemberID:        memberID,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	logger.G(ctx).Info("Scheduling task to add member to security group")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, t)
	}()
	return t
}

func (s *Scheduler) run(ctx context.Context, t *Task) {
	var errs *multierror.Error
	defer func() {
		res := t.Result()
		if s.observer != nil {
			s.observer(res)
		}
		close(t.done)
	}()

	cancelled := func(attempts int) {
		logger.G(ctx).WithField("attempts", attempts).Info("Task to add member to security group cancelled")
		t.finish(StateCancelled, attempts, multierror.Append(errs, ctx.Err()).ErrorOrNil())
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			cancelled(attempt - 1)
			return
		}
		logger.G(ctx).WithField("attempt", attempt).Debug("Trying to add member to security group")
		err := s.adder.AddMemberToSecurityGroup(ctx, t.SecurityGroupID, t.MemberID)
		if err == nil {
			logger.G(ctx).WithField("attempt", attempt).Info("Added member to security group")
			t.finish(StateSucceeded, attempt, errs.ErrorOrNil())
			return
		}
		errs = multierror.Append(errs, errors.Wrapf(err, "attempt %d", attempt))
		logger.G(ctx).WithError(err).WithField("attempt", attempt).Debug("Failed to add member to security group")

		if ctx.Err() != nil {
			cancelled(attempt)
			return
		}
		if attempt >= s.maxAttempts {
			logger.G(ctx).WithError(err).WithField("attempts", attempt).Error("Giving up adding member to security group")
			t.finish(StateGaveUp, attempt, errs.ErrorOrNil())
			return
		}
		t.setRetrying(attempt, errs.ErrorOrNil())

		timer := s.clock.NewTimer(s.interval)
		select {
		case <-timer.C():
		case <-ctx.Done():
			timer.Stop()
			cancelled(attempt)
			return
		}
	}
}

func (t *Task) setRetrying(attempts int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = Result{State: StateRetrying, Attempts: attempts, Err: err}
}

func (t *Task) finish(state State, attempts int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = Result{State: state, Attempts: attempts, Err: err}
}

// Result returns a snapshot of the task's progress.
func (t *Task) Result() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

func (t *Task) State() State {
	return t.Result().State
}

// Done is closed once the task is in a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel stops the task before its next attempt. An attempt already in flight
// sees its context cancelled.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.Result(), nil
	case <-ctx.Done():
		return t.Result(), ctx.Err()
	}
}
