package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/consts"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/tools"
)

// Breaker caps how many tool calls one turn may spend. It is owned by the
// controller and only touched from the turn goroutine, so it needs no lock.
type Breaker struct {
	calls int
	limit int
}

func NewBreaker() *Breaker {
	return &Breaker{limit: consts.MaxCallsPerTurn}
}

// ResetTurn starts a fresh budget. Called once at the top of SendMessage,
// never inside the tool loop: re-entering the loop must not mint new budget.
func (b *Breaker) ResetTurn() {
	b.calls = 0
}

// Check reports whether another call is allowed.
func (b *Breaker) Check() (allowed bool, reason string) {
	if b.calls >= b.limit {
		return false, fmt.Sprintf("tool call limit reached (%d per message)", b.limit)
	}
	return true, ""
}

// Record charges the budget. Called immediately before dispatch, after
// validation: a tool that crashes still counts, a call that never dispatched
// does not.
func (b *Breaker) Record() {
	b.calls++
}

// Calls returns the number of calls charged this turn.
func (b *Breaker) Calls() int {
	return b.calls
}

// runWithTimeout races fn against d. On timeout the child context is
// cancelled and a cancellation result is returned; a late fn result is
// discarded. Downstream code cannot tell a fired timeout from a user abort,
// which is intentional.
func runWithTimeout(ctx context.Context, d time.Duration, fn func(context.Context) *tools.Result) *tools.Result {
	timeoutCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan *tools.Result, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case result := <-done:
		return result
	case <-timeoutCtx.Done():
		return tools.Aborted()
	}
}
