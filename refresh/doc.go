// Package refresh implements the single-flight credential refresh coordinator.
//
// # State machine
//
// A [Coordinator] is either idle or refreshing. The first caller to arrive while
// idle becomes the leader: it flips the state under the mutex and runs the
// refresh function exactly once. Callers arriving while a refresh is in flight
// are appended to a FIFO wait queue and block on their own outcome slot.
//
// When the refresh settles, the queue is detached and the state returns to idle
// inside one critical section. Only then are waiters released, in arrival
// order, each with the same [Outcome]: resumed on success, rejected with a
// [*FailedError] on failure.
//
// # Architecture boundaries
//
// This package owns the refreshing flag, the wait queue and the refresh
// deadline. It does NOT know how a refresh is performed (the [Func] is
// injected), how failures are classified, or how requests are replayed.
//
// # What this package must NOT do
//
//   - Start a second refresh while one is outstanding.
//   - Release a waiter before the state has returned to idle.
//   - Leave a waiter blocked after the refresh settles, including on panic or timeout.
//   - Import goAuthClient, transport, or classify.
package refresh
