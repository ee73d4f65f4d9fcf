package saga

import (
	"github.com/bookrent/gateway/internal/domain"
	"github.com/google/uuid"
)

// TaskKind tags a deferred saga invocation so the retry worker can
// dispatch it without holding a closure over handler state.
type TaskKind string

const (
	// TaskReserveBook replays a ReserveBook saga.
	TaskReserveBook TaskKind = "reserve-book"
	// TaskReturnBook replays a ReturnBook saga.
	TaskReturnBook TaskKind = "return-book"
)

// ReturnArgs are the arguments of a deferred ReturnBook saga.
type ReturnArgs struct {
	ReservationUID uuid.UUID          `json:"reservationUid"`
	Input          domain.ReturnInput `json:"input"`
}

// Task is one deferred saga invocation. The arguments are captured at
// enqueue time and stay stable across retries, so replaying the task
// converges to the same state as a single successful execution.
type Task struct {
	Kind     TaskKind                  `json:"kind"`
	Username string                    `json:"username"`
	Reserve  *domain.ReservationInput  `json:"reserve,omitempty"`
	Return   *ReturnArgs               `json:"return,omitempty"`
}

// NewReserveTask builds a deferred ReserveBook invocation.
func NewReserveTask(username string, input domain.ReservationInput) Task {
	return Task{Kind: TaskReserveBook, Username: username, Reserve: &input}
}

// NewReturnTask builds a deferred ReturnBook invocation.
func NewReturnTask(username string, reservationUID uuid.UUID, input domain.ReturnInput) Task {
	return Task{
		Kind:     TaskReturnBook,
		Username: username,
		Return:   &ReturnArgs{ReservationUID: reservationUID, Input: input},
	}
}
