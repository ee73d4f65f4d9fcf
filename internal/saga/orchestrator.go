// Package saga implements the two multi-step transactions the gateway
// orchestrates across its downstreams, with compensation for the steps
// already committed when a later one fails.
//
// Failure classification: a step that fails before any mutation maps to
// domain.ErrUnavailable (the request fails outright); a mutation step
// that fails after compensation maps to domain.ErrRetryLater (the saga
// can be replayed with the same arguments). The business-rule rejection
// maps to domain.ErrQuotaExceeded and is never retried.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookrent/gateway/internal/domain"
	"github.com/bookrent/gateway/internal/logger"
	"github.com/bookrent/gateway/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// LibraryAPI is the slice of the library system the sagas need.
type LibraryAPI interface {
	GetBook(ctx context.Context, libraryUID, bookUID uuid.UUID) domain.Book
	GetLibrary(ctx context.Context, libraryUID uuid.UUID) domain.Library
	ReserveBook(ctx context.Context, libraryUID, bookUID uuid.UUID) error
	ReturnBook(ctx context.Context, libraryUID, bookUID uuid.UUID) error
}

// ReservationAPI is the slice of the reservation system the sagas need.
type ReservationAPI interface {
	GetReservation(ctx context.Context, username string, reservationUID uuid.UUID) (*domain.Reservation, error)
	GetRentedCount(ctx context.Context, username string) (*domain.RentedCount, error)
	CreateReservation(ctx context.Context, username string, input domain.ReservationInput) (*domain.Reservation, error)
	UpdateReservationStatus(ctx context.Context, username string, reservationUID uuid.UUID, status domain.ReservationStatus) error
	DeleteReservation(ctx context.Context, username string, reservationUID uuid.UUID) error
}

// RatingAPI is the slice of the rating system the sagas need.
type RatingAPI interface {
	GetRating(ctx context.Context, username string) (*domain.Rating, error)
	UpdateRating(ctx context.Context, username string, delta int) error
}

// ReserveResult is the enriched payload of a successful ReserveBook.
// Book and Library may be placeholders when the enrichment reads hit an
// unavailable backend; the reservation itself is already committed.
type ReserveResult struct {
	Reservation domain.Reservation
	Book        domain.Book
	Library     domain.Library
	Rating      domain.Rating
}

// Orchestrator runs the reserve and return sagas.
type Orchestrator struct {
	library     LibraryAPI
	reservation ReservationAPI
	rating      RatingAPI
	log         *logger.Logger
}

// NewOrchestrator wires the orchestrator to its three downstreams.
func NewOrchestrator(library LibraryAPI, reservation ReservationAPI, rating RatingAPI, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		library:     library,
		reservation: reservation,
		rating:      rating,
		log:         log,
	}
}

// ReserveBook takes a book for the user:
//
//  1. read rented count and rating (no mutation; unavailability fails
//     outright),
//  2. enforce the quota rule (rented >= stars is a terminal rejection),
//  3. create the reservation,
//  4. decrement the book's available count, deleting the reservation
//     again if that fails,
//  5. enrich the response (reads only; degrade to placeholders).
func (o *Orchestrator) ReserveBook(ctx context.Context, username string, input domain.ReservationInput) (*ReserveResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "saga.reserve_book")
	defer span.End()
	span.SetAttributes(
		attribute.String("username", username),
		attribute.String("book_uid", input.BookUID.String()),
	)

	rented, err := o.reservation.GetRentedCount(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("rented count: %w", domain.ErrUnavailable)
	}
	rating, err := o.rating.GetRating(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("rating: %w", domain.ErrUnavailable)
	}

	if rented.Count >= rating.Stars {
		o.log.Info("reserve rejected by quota",
			zap.String("username", username),
			zap.Int("rented", rented.Count),
			zap.Int("stars", rating.Stars))
		return nil, domain.ErrQuotaExceeded
	}

	reservation, err := o.reservation.CreateReservation(ctx, username, input)
	if err != nil {
		// Nothing committed yet, safe to replay.
		return nil, fmt.Errorf("create reservation: %w", domain.ErrRetryLater)
	}

	if err := o.library.ReserveBook(ctx, reservation.LibraryUID, reservation.BookUID); err != nil {
		o.compensate(ctx, "delete reservation", func(ctx context.Context) error {
			return o.reservation.DeleteReservation(ctx, username, reservation.ReservationUID)
		})
		return nil, fmt.Errorf("decrement available count: %w", domain.ErrRetryLater)
	}

	return &ReserveResult{
		Reservation: *reservation,
		Book:        o.library.GetBook(ctx, reservation.LibraryUID, reservation.BookUID),
		Library:     o.library.GetLibrary(ctx, reservation.LibraryUID),
		Rating:      *rating,
	}, nil
}

// ReturnBook returns a book for the user:
//
//  1. read the reservation and the book (no mutation; unavailability
//     fails outright),
//  2. compute the stars delta and the closing status,
//  3. increment the book's available count,
//  4. close the reservation, re-decrementing the count if that fails,
//  5. apply the stars delta, rolling back both prior mutations if that
//     fails.
func (o *Orchestrator) ReturnBook(ctx context.Context, username string, reservationUID uuid.UUID, input domain.ReturnInput) error {
	ctx, span := telemetry.StartSpan(ctx, "saga.return_book")
	defer span.End()
	span.SetAttributes(
		attribute.String("username", username),
		attribute.String("reservation_uid", reservationUID.String()),
	)

	reservation, err := o.reservation.GetReservation(ctx, username, reservationUID)
	if err != nil {
		return fmt.Errorf("reservation: %w", domain.ErrUnavailable)
	}
	book := o.library.GetBook(ctx, reservation.LibraryUID, reservation.BookUID)
	if book.Condition == domain.ConditionUnknown {
		return fmt.Errorf("book: %w", domain.ErrUnavailable)
	}

	deltaStars := 0
	if book.Condition != input.Condition {
		deltaStars -= 10
	}
	status := domain.StatusReturned
	if input.Date.After(reservation.TillDate) {
		status = domain.StatusExpired
		deltaStars -= 10
	}
	if deltaStars == 0 {
		// Clean on-time return earns a star.
		deltaStars = 1
	}

	if err := o.library.ReturnBook(ctx, reservation.LibraryUID, reservation.BookUID); err != nil {
		return fmt.Errorf("increment available count: %w", domain.ErrRetryLater)
	}

	if err := o.reservation.UpdateReservationStatus(ctx, username, reservationUID, status); err != nil {
		o.compensate(ctx, "re-reserve book", func(ctx context.Context) error {
			return o.library.ReserveBook(ctx, reservation.LibraryUID, reservation.BookUID)
		})
		return fmt.Errorf("close reservation: %w", domain.ErrRetryLater)
	}

	if err := o.rating.UpdateRating(ctx, username, deltaStars); err != nil {
		o.compensate(ctx, "reopen reservation", func(ctx context.Context) error {
			return o.reservation.UpdateReservationStatus(ctx, username, reservationUID, domain.StatusRented)
		})
		o.compensate(ctx, "re-reserve book", func(ctx context.Context) error {
			return o.library.ReserveBook(ctx, reservation.LibraryUID, reservation.BookUID)
		})
		return fmt.Errorf("update rating: %w", domain.ErrRetryLater)
	}

	return nil
}

// ExecuteTask replays a deferred saga. Used by the retry queue worker.
func (o *Orchestrator) ExecuteTask(ctx context.Context, task Task) error {
	switch task.Kind {
	case TaskReserveBook:
		if task.Reserve == nil {
			return fmt.Errorf("reserve task without arguments")
		}
		_, err := o.ReserveBook(ctx, task.Username, *task.Reserve)
		return err
	case TaskReturnBook:
		if task.Return == nil {
			return fmt.Errorf("return task without arguments")
		}
		return o.ReturnBook(ctx, task.Username, task.Return.ReservationUID, task.Return.Input)
	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// compensate runs an undo action that must complete even if the client
// has disconnected. Its failure is logged, never propagated: the
// originating failure is already being reported.
func (o *Orchestrator) compensate(ctx context.Context, name string, undo func(context.Context) error) {
	if err := undo(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		o.log.Error("compensation failed", zap.String("action", name), zap.Error(err))
	}
}
