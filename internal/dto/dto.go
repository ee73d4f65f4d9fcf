// Package dto holds the request and response shapes of the gateway's
// client-facing surface.
package dto

import (
	"github.com/bookrent/gateway/internal/domain"
	"github.com/bookrent/gateway/internal/saga"
	"github.com/google/uuid"
)

// TakeBookRequest is the body of POST /reservations.
type TakeBookRequest struct {
	BookUID    uuid.UUID   `json:"bookUid" binding:"required"`
	LibraryUID uuid.UUID   `json:"libraryUid" binding:"required"`
	TillDate   domain.Date `json:"tillDate" binding:"required"`
}

// Input converts the request into the saga's argument record.
func (r *TakeBookRequest) Input() domain.ReservationInput {
	return domain.ReservationInput{
		BookUID:    r.BookUID,
		LibraryUID: r.LibraryUID,
		TillDate:   r.TillDate,
	}
}

// ReturnBookRequest is the body of POST /reservations/{uid}/return.
type ReturnBookRequest struct {
	Condition domain.Condition `json:"condition" binding:"required"`
	Date      domain.Date      `json:"date" binding:"required"`
}

// Input converts the request into the saga's argument record.
func (r *ReturnBookRequest) Input() domain.ReturnInput {
	return domain.ReturnInput{Condition: r.Condition, Date: r.Date}
}

// ReservationResponse is a reservation enriched with its book and
// library. Book and library may be UID-only placeholders when the
// library system is unavailable.
type ReservationResponse struct {
	ReservationUID uuid.UUID                `json:"reservationUid"`
	Status         domain.ReservationStatus `json:"status"`
	StartDate      domain.Date              `json:"startDate"`
	TillDate       domain.Date              `json:"tillDate"`
	Book           domain.Book              `json:"book"`
	Library        domain.Library           `json:"library"`
}

// TakeBookResponse is the enriched payload of a successful reserve.
type TakeBookResponse struct {
	ReservationResponse
	Rating domain.Rating `json:"rating"`
}

// NewReservationResponse assembles the enriched reservation shape.
func NewReservationResponse(reservation domain.Reservation, book domain.Book, library domain.Library) ReservationResponse {
	return ReservationResponse{
		ReservationUID: reservation.ReservationUID,
		Status:         reservation.Status,
		StartDate:      reservation.StartDate,
		TillDate:       reservation.TillDate,
		Book:           book,
		Library:        library,
	}
}

// NewTakeBookResponse assembles the reserve saga result.
func NewTakeBookResponse(result *saga.ReserveResult) TakeBookResponse {
	return TakeBookResponse{
		ReservationResponse: NewReservationResponse(result.Reservation, result.Book, result.Library),
		Rating:              result.Rating,
	}
}

// TokenRequest is the OAuth2 password grant form.
type TokenRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// TokenResponse carries the issued bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ErrorResponse is the error payload of the gateway surface.
type ErrorResponse struct {
	Message string `json:"message"`
}
