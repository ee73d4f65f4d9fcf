package client

import (
	"context"
	"net/http"

	"github.com/bookrent/gateway/internal/domain"
	"github.com/google/uuid"
)

// ReservationClient talks to the reservation system. All operations are
// scoped to a username carried in the X-User-Name header.
type ReservationClient struct {
	base
}

// NewReservationClient creates a reservation system adapter.
func NewReservationClient(opts Options) *ReservationClient {
	return &ReservationClient{base: newBase(opts)}
}

// GetReservations lists all reservations of a user.
func (c *ReservationClient) GetReservations(ctx context.Context, username string) ([]domain.Reservation, error) {
	resp := c.do(ctx, http.MethodGet, "/reservations", nil, username, nil)
	if resp == nil {
		return nil, domain.ErrUnavailable
	}

	var reservations []domain.Reservation
	if err := decode(resp, &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

// GetReservation fetches one reservation of a user.
func (c *ReservationClient) GetReservation(ctx context.Context, username string, reservationUID uuid.UUID) (*domain.Reservation, error) {
	resp := c.do(ctx, http.MethodGet, "/reservations/"+reservationUID.String(), nil, username, nil)
	if resp == nil {
		return nil, domain.ErrUnavailable
	}

	var reservation domain.Reservation
	if err := decode(resp, &reservation); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetRentedCount returns how many books the user currently holds.
func (c *ReservationClient) GetRentedCount(ctx context.Context, username string) (*domain.RentedCount, error) {
	resp := c.do(ctx, http.MethodGet, "/rented", nil, username, nil)
	if resp == nil {
		return nil, domain.ErrUnavailable
	}

	var rented domain.RentedCount
	if err := decode(resp, &rented); err != nil {
		return nil, err
	}
	return &rented, nil
}

// CreateReservation creates a RENTED reservation and returns the record
// the backend minted for it.
func (c *ReservationClient) CreateReservation(ctx context.Context, username string, input domain.ReservationInput) (*domain.Reservation, error) {
	resp := c.do(ctx, http.MethodPost, "/reservations", nil, username, input)
	if resp == nil {
		return nil, domain.ErrUnavailable
	}
	if resp.StatusCode != http.StatusCreated {
		drain(resp)
		return nil, domain.ErrUnavailable
	}

	var reservation domain.Reservation
	if err := decode(resp, &reservation); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// UpdateReservationStatus closes (or re-opens, during compensation) a
// reservation with the given status.
func (c *ReservationClient) UpdateReservationStatus(ctx context.Context, username string, reservationUID uuid.UUID, status domain.ReservationStatus) error {
	body := map[string]domain.ReservationStatus{"status": status}
	resp := c.do(ctx, http.MethodPost, "/reservations/"+reservationUID.String()+"/return", nil, username, body)
	if resp == nil || resp.StatusCode != http.StatusNoContent {
		drain(resp)
		return domain.ErrUnavailable
	}
	drain(resp)
	return nil
}

// DeleteReservation removes a reservation. Used only to compensate a
// reserve saga whose library step failed.
func (c *ReservationClient) DeleteReservation(ctx context.Context, username string, reservationUID uuid.UUID) error {
	resp := c.do(ctx, http.MethodDelete, "/reservations/"+reservationUID.String(), nil, username, nil)
	if resp == nil {
		return domain.ErrUnavailable
	}
	drain(resp)
	return nil
}
