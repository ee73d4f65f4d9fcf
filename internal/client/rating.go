package client

import (
	"context"
	"net/http"

	"github.com/bookrent/gateway/internal/domain"
)

// RatingClient talks to the rating system.
type RatingClient struct {
	base
}

// NewRatingClient creates a rating system adapter.
func NewRatingClient(opts Options) *RatingClient {
	return &RatingClient{base: newBase(opts)}
}

// GetRating fetches the user's rating. The backend creates a one-star
// rating on first access, so a healthy backend always answers.
func (c *RatingClient) GetRating(ctx context.Context, username string) (*domain.Rating, error) {
	resp := c.do(ctx, http.MethodGet, "/rating", nil, username, nil)
	if resp == nil {
		return nil, domain.ErrUnavailable
	}

	var rating domain.Rating
	if err := decode(resp, &rating); err != nil {
		return nil, err
	}
	return &rating, nil
}

// UpdateRating applies a stars delta to the user's rating. The backend
// clamps the result to the 1..100 range.
func (c *RatingClient) UpdateRating(ctx context.Context, username string, delta int) error {
	body := domain.Rating{Stars: delta}
	resp := c.do(ctx, http.MethodPost, "/rating", nil, username, body)
	if resp == nil || resp.StatusCode != http.StatusCreated {
		drain(resp)
		return domain.ErrUnavailable
	}
	drain(resp)
	return nil
}
