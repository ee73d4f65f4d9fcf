// Package handler implements the gateway's client-facing HTTP surface:
// pass-through reads, the two orchestrated mutations with their
// 204-defer contract, health and token endpoints.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bookrent/gateway/internal/domain"
	"github.com/bookrent/gateway/internal/dto"
	"github.com/bookrent/gateway/internal/logger"
	"github.com/bookrent/gateway/internal/middleware"
	"github.com/bookrent/gateway/internal/saga"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// serviceUnavailableMessage is the payload clients have always received
// when a downstream is down.
const serviceUnavailableMessage = "Bonus Service unavailable"

// LibraryGateway is the slice of the library system the surface needs.
type LibraryGateway interface {
	GetLibraries(ctx context.Context, city string, page, size int) (*domain.LibrariesPage, error)
	GetBooks(ctx context.Context, libraryUID uuid.UUID, page, size int, showAll bool) (*domain.BooksPage, error)
	GetBook(ctx context.Context, libraryUID, bookUID uuid.UUID) domain.Book
	GetLibrary(ctx context.Context, libraryUID uuid.UUID) domain.Library
}

// ReservationGateway is the slice of the reservation system the surface
// needs for pass-through reads.
type ReservationGateway interface {
	GetReservations(ctx context.Context, username string) ([]domain.Reservation, error)
}

// RatingGateway is the slice of the rating system the surface needs.
type RatingGateway interface {
	GetRating(ctx context.Context, username string) (*domain.Rating, error)
}

// Orchestrator runs the two sagas behind the mutation endpoints.
type Orchestrator interface {
	ReserveBook(ctx context.Context, username string, input domain.ReservationInput) (*saga.ReserveResult, error)
	ReturnBook(ctx context.Context, username string, reservationUID uuid.UUID, input domain.ReturnInput) error
}

// RetryQueue accepts deferred sagas for background replay.
type RetryQueue interface {
	Enqueue(task saga.Task)
}

// GatewayHandler dispatches the /api/v1 surface.
type GatewayHandler struct {
	library     LibraryGateway
	reservation ReservationGateway
	rating      RatingGateway
	sagas       Orchestrator
	retryQueue  RetryQueue
	log         *logger.Logger
}

// NewGatewayHandler wires the handler to its collaborators.
func NewGatewayHandler(
	library LibraryGateway,
	reservation ReservationGateway,
	rating RatingGateway,
	sagas Orchestrator,
	retryQueue RetryQueue,
	log *logger.Logger,
) *GatewayHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &GatewayHandler{
		library:     library,
		reservation: reservation,
		rating:      rating,
		sagas:       sagas,
		retryQueue:  retryQueue,
		log:         log,
	}
}

// Register mounts the authenticated surface on the given router group.
func (h *GatewayHandler) Register(api *gin.RouterGroup) {
	api.GET("/libraries", h.GetLibraries)
	api.GET("/libraries/:libraryUid/books", h.GetBooks)
	api.GET("/reservations", h.GetReservations)
	api.POST("/reservations", h.ReserveBook)
	api.POST("/reservations/:reservationUid/return", h.ReturnBook)
	api.GET("/rating", h.GetRating)
}

// GetLibraries handles GET /libraries?city&page&size.
func (h *GatewayHandler) GetLibraries(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "City is required"})
		return
	}
	page, size, ok := pageSizeParams(c)
	if !ok {
		return
	}

	libraries, err := h.library.GetLibraries(c.Request.Context(), city, page, size)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, libraries)
}

// GetBooks handles GET /libraries/{libraryUid}/books?page&size&show_all.
func (h *GatewayHandler) GetBooks(c *gin.Context) {
	libraryUID, ok := uuidParam(c, "libraryUid")
	if !ok {
		return
	}
	page, size, ok := pageSizeParams(c)
	if !ok {
		return
	}
	showAll, err := strconv.ParseBool(c.DefaultQuery("show_all", "false"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "show_all should be a boolean"})
		return
	}

	books, err := h.library.GetBooks(c.Request.Context(), libraryUID, page, size, showAll)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// GetReservations handles GET /reservations. Each reservation is
// enriched with its book and library; enrichment degrades to UID-only
// placeholders when the library system is down.
func (h *GatewayHandler) GetReservations(c *gin.Context) {
	ctx := c.Request.Context()
	username := middleware.Username(c)

	reservations, err := h.reservation.GetReservations(ctx, username)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response := make([]dto.ReservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		response = append(response, dto.NewReservationResponse(
			reservation,
			h.library.GetBook(ctx, reservation.LibraryUID, reservation.BookUID),
			h.library.GetLibrary(ctx, reservation.LibraryUID),
		))
	}
	c.JSON(http.StatusOK, response)
}

// ReserveBook handles POST /reservations. A retryable saga failure is
// deferred to the retry queue and answered with 204: the request is
// accepted and will be replayed in the background.
func (h *GatewayHandler) ReserveBook(c *gin.Context) {
	username := middleware.Username(c)

	var req dto.TakeBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	result, err := h.sagas.ReserveBook(c.Request.Context(), username, req.Input())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.NewTakeBookResponse(result))

	case errors.Is(err, domain.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "book quota exhausted"})

	case errors.Is(err, domain.ErrRetryLater):
		h.deferToQueue(c, saga.NewReserveTask(username, req.Input()), err)

	case errors.Is(err, domain.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Message: serviceUnavailableMessage})

	default:
		h.internalError(c, err)
	}
}

// ReturnBook handles POST /reservations/{reservationUid}/return. Both a
// synchronous success and a deferred retry answer 204.
func (h *GatewayHandler) ReturnBook(c *gin.Context) {
	username := middleware.Username(c)

	reservationUID, ok := uuidParam(c, "reservationUid")
	if !ok {
		return
	}

	var req dto.ReturnBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if !req.Condition.Valid() {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: fmt.Sprintf("invalid condition %q", req.Condition)})
		return
	}

	err := h.sagas.ReturnBook(c.Request.Context(), username, reservationUID, req.Input())
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)

	case errors.Is(err, domain.ErrRetryLater):
		h.deferToQueue(c, saga.NewReturnTask(username, reservationUID, req.Input()), err)

	case errors.Is(err, domain.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Message: serviceUnavailableMessage})

	default:
		h.internalError(c, err)
	}
}

// GetRating handles GET /rating.
func (h *GatewayHandler) GetRating(c *gin.Context) {
	rating, err := h.rating.GetRating(c.Request.Context(), middleware.Username(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rating)
}

// Health handles GET /manage/health.
func (h *GatewayHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// deferToQueue enqueues a deferred saga and answers the 204 contract.
func (h *GatewayHandler) deferToQueue(c *gin.Context, task saga.Task, cause error) {
	h.log.Info("saga deferred to retry queue",
		zap.String("kind", string(task.Kind)),
		zap.String("username", task.Username),
		zap.Error(cause))
	h.retryQueue.Enqueue(task)
	c.Status(http.StatusNoContent)
}

// handleError maps pass-through failures to response codes.
func (h *GatewayHandler) handleError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrUnavailable) || errors.Is(err, domain.ErrRetryLater) {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Message: serviceUnavailableMessage})
		return
	}
	h.internalError(c, err)
}

func (h *GatewayHandler) internalError(c *gin.Context, err error) {
	h.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
}

// pageSizeParams validates the paging contract: page >= 0 and
// 1 <= size <= 100.
func pageSizeParams(c *gin.Context) (page, size int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "Page should not be less than 0"})
		return 0, 0, false
	}
	size, err = strconv.Atoi(c.DefaultQuery("size", "100"))
	if err != nil || size < 1 || size > 100 {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "Size should be between 1 and 100"})
		return 0, 0, false
	}
	return page, size, true
}

// uuidParam parses a UUID path parameter, rejecting malformed values.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	value, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: fmt.Sprintf("%s should be a UUID", name)})
		return uuid.Nil, false
	}
	return value, true
}
