package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bookrent/gateway/internal/domain"
	"github.com/bookrent/gateway/internal/dto"
	"github.com/bookrent/gateway/internal/middleware"
	"github.com/bookrent/gateway/internal/saga"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testLibraryUID     = uuid.MustParse("83575e12-7ce0-48ee-9931-51919ff3c9ee")
	testBookUID        = uuid.MustParse("f7cdc58f-2caf-4b15-9727-f89dcc629b27")
	testReservationUID = uuid.MustParse("0f3f1cd4-1b11-4c34-9b3a-2f1c8a7b6d5e")
)

type mockLibraryGateway struct{ mock.Mock }

func (m *mockLibraryGateway) GetLibraries(ctx context.Context, city string, page, size int) (*domain.LibrariesPage, error) {
	args := m.Called(ctx, city, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LibrariesPage), args.Error(1)
}

func (m *mockLibraryGateway) GetBooks(ctx context.Context, libraryUID uuid.UUID, page, size int, showAll bool) (*domain.BooksPage, error) {
	args := m.Called(ctx, libraryUID, page, size, showAll)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BooksPage), args.Error(1)
}

func (m *mockLibraryGateway) GetBook(ctx context.Context, libraryUID, bookUID uuid.UUID) domain.Book {
	return m.Called(ctx, libraryUID, bookUID).Get(0).(domain.Book)
}

func (m *mockLibraryGateway) GetLibrary(ctx context.Context, libraryUID uuid.UUID) domain.Library {
	return m.Called(ctx, libraryUID).Get(0).(domain.Library)
}

type mockReservationGateway struct{ mock.Mock }

func (m *mockReservationGateway) GetReservations(ctx context.Context, username string) ([]domain.Reservation, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

type mockRatingGateway struct{ mock.Mock }

func (m *mockRatingGateway) GetRating(ctx context.Context, username string) (*domain.Rating, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rating), args.Error(1)
}

type mockOrchestrator struct{ mock.Mock }

func (m *mockOrchestrator) ReserveBook(ctx context.Context, username string, input domain.ReservationInput) (*saga.ReserveResult, error) {
	args := m.Called(ctx, username, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*saga.ReserveResult), args.Error(1)
}

func (m *mockOrchestrator) ReturnBook(ctx context.Context, username string, reservationUID uuid.UUID, input domain.ReturnInput) error {
	return m.Called(ctx, username, reservationUID, input).Error(0)
}

// fakeQueue records enqueued tasks.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []saga.Task
}

func (q *fakeQueue) Enqueue(task saga.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

func (q *fakeQueue) all() []saga.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]saga.Task(nil), q.tasks...)
}

type fixture struct {
	library     *mockLibraryGateway
	reservation *mockReservationGateway
	rating      *mockRatingGateway
	sagas       *mockOrchestrator
	queue       *fakeQueue
	router      *gin.Engine
}

func newTestRouter(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		library:     &mockLibraryGateway{},
		reservation: &mockReservationGateway{},
		rating:      &mockRatingGateway{},
		sagas:       &mockOrchestrator{},
		queue:       &fakeQueue{},
	}
	h := NewGatewayHandler(f.library, f.reservation, f.rating, f.sagas, f.queue, nil)

	f.router = gin.New()
	api := f.router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.UsernameKey, "alice")
	})
	h.Register(api)
	f.router.GET("/manage/health", h.Health)
	return f
}

func perform(router *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetLibrariesRequiresCity(t *testing.T) {
	f := newTestRouter(t)

	w := perform(f.router, http.MethodGet, "/api/v1/libraries", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "City is required")
}

func TestGetLibrariesValidatesPaging(t *testing.T) {
	f := newTestRouter(t)

	w := perform(f.router, http.MethodGet, "/api/v1/libraries?city=Moscow&page=-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = perform(f.router, http.MethodGet, "/api/v1/libraries?city=Moscow&size=0", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = perform(f.router, http.MethodGet, "/api/v1/libraries?city=Moscow&size=101", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetLibrariesPassesThrough(t *testing.T) {
	f := newTestRouter(t)
	f.library.On("GetLibraries", mock.Anything, "Moscow", 1, 10).Return(&domain.LibrariesPage{
		PageInfo: domain.PageInfo{Page: 1, PageSize: 10, TotalElements: 1},
		Items:    []domain.Library{{LibraryUID: testLibraryUID, Name: "Lenina 5", City: "Moscow"}},
	}, nil)

	w := perform(f.router, http.MethodGet, "/api/v1/libraries?city=Moscow&page=1&size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page domain.LibrariesPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Lenina 5", page.Items[0].Name)
}

func TestGetLibrariesUnavailable(t *testing.T) {
	f := newTestRouter(t)
	f.library.On("GetLibraries", mock.Anything, "Moscow", 0, 100).Return(nil, domain.ErrUnavailable)

	w := perform(f.router, http.MethodGet, "/api/v1/libraries?city=Moscow", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Bonus Service unavailable")
}

func TestGetBooksForwardsShowAll(t *testing.T) {
	f := newTestRouter(t)
	f.library.On("GetBooks", mock.Anything, testLibraryUID, 0, 100, true).Return(&domain.BooksPage{}, nil)

	w := perform(f.router, http.MethodGet, "/api/v1/libraries/"+testLibraryUID.String()+"/books?show_all=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	f.library.AssertExpectations(t)
}

func TestGetBooksRejectsBadUUID(t *testing.T) {
	f := newTestRouter(t)

	w := perform(f.router, http.MethodGet, "/api/v1/libraries/not-a-uuid/books", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetReservationsEnriches(t *testing.T) {
	f := newTestRouter(t)
	f.reservation.On("GetReservations", mock.Anything, "alice").Return([]domain.Reservation{{
		ReservationUID: testReservationUID,
		BookUID:        testBookUID,
		LibraryUID:     testLibraryUID,
		Status:         domain.StatusRented,
	}}, nil)
	f.library.On("GetBook", mock.Anything, testLibraryUID, testBookUID).
		Return(domain.Book{BookUID: testBookUID, Name: "Korobka", Condition: domain.ConditionGood})
	f.library.On("GetLibrary", mock.Anything, testLibraryUID).
		Return(domain.Library{LibraryUID: testLibraryUID, Name: "Lenina 5"})

	w := perform(f.router, http.MethodGet, "/api/v1/reservations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response []dto.ReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, "Korobka", response[0].Book.Name)
	assert.Equal(t, "Lenina 5", response[0].Library.Name)
}

func TestReserveBookSuccess(t *testing.T) {
	f := newTestRouter(t)
	input := domain.ReservationInput{
		BookUID:    testBookUID,
		LibraryUID: testLibraryUID,
		TillDate:   domain.NewDate(2024, time.October, 20),
	}
	f.sagas.On("ReserveBook", mock.Anything, "alice", input).Return(&saga.ReserveResult{
		Reservation: domain.Reservation{ReservationUID: testReservationUID, Status: domain.StatusRented},
		Book:        domain.Book{BookUID: testBookUID, Name: "Korobka"},
		Library:     domain.Library{LibraryUID: testLibraryUID},
		Rating:      domain.Rating{Stars: 5},
	}, nil)

	w := perform(f.router, http.MethodPost, "/api/v1/reservations", dto.TakeBookRequest{
		BookUID:    testBookUID,
		LibraryUID: testLibraryUID,
		TillDate:   domain.NewDate(2024, time.October, 20),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var response dto.TakeBookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, testReservationUID, response.ReservationUID)
	assert.Equal(t, 5, response.Rating.Stars)
	assert.Empty(t, f.queue.all())
}

func TestReserveBookQuotaExceeded(t *testing.T) {
	f := newTestRouter(t)
	f.sagas.On("ReserveBook", mock.Anything, "alice", mock.Anything).Return(nil, domain.ErrQuotaExceeded)

	w := perform(f.router, http.MethodPost, "/api/v1/reservations", dto.TakeBookRequest{
		BookUID:    testBookUID,
		LibraryUID: testLibraryUID,
		TillDate:   domain.NewDate(2024, time.October, 20),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.queue.all())
}

func TestReserveBookDefersOnRetryableFailure(t *testing.T) {
	f := newTestRouter(t)
	f.sagas.On("ReserveBook", mock.Anything, "alice", mock.Anything).Return(nil, domain.ErrRetryLater)

	w := perform(f.router, http.MethodPost, "/api/v1/reservations", dto.TakeBookRequest{
		BookUID:    testBookUID,
		LibraryUID: testLibraryUID,
		TillDate:   domain.NewDate(2024, time.October, 20),
	})
	assert.Equal(t, http.StatusNoContent, w.Code)

	tasks := f.queue.all()
	require.Len(t, tasks, 1)
	assert.Equal(t, saga.TaskReserveBook, tasks[0].Kind)
	assert.Equal(t, "alice", tasks[0].Username)
	require.NotNil(t, tasks[0].Reserve)
	assert.Equal(t, testBookUID, tasks[0].Reserve.BookUID)
}

func TestReserveBookUnavailable(t *testing.T) {
	f := newTestRouter(t)
	f.sagas.On("ReserveBook", mock.Anything, "alice", mock.Anything).Return(nil, domain.ErrUnavailable)

	w := perform(f.router, http.MethodPost, "/api/v1/reservations", dto.TakeBookRequest{
		BookUID:    testBookUID,
		LibraryUID: testLibraryUID,
		TillDate:   domain.NewDate(2024, time.October, 20),
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Bonus Service unavailable")
	assert.Empty(t, f.queue.all())
}

func TestReserveBookRejectsMissingFields(t *testing.T) {
	f := newTestRouter(t)

	w := perform(f.router, http.MethodPost, "/api/v1/reservations", map[string]string{"bookUid": testBookUID.String()})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	f.sagas.AssertNotCalled(t, "ReserveBook", mock.Anything, mock.Anything, mock.Anything)
}

func TestReturnBookSuccess(t *testing.T) {
	f := newTestRouter(t)
	input := domain.ReturnInput{Condition: domain.ConditionGood, Date: domain.NewDate(2024, time.October, 15)}
	f.sagas.On("ReturnBook", mock.Anything, "alice", testReservationUID, input).Return(nil)

	w := perform(f.router, http.MethodPost, "/api/v1/reservations/"+testReservationUID.String()+"/return", dto.ReturnBookRequest{
		Condition: domain.ConditionGood,
		Date:      domain.NewDate(2024, time.October, 15),
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestReturnBookDefersOnRetryableFailure(t *testing.T) {
	f := newTestRouter(t)
	f.sagas.On("ReturnBook", mock.Anything, "alice", testReservationUID, mock.Anything).Return(domain.ErrRetryLater)

	w := perform(f.router, http.MethodPost, "/api/v1/reservations/"+testReservationUID.String()+"/return", dto.ReturnBookRequest{
		Condition: domain.ConditionGood,
		Date:      domain.NewDate(2024, time.October, 15),
	})
	assert.Equal(t, http.StatusNoContent, w.Code)

	tasks := f.queue.all()
	require.Len(t, tasks, 1)
	assert.Equal(t, saga.TaskReturnBook, tasks[0].Kind)
	require.NotNil(t, tasks[0].Return)
	assert.Equal(t, testReservationUID, tasks[0].Return.ReservationUID)
}

func TestReturnBookUnavailable(t *testing.T) {
	f := newTestRouter(t)
	f.sagas.On("ReturnBook", mock.Anything, "alice", testReservationUID, mock.Anything).Return(domain.ErrUnavailable)

	w := perform(f.router, http.MethodPost, "/api/v1/reservations/"+testReservationUID.String()+"/return", dto.ReturnBookRequest{
		Condition: domain.ConditionGood,
		Date:      domain.NewDate(2024, time.October, 15),
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, f.queue.all())
}

func TestReturnBookRejectsInvalidCondition(t *testing.T) {
	f := newTestRouter(t)

	w := perform(f.router, http.MethodPost, "/api/v1/reservations/"+testReservationUID.String()+"/return", map[string]string{
		"condition": "MINT",
		"date":      "2024-10-15",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	f.sagas.AssertNotCalled(t, "ReturnBook", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetRating(t *testing.T) {
	f := newTestRouter(t)
	f.rating.On("GetRating", mock.Anything, "alice").Return(&domain.Rating{Stars: 42}, nil)

	w := perform(f.router, http.MethodGet, "/api/v1/rating", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stars": 42}`, w.Body.String())
}

func TestGetRatingUnavailable(t *testing.T) {
	f := newTestRouter(t)
	f.rating.On("GetRating", mock.Anything, "alice").Return(nil, domain.ErrUnavailable)

	w := perform(f.router, http.MethodGet, "/api/v1/rating", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth(t *testing.T) {
	f := newTestRouter(t)

	w := perform(f.router, http.MethodGet, "/manage/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
