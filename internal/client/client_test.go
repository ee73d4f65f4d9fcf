package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bookrent/gateway/internal/breaker"
	"github.com/bookrent/gateway/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	libraryUID     = uuid.MustParse("83575e12-7ce0-48ee-9931-51919ff3c9ee")
	bookUID        = uuid.MustParse("f7cdc58f-2caf-4b15-9727-f89dcc629b27")
	reservationUID = uuid.MustParse("0f3f1cd4-1b11-4c34-9b3a-2f1c8a7b6d5e")
)

func testOptions(t *testing.T, baseURL string) Options {
	t.Helper()
	return Options{
		BaseURL:        baseURL,
		ConnectTimeout: time.Second,
		RequestTimeout: 2 * time.Second,
		Breaker:        breaker.New(breaker.Settings{Name: "test"}),
	}
}

// deadOptions points at a port nothing listens on.
func deadOptions(t *testing.T) Options {
	t.Helper()
	return testOptions(t, "http://127.0.0.1:1")
}

func TestGetLibrariesForwardsQueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/libraries", r.URL.Path)
		assert.Equal(t, "Moscow", r.URL.Query().Get("city"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))

		json.NewEncoder(w).Encode(domain.LibrariesPage{
			PageInfo: domain.PageInfo{Page: 1, PageSize: 10, TotalElements: 1},
			Items:    []domain.Library{{LibraryUID: libraryUID, Name: "Lenina 5", City: "Moscow"}},
		})
	}))
	defer server.Close()

	c := NewLibraryClient(testOptions(t, server.URL))
	page, err := c.GetLibraries(context.Background(), "Moscow", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Lenina 5", page.Items[0].Name)
	assert.Equal(t, 1, page.TotalElements)
}

func TestGetBooksForwardsShowAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/libraries/"+libraryUID.String()+"/books", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("show_all"))

		json.NewEncoder(w).Encode(domain.BooksPage{
			PageInfo: domain.PageInfo{Page: 0, PageSize: 100, TotalElements: 1},
			Items: []domain.BookInfo{{
				Book:           domain.Book{BookUID: bookUID, Name: "Korobka", Condition: domain.ConditionGood},
				AvailableCount: 0,
			}},
		})
	}))
	defer server.Close()

	c := NewLibraryClient(testOptions(t, server.URL))
	page, err := c.GetBooks(context.Background(), libraryUID, 0, 100, true)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 0, page.Items[0].AvailableCount)
}

func TestGetLibrariesUnavailable(t *testing.T) {
	c := NewLibraryClient(deadOptions(t))
	_, err := c.GetLibraries(context.Background(), "Moscow", 0, 100)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestGetBookDegradesToPlaceholder(t *testing.T) {
	c := NewLibraryClient(deadOptions(t))
	book := c.GetBook(context.Background(), libraryUID, bookUID)
	assert.Equal(t, bookUID, book.BookUID)
	assert.Equal(t, domain.ConditionUnknown, book.Condition)
	assert.Empty(t, book.Name)
}

func TestGetLibraryDegradesToPlaceholder(t *testing.T) {
	c := NewLibraryClient(deadOptions(t))
	library := c.GetLibrary(context.Background(), libraryUID)
	assert.Equal(t, libraryUID, library.LibraryUID)
	assert.Empty(t, library.Name)
}

func TestReserveBookRequiresOK(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/libraries/"+libraryUID.String()+"/books/"+bookUID.String()+"/reserve", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	c := NewLibraryClient(testOptions(t, server.URL))
	assert.NoError(t, c.ReserveBook(context.Background(), libraryUID, bookUID))

	status = http.StatusNotFound
	assert.ErrorIs(t, c.ReserveBook(context.Background(), libraryUID, bookUID), domain.ErrUnavailable)
}

func TestReservationsCarryUserNameHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice", r.Header.Get("X-User-Name"))
		json.NewEncoder(w).Encode([]domain.Reservation{{
			ReservationUID: reservationUID,
			BookUID:        bookUID,
			LibraryUID:     libraryUID,
			Status:         domain.StatusRented,
		}})
	}))
	defer server.Close()

	c := NewReservationClient(testOptions(t, server.URL))
	reservations, err := c.GetReservations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, domain.StatusRented, reservations[0].Status)
}

func TestCreateReservationRequiresCreated(t *testing.T) {
	till, err := domain.ParseDate("2024-10-20")
	require.NoError(t, err)
	input := domain.ReservationInput{BookUID: bookUID, LibraryUID: libraryUID, TillDate: till}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "alice", r.Header.Get("X-User-Name"))

		var body domain.ReservationInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, bookUID, body.BookUID)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.Reservation{
			ReservationUID: reservationUID,
			BookUID:        body.BookUID,
			LibraryUID:     body.LibraryUID,
			Status:         domain.StatusRented,
			StartDate:      domain.Today(),
			TillDate:       body.TillDate,
		})
	}))
	defer server.Close()

	c := NewReservationClient(testOptions(t, server.URL))
	reservation, err := c.CreateReservation(context.Background(), "alice", input)
	require.NoError(t, err)
	assert.Equal(t, reservationUID, reservation.ReservationUID)

	// A backend that answers but refuses is unavailability for the saga.
	refusing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer refusing.Close()

	c = NewReservationClient(testOptions(t, refusing.URL))
	_, err = c.CreateReservation(context.Background(), "alice", input)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestUpdateReservationStatusRequiresNoContent(t *testing.T) {
	var gotStatus string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reservations/"+reservationUID.String()+"/return", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotStatus = body["status"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewReservationClient(testOptions(t, server.URL))
	err := c.UpdateReservationStatus(context.Background(), "alice", reservationUID, domain.StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", gotStatus)
}

func TestGetRentedCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rented", r.URL.Path)
		assert.Equal(t, "bob", r.Header.Get("X-User-Name"))
		json.NewEncoder(w).Encode(domain.RentedCount{Count: 3})
	}))
	defer server.Close()

	c := NewReservationClient(testOptions(t, server.URL))
	rented, err := c.GetRentedCount(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, rented.Count)
}

func TestUpdateRatingSendsDelta(t *testing.T) {
	var gotDelta int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rating", r.URL.Path)
		var body domain.Rating
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotDelta = body.Stars
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := NewRatingClient(testOptions(t, server.URL))
	require.NoError(t, c.UpdateRating(context.Background(), "alice", -20))
	assert.Equal(t, -20, gotDelta)
}

func TestGetRatingUnavailable(t *testing.T) {
	c := NewRatingClient(deadOptions(t))
	_, err := c.GetRating(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
