package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bookrent/gateway/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LibraryClient talks to the library system.
type LibraryClient struct {
	base
}

// NewLibraryClient creates a library system adapter.
func NewLibraryClient(opts Options) *LibraryClient {
	return &LibraryClient{base: newBase(opts)}
}

// GetLibraries lists libraries in a city.
func (c *LibraryClient) GetLibraries(ctx context.Context, city string, page, size int) (*domain.LibrariesPage, error) {
	query := url.Values{}
	query.Set("city", city)
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	resp := c.do(ctx, http.MethodGet, "/libraries", query, "", nil)
	if resp == nil {
		return nil, domain.ErrUnavailable
	}

	var libraries domain.LibrariesPage
	if err := decode(resp, &libraries); err != nil {
		return nil, err
	}
	return &libraries, nil
}

// GetLibrary fetches one library. When the library system is down the
// result degrades to a placeholder with only the UID populated.
func (c *LibraryClient) GetLibrary(ctx context.Context, libraryUID uuid.UUID) domain.Library {
	resp := c.do(ctx, http.MethodGet, "/libraries/"+libraryUID.String(), nil, "", nil)
	if resp == nil {
		return domain.PlaceholderLibrary(libraryUID)
	}

	var library domain.Library
	if err := decode(resp, &library); err != nil {
		c.log.Warn("failed to decode library", zap.String("library_uid", libraryUID.String()), zap.Error(err))
		return domain.PlaceholderLibrary(libraryUID)
	}
	return library
}

// GetBooks lists books in a library. showAll includes books with no
// available copies.
func (c *LibraryClient) GetBooks(ctx context.Context, libraryUID uuid.UUID, page, size int, showAll bool) (*domain.BooksPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))
	query.Set("show_all", strconv.FormatBool(showAll))

	resp := c.do(ctx, http.MethodGet, fmt.Sprintf("/libraries/%s/books", libraryUID), query, "", nil)
	if resp == nil {
		return nil, domain.ErrUnavailable
	}

	var books domain.BooksPage
	if err := decode(resp, &books); err != nil {
		return nil, err
	}
	return &books, nil
}

// GetBook fetches one book. When the library system is down the result
// degrades to a placeholder whose condition is UNKNOWN.
func (c *LibraryClient) GetBook(ctx context.Context, libraryUID, bookUID uuid.UUID) domain.Book {
	resp := c.do(ctx, http.MethodGet, fmt.Sprintf("/libraries/%s/books/%s", libraryUID, bookUID), nil, "", nil)
	if resp == nil {
		return domain.PlaceholderBook(bookUID)
	}

	var book domain.Book
	if err := decode(resp, &book); err != nil {
		c.log.Warn("failed to decode book", zap.String("book_uid", bookUID.String()), zap.Error(err))
		return domain.PlaceholderBook(bookUID)
	}
	return book
}

// ReserveBook decrements the book's available count in the library.
func (c *LibraryClient) ReserveBook(ctx context.Context, libraryUID, bookUID uuid.UUID) error {
	path := fmt.Sprintf("/libraries/%s/books/%s/reserve", libraryUID, bookUID)
	resp := c.do(ctx, http.MethodPost, path, nil, "", reserveBody(libraryUID, bookUID))
	if resp == nil || resp.StatusCode != http.StatusOK {
		drain(resp)
		return domain.ErrUnavailable
	}
	drain(resp)
	return nil
}

// ReturnBook increments the book's available count in the library.
func (c *LibraryClient) ReturnBook(ctx context.Context, libraryUID, bookUID uuid.UUID) error {
	path := fmt.Sprintf("/libraries/%s/books/%s/return", libraryUID, bookUID)
	resp := c.do(ctx, http.MethodPost, path, nil, "", reserveBody(libraryUID, bookUID))
	if resp == nil || resp.StatusCode != http.StatusOK {
		drain(resp)
		return domain.ErrUnavailable
	}
	drain(resp)
	return nil
}

func reserveBody(libraryUID, bookUID uuid.UUID) map[string]string {
	return map[string]string{
		"library_uid": libraryUID.String(),
		"book_uid":    bookUID.String(),
	}
}
