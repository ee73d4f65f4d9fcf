// Package domain holds the records the gateway exchanges with its three
// downstream systems, in the wire shapes those systems expose.
package domain

import "github.com/google/uuid"

// Condition describes the physical state of a book.
type Condition string

const (
	ConditionExcellent Condition = "EXCELLENT"
	ConditionGood      Condition = "GOOD"
	ConditionBad       Condition = "BAD"
	// ConditionUnknown is a gateway-only sentinel meaning the library
	// system returned no data for the book. Backends never emit it.
	ConditionUnknown Condition = "UNKNOWN"
)

// Valid reports whether the condition is one a client may submit.
func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionBad:
		return true
	}
	return false
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusRented   ReservationStatus = "RENTED"
	StatusReturned ReservationStatus = "RETURNED"
	StatusExpired  ReservationStatus = "EXPIRED"
)

// Library is a library record from the library system.
type Library struct {
	LibraryUID uuid.UUID `json:"libraryUid"`
	Name       string    `json:"name"`
	City       string    `json:"city"`
	Address    string    `json:"address"`
}

// Book is a book record from the library system.
type Book struct {
	BookUID   uuid.UUID `json:"bookUid"`
	Name      string    `json:"name"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	Condition Condition `json:"condition"`
}

// BookInfo is a book together with its availability in one library.
type BookInfo struct {
	Book
	AvailableCount int `json:"availableCount"`
}

// PageInfo is the pagination envelope the backends use.
type PageInfo struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

// LibrariesPage is one page of libraries.
type LibrariesPage struct {
	PageInfo
	Items []Library `json:"items"`
}

// BooksPage is one page of books.
type BooksPage struct {
	PageInfo
	Items []BookInfo `json:"items"`
}

// Reservation is a reservation record from the reservation system.
type Reservation struct {
	ReservationUID uuid.UUID         `json:"reservationUid"`
	BookUID        uuid.UUID         `json:"bookUid"`
	LibraryUID     uuid.UUID         `json:"libraryUid"`
	Status         ReservationStatus `json:"status"`
	StartDate      Date              `json:"startDate"`
	TillDate       Date              `json:"tillDate"`
}

// ReservationInput is the payload for creating a reservation.
type ReservationInput struct {
	BookUID    uuid.UUID `json:"bookUid"`
	LibraryUID uuid.UUID `json:"libraryUid"`
	TillDate   Date      `json:"tillDate"`
}

// ReturnInput is the payload for returning a book.
type ReturnInput struct {
	Condition Condition `json:"condition"`
	Date      Date      `json:"date"`
}

// Rating is a user rating record from the rating system. Stars doubles
// as the number of books the user may hold concurrently.
type Rating struct {
	Stars int `json:"stars"`
}

// RentedCount is the number of books a user currently holds.
type RentedCount struct {
	Count int `json:"count"`
}

// PlaceholderBook is the degraded record used when the library system
// cannot be reached: only the UID is populated and the condition is the
// UNKNOWN sentinel.
func PlaceholderBook(bookUID uuid.UUID) Book {
	return Book{BookUID: bookUID, Condition: ConditionUnknown}
}

// PlaceholderLibrary is the degraded record used when the library system
// cannot be reached.
func PlaceholderLibrary(libraryUID uuid.UUID) Library {
	return Library{LibraryUID: libraryUID}
}
