package model

import (
	"fmt"
	"math"
)

// Default pagination values used when a caller omits them
const (
	DefaultPageNumber = 1
	DefaultPageSize   = 10
)

// Page is a validated 1-based page request
type Page struct {
	Number int
	Size   int
}

// NewPage validates a page request
func NewPage(number, size int) (Page, error) {
	if number < 1 {
		return Page{}, fmt.Errorf("%w: invalid page number %d", ErrInvalidArgument, number)
	}
	if size <= 0 {
		return Page{}, fmt.Errorf("%w: invalid page size %d", ErrInvalidArgument, size)
	}
	return Page{Number: number, Size: size}, nil
}

// Offset returns the number of entries preceding this page. Offsets too large to
// represent saturate at math.MaxInt, which lies past the end of any listing.
func (p Page) Offset() int {
	if p.Size <= 0 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// Limit returns the maximum number of entries on this page
func (p Page) Limit() int {
	return p.Size
}

// ValidateWindow checks raw offset/limit arguments for list operations
func ValidateWindow(offset, limit int) error {
	if offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrInvalidArgument, offset)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: invalid limit %d", ErrInvalidArgument, limit)
	}
	return nil
}

// WindowEnd returns offset+limit, saturating at math.MaxInt
func WindowEnd(offset, limit int) int {
	if offset > math.MaxInt-limit {
		return math.MaxInt
	}
	return offset + limit
}

// Window returns the [start, end) bounds of a page window over n ordered entries
func Window(n, offset, limit int) (int, int) {
	if offset >= n {
		return n, n
	}
	end := WindowEnd(offset, limit)
	if end > n {
		end = n
	}
	return offset, end
}
