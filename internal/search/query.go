package search

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

var ErrInvalidQuery = errors.New("invalid search query")

// Query is a validated recall search request. Product is the only required
// field. Cursor and Offset are mutually exclusive pagination modes: offset
// pages rank by relevance and carry a total, cursor pages use a recall-date
// keyset that stays stable while ingestion inserts rows.
type Query struct {
	Product        string
	Brand          string
	Agencies       []string
	Severity       string
	RiskCategory   string
	HazardCategory string

	DateFrom *time.Time
	DateTo   *time.Time

	Limit  int
	Offset int
	Cursor string
}

func (q *Query) Validate() error {
	q.Product = strings.TrimSpace(q.Product)
	if q.Product == "" {
		return fmt.Errorf("%w: product is required", ErrInvalidQuery)
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateFrom.After(*q.DateTo) {
		return fmt.Errorf("%w: date_from is after date_to", ErrInvalidQuery)
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidQuery)
	}
	if q.Limit > MaxLimit {
		return fmt.Errorf("%w: limit exceeds maximum of %d", ErrInvalidQuery, MaxLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrInvalidQuery)
	}
	if q.Cursor != "" && q.Offset > 0 {
		return fmt.Errorf("%w: cursor and offset cannot be combined", ErrInvalidQuery)
	}
	if q.Cursor != "" {
		if _, err := DecodeCursor(q.Cursor); err != nil {
			return err
		}
	}
	return nil
}

// Cursor is a keyset position: the (recall_date, id) pair of the last row on
// the previous page. Encoded opaquely so clients cannot depend on the shape.
type Cursor struct {
	RecallDate time.Time
	ID         uuid.UUID
}

func EncodeCursor(c Cursor) string {
	raw := c.RecallDate.UTC().Format(time.RFC3339) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidQuery)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidQuery)
	}
	date, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed cursor date", ErrInvalidQuery)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed cursor id", ErrInvalidQuery)
	}
	return Cursor{RecallDate: date, ID: id}, nil
}
