package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"recettes/internal/core"
	"recettes/internal/repository"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidDate = errors.New("date must be YYYY-MM-DD")
	errInvalidID   = errors.New("invalid id")
	errBadBody     = errors.New("malformed request body")
)

// decodeJSON reads a JSON body into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}

// pathID parses the chi URL parameter name as a positive integer.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, core.Invalid(name, errInvalidID)
	}
	return id, nil
}

// queryID parses an optional integer query parameter. Missing means 0.
func queryID(q url.Values, name string) (int64, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, core.Invalid(name, errInvalidID)
	}
	return id, nil
}

// parseYearMonth extracts year and month from query parameters.
// Returns current year/month as defaults if not provided.
func parseYearMonth(q url.Values) (year, month int, err error) {
	now := time.Now()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, core.Invalid("year", errors.New("invalid year"))
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, core.Invalid("month", core.ErrInvalidMonth)
		}
	}
	return year, month, nil
}

// parseDate parses a date string in YYYY-MM-DD format. An empty string is
// today.
func parseDate(field, s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		now := time.Now().UTC()
		return core.NewDate(now.Year(), int(now.Month()), now.Day()), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}, core.Invalid(field, errInvalidDate)
	}
	return core.Date{Time: t}, nil
}

// parseOptionalDate parses a date filter bound. Empty is the zero time.
func parseOptionalDate(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	d, err := parseDate(field, s)
	return d.Time, err
}

func parseAmount(field, s string) (core.Money, error) {
	m, err := core.ParseAmount(s)
	if err != nil {
		return core.Money{}, core.Invalid(field, err)
	}
	return m, nil
}

func parseOptionalAmount(field string, s *string) (*core.Money, error) {
	if s == nil {
		return nil, nil
	}
	m, err := parseAmount(field, *s)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func parseOptionalDateField(field string, s *string) (*core.Date, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

// expenseFilter builds a repository filter from the query string.
func expenseFilter(q url.Values) (repository.ExpenseFilter, error) {
	var (
		f   repository.ExpenseFilter
		err error
	)
	if f.SourceID, err = queryID(q, "source_id"); err != nil {
		return f, err
	}
	if f.From, err = parseOptionalDate("from", q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = parseOptionalDate("to", q.Get("to")); err != nil {
		return f, err
	}
	f.Category = sanitizeInput(q.Get("category"))
	return f, nil
}
