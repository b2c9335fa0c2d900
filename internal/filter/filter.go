// Package filter validates the loosely-typed invoice filters received from the
// transports and turns them into Criteria the query builder can trust.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// DateLayout is the only accepted calendar date format.
const DateLayout = "2006-01-02"

// DefaultLimit applies when the caller does not send a limit.
const DefaultLimit = 5

// MaxSearchLength caps free-text search terms, in characters.
const MaxSearchLength = 200

// Status is the human readable invoice state stored in the invoices view.
type Status string

const (
	StatusPending Status = "PENDIENTE"
	StatusPaid    Status = "PAGADA"
)

var (
	ErrInvalidStatus     = errors.New("Estado inválido. Usa 'PENDIENTE' o 'PAGADA'.")
	ErrInvalidDateFormat = errors.New("formato de fecha inválido")
	ErrInvalidDateRange  = errors.New("La fecha_inicio no puede ser posterior a fecha_fin.")
	ErrInvalidLimit      = errors.New("El límite debe ser un entero positivo.")
	ErrEmptySearch       = errors.New("La búsqueda no puede estar vacía.")
	ErrSearchTooLong     = fmt.Errorf("La búsqueda no puede superar %d caracteres.", MaxSearchLength)
	ErrMissingIdentity   = errors.New("Falta el email del agente.")
	ErrInvalidYear       = errors.New("El año debe ser un entero positivo.")
)

// InvalidDateFormatError names the offending field. It matches ErrInvalidDateFormat
// with errors.Is.
type InvalidDateFormatError struct {
	Field string
	Value string
}

func (e *InvalidDateFormatError) Error() string {
	example := "2024-11-01"
	if e.Field == "fecha_fin" {
		example = "2024-11-30"
	}
	return fmt.Sprintf("Formato de %s inválido. Usa 'YYYY-MM-DD' (ej: %s).", e.Field, example)
}

func (e *InvalidDateFormatError) Is(target error) bool { return target == ErrInvalidDateFormat }

// IsValidation reports whether err is a caller-input fault.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidDateFormat) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrEmptySearch) ||
		errors.Is(err, ErrSearchTooLong) ||
		errors.Is(err, ErrMissingIdentity) ||
		errors.Is(err, ErrInvalidYear)
}

// Raw is the filter set as it arrives from a transport. Empty strings mean absent.
type Raw struct {
	Status   string
	DateFrom string
	DateTo   string
	Limit    *int
	FreeText string
}

// Criteria is a validated filter set.
type Criteria struct {
	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	FreeText string
}

// Validate checks status, dates and limit in that order and returns the first
// problem found.
func Validate(raw Raw) (Criteria, error) {
	c := Criteria{Limit: DefaultLimit, FreeText: strings.TrimSpace(raw.FreeText)}

	if s := strings.TrimSpace(raw.Status); s != "" {
		st := Status(s)
		if st != StatusPending && st != StatusPaid {
			return Criteria{}, ErrInvalidStatus
		}
		c.Status = &st
	}

	from, err := parseDate("fecha_inicio", raw.DateFrom)
	if err != nil {
		return Criteria{}, err
	}
	to, err := parseDate("fecha_fin", raw.DateTo)
	if err != nil {
		return Criteria{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return Criteria{}, ErrInvalidDateRange
	}
	c.DateFrom, c.DateTo = from, to

	if raw.Limit != nil {
		if *raw.Limit < 1 {
			return Criteria{}, ErrInvalidLimit
		}
		c.Limit = *raw.Limit
	}
	return c, nil
}

// SearchTerm trims a free-text term and rejects empty or oversized input.
// Terms are always bound as parameters; SQL-looking fragments are only logged.
func SearchTerm(raw string) (string, error) {
	term := strings.TrimSpace(raw)
	if term == "" {
		return "", ErrEmptySearch
	}
	if utf8.RuneCountInString(term) > MaxSearchLength {
		return "", ErrSearchTooLong
	}

	lower := strings.ToLower(term)
	for _, pattern := range suspicious {
		if strings.Contains(lower, pattern) {
			log.Warn().Str("pattern", pattern).Str("input", term).Msg("suspicious pattern detected in input")
		}
	}
	return term, nil
}

var suspicious = []string{
	"--", "/*", "*/", ";", "union", "information_schema", "pg_catalog",
}

func parseDate(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return nil, &InvalidDateFormatError{Field: field, Value: v}
	}
	return &t, nil
}

// StatusString returns the status label or "" when unset.
func (c Criteria) StatusString() string {
	if c.Status == nil {
		return ""
	}
	return string(*c.Status)
}

// DateFromString returns date_from as YYYY-MM-DD or "" when unset.
func (c Criteria) DateFromString() string { return formatDate(c.DateFrom) }

// DateToString returns date_to as YYYY-MM-DD or "" when unset.
func (c Criteria) DateToString() string { return formatDate(c.DateTo) }

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
