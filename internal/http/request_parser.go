// Package http serves the JSON API, the embedded dashboard and the ops
// endpoints.
//
// This file implements utilities for parsing and validating request data.
// Query strings are read through a QueryParser that knows the keys each
// endpoint accepts; bodies are decoded strictly into typed inputs.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"carteira/internal/core"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// QueryParser reads typed values from a query string and remembers the
// first error. Keys outside the allowed set are rejected.
type QueryParser struct {
	values url.Values
	err    error
}

// NewQueryParser checks the query keys against allowed.
func NewQueryParser(query url.Values, allowed ...string) *QueryParser {
	p := &QueryParser{values: query}
	known := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		known[k] = true
	}
	var unknown []string
	for k := range query {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		p.err = &core.ValidationError{
			Field:   unknown[0],
			Message: fmt.Sprintf("unknown query parameter (allowed: %s)", strings.Join(allowed, ", ")),
		}
	}
	return p
}

// Err returns the first parse error.
func (p *QueryParser) Err() error {
	return p.err
}

func (p *QueryParser) fail(field, msg string) {
	if p.err == nil {
		p.err = &core.ValidationError{Field: field, Message: msg}
	}
}

func (p *QueryParser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v := strings.TrimSpace(p.values.Get(key))
	return v, v != ""
}

// String returns an optional string.
func (p *QueryParser) String(key string) *string {
	v, ok := p.get(key)
	if !ok {
		return nil
	}
	v = sanitizeInput(v)
	return &v
}

// Int returns an optional integer.
func (p *QueryParser) Int(key string) *int {
	v, ok := p.get(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, "expected an integer")
		return nil
	}
	return &n
}

// RequiredInt returns an integer that must be present.
func (p *QueryParser) RequiredInt(key string) int {
	n := p.Int(key)
	if n == nil {
		p.fail(key, "is required")
		return 0
	}
	return *n
}

// Bool returns an optional boolean.
func (p *QueryParser) Bool(key string) *bool {
	v, ok := p.get(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, "expected true or false")
		return nil
	}
	return &b
}

// Date returns an optional YYYY-MM-DD date.
func (p *QueryParser) Date(key string) *time.Time {
	v, ok := p.get(key)
	if !ok {
		return nil
	}
	t, err := core.ParseDate(v)
	if err != nil {
		p.fail(key, "expected YYYY-MM-DD")
		return nil
	}
	return &t
}

// RequiredDate returns a date that must be present.
func (p *QueryParser) RequiredDate(key string) time.Time {
	t := p.Date(key)
	if t == nil {
		p.fail(key, "is required")
		return time.Time{}
	}
	return *t
}

// Month returns an optional YYYY-MM month.
func (p *QueryParser) Month(key string) *core.YearMonth {
	v, ok := p.get(key)
	if !ok {
		return nil
	}
	ym, err := core.ParseYearMonth(v)
	if err != nil {
		p.fail(key, "expected YYYY-MM")
		return nil
	}
	return &ym
}

// Flow returns an optional transaction flow.
func (p *QueryParser) Flow(key string) *core.Flow {
	v, ok := p.get(key)
	if !ok {
		return nil
	}
	f := core.Flow(v)
	if !f.Valid() {
		p.fail(key, "must be income, expense or transfer")
		return nil
	}
	return &f
}

// Period returns an optional budget period.
func (p *QueryParser) Period(key string) *core.Period {
	v, ok := p.get(key)
	if !ok {
		return nil
	}
	period := core.Period(v)
	if !period.Valid() {
		p.fail(key, "must be monthly, quarterly or annual")
		return nil
	}
	return &period
}

// DateRange builds an inclusive range from two date keys. The end date
// covers its whole day.
func (p *QueryParser) DateRange(startKey, endKey string, required bool) core.DateRange {
	var start, end *time.Time
	if required {
		s, e := p.RequiredDate(startKey), p.RequiredDate(endKey)
		start, end = &s, &e
	} else {
		start, end = p.Date(startKey), p.Date(endKey)
	}
	if p.err != nil {
		return core.DateRange{}
	}
	var r core.DateRange
	if start != nil {
		r.Start = *start
	}
	if end != nil {
		r.End = core.EndOfDay(*end)
	}
	if start != nil && end != nil && end.Before(*start) {
		p.fail(endKey, "must not be before "+startKey)
	}
	return r
}

// DecodeJSON strictly decodes a JSON body into dst. Unknown fields, trailing
// data and oversize bodies are rejected as invalid input.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &core.ValidationError{Field: "body", Message: "request body is empty"}
		case errors.As(err, &maxErr):
			return &core.ValidationError{Field: "body", Message: "request body too large"}
		default:
			return &core.ValidationError{Field: "body", Message: err.Error()}
		}
	}
	if dec.More() {
		return &core.ValidationError{Field: "body", Message: "unexpected data after JSON object"}
	}
	return nil
}
