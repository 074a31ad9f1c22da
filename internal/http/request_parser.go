// This file implements utilities for decoding request bodies and query
// parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"invoicer/internal/core"
	"invoicer/internal/report"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// DecodeJSON reads a single JSON document from the request body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON document")
	}
	return nil
}

// ParseDateRange reads from and to (YYYY-MM-DD) from the query. Missing values
// default to the first of now's month and today. A range whose start is after
// its end is rejected.
func ParseDateRange(query url.Values, now time.Time) (core.Date, core.Date, error) {
	start, end := report.DefaultRange(now)

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("from: %w", err)
		}
		start = d
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("to: %w", err)
		}
		end = d
	}
	if start.After(end.Time) {
		return core.Date{}, core.Date{}, fmt.Errorf("from %s is after to %s", start, end)
	}
	return start, end, nil
}

// ParseStatusFilter reads an optional status query parameter.
func ParseStatusFilter(query url.Values) (core.InvoiceStatus, error) {
	v := strings.TrimSpace(query.Get("status"))
	if v == "" {
		return "", nil
	}
	return core.ParseStatus(v)
}
