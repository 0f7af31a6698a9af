package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"heristone/internal/core"
)

// maxBodyBytes caps request bodies; the largest legitimate body is a payment.
const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("bad request")

// fieldUpdate is the body of every PATCH endpoint. Value is the text the
// user typed; amounts, rates and dates are parsed from it.
type fieldUpdate struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// paymentRequest is the body of POST /api/installments/{id}/payments.
type paymentRequest struct {
	Amount amountValue `json:"amount"`
	Date   core.Date   `json:"date"`
	Memo   string      `json:"memo"`
}

// amountValue accepts a JSON number or a formatted string like "₩1,000,000".
type amountValue int64

func (a *amountValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountValue(core.ParseAmount(s))
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidAmount, string(b))
	}
	*a = amountValue(n)
	return nil
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidDate), errors.Is(err, core.ErrInvalidAmount):
			return err
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		default:
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// pathID parses a positive integer path wildcard.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return id, nil
}

// referenceTime reads the optional ?now=YYYY-MM-DD override. The zero time
// means "use the service clock".
func referenceTime(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("now"))
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
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
