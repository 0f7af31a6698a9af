package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"heristone/internal/core"
	"heristone/internal/services"
	"heristone/internal/store/memory"
)

func newTestServer(t *testing.T, perMinute int) (*Server, *services.DocumentService) {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	svc := services.NewDocumentService(memory.New(), services.WithClock(clock))
	srv := NewServer(":0", svc, Options{RequestsPerMinute: perMinute})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, svc
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "203.0.113.5:1234"
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_HealthAndHeaders(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "heristone_http_requests_total")
}

func TestServer_Reads(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := do(t, srv, http.MethodGet, "/api/document", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	doc := decode[core.Document](t, rec)
	assert.Equal(t, core.DefaultDocument().Project.Name, doc.Project.Name)

	rec = do(t, srv, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[core.Stats](t, rec)
	assert.Equal(t, core.ComputeStats(core.DefaultDocument()), stats)

	rec = do(t, srv, http.MethodGet, "/api/next-payment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[nextPaymentResponse](t, rec)
	require.True(t, next.Found)
	assert.Equal(t, int64(1), next.Installment.ID)
	assert.Equal(t, 44, next.DDay) // 2024-05-01 -> 2024-06-14
	assert.Equal(t, "D-44", next.DDayLabel)

	rec = do(t, srv, http.MethodGet, "/api/next-payment?now=2024-06-15", "")
	next = decode[nextPaymentResponse](t, rec)
	assert.Equal(t, -1, next.DDay)

	rec = do(t, srv, http.MethodGet, "/api/schedule?now=2024-10-16", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]core.ScheduleRow](t, rec)
	require.Len(t, rows, 6)
	assert.Equal(t, core.StatusOverdue, rows[1].Status)
	assert.Equal(t, core.StatusPending, rows[2].Status)

	rec = do(t, srv, http.MethodGet, "/api/schedule?now=tomorrow", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_ExportWorkbook(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := do(t, srv, http.MethodGet, "/api/export.xlsx?now=2024-05-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, workbookContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="heristone.xlsx"`)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Schedule")
	require.NoError(t, err)
	assert.Len(t, rows, len(core.DefaultDocument().Plan)+2)

	rec = do(t, srv, http.MethodGet, "/api/export.xlsx?now=soon", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_PaymentFlow(t *testing.T) {
	srv, svc := newTestServer(t, 0)

	rec := do(t, srv, http.MethodPost, "/api/installments/1/payments",
		`{"amount":"₩60,000,000","date":"2024-06-10","memo":"1차"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[paymentResponse](t, rec)
	assert.Equal(t, int64(60000000), created.Payment.Amount)
	inst, ok := created.Document.Installment(1)
	require.True(t, ok)
	assert.Equal(t, int64(60000000), inst.PaidAmount())

	rec = do(t, srv, http.MethodGet, "/api/next-payment", "")
	next := decode[nextPaymentResponse](t, rec)
	assert.Equal(t, int64(2), next.Installment.ID)

	rec = do(t, srv, http.MethodPost, "/api/installments/2/payments", `{"amount":1500,"date":"2024-06-11"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/installments/1/payments/%d", created.Payment.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := svc.Document(context.Background())
	require.NoError(t, err)
	inst, _ = doc.Installment(1)
	assert.Zero(t, inst.PaidAmount())
	inst, _ = doc.Installment(2)
	assert.Equal(t, int64(1500), inst.PaidAmount())
}

func TestServer_FieldUpdates(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := do(t, srv, http.MethodPatch, "/api/project", `{"field":"totalAmount","value":"700,000,000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(700000000), decode[core.Document](t, rec).Project.TotalAmount)

	rec = do(t, srv, http.MethodPatch, "/api/installments/3", `{"field":"interestRate","value":"5.2%"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	inst, _ := decode[core.Document](t, rec).Installment(3)
	assert.Equal(t, 5.2, inst.InterestRate)

	rec = do(t, srv, http.MethodPost, "/api/options", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	opt := decode[optionResponse](t, rec).Option
	assert.Equal(t, core.DefaultOptionName, opt.Name)

	rec = do(t, srv, http.MethodPatch, fmt.Sprintf("/api/options/%d", opt.ID), `{"field":"price","value":"3,000,000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/options/%d", opt.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[core.Document](t, rec).Options, 2)

	rec = do(t, srv, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.DefaultDocument().Project.TotalAmount, decode[core.Document](t, rec).Project.TotalAmount)
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown installment", http.MethodPatch, "/api/installments/999", `{"field":"name","value":"x"}`, http.StatusNotFound},
		{"unknown option", http.MethodDelete, "/api/options/999", "", http.StatusNotFound},
		{"unknown payment", http.MethodDelete, "/api/installments/1/payments/5", "", http.StatusNotFound},
		{"bad id", http.MethodPatch, "/api/options/abc", `{"field":"name","value":"x"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/api/project", `{"field":"owner","value":"x"}`, http.StatusBadRequest},
		{"read only field", http.MethodPatch, "/api/installments/1", `{"field":"paidAmount","value":"1"}`, http.StatusBadRequest},
		{"invalid date value", http.MethodPatch, "/api/project", `{"field":"contractDate","value":"01/02/2024"}`, http.StatusUnprocessableEntity},
		{"invalid payment date", http.MethodPost, "/api/installments/1/payments", `{"amount":1,"date":"soon"}`, http.StatusUnprocessableEntity},
		{"zero amount", http.MethodPost, "/api/installments/1/payments", `{"amount":"abc","date":"2024-01-01"}`, http.StatusUnprocessableEntity},
		{"missing date", http.MethodPost, "/api/installments/1/payments", `{"amount":5}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPatch, "/api/project", `{"field":`, http.StatusBadRequest},
		{"unknown json key", http.MethodPatch, "/api/project", `{"field":"name","value":"x","extra":1}`, http.StatusBadRequest},
		{"empty body", http.MethodPatch, "/api/project", "", http.StatusBadRequest},
		{"wrong method", http.MethodPut, "/api/project", `{}`, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want != http.StatusMethodNotAllowed {
				assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
			}
		})
	}
}

type failingService struct {
	DocumentService
}

func (failingService) Stats(context.Context) (core.Stats, error) {
	return core.Stats{}, errors.New("disk on fire")
}

func (failingService) Ready(context.Context) error {
	return errors.New("db closed")
}

func TestServer_InternalErrorsAreHidden(t *testing.T) {
	srv := NewServer(":0", failingService{}, Options{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := do(t, srv, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode[errorResponse](t, rec).Error)

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RateLimitsMutations(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rec := do(t, srv, http.MethodPost, "/api/options", "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := do(t, srv, http.MethodPost, "/api/options", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Reads are never limited.
	rec = do(t, srv, http.MethodGet, "/api/document", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"direct", "203.0.113.5:1000", nil, "203.0.113.5"},
		{"untrusted forwarder ignored", "203.0.113.5:1000", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "203.0.113.5"},
		{"trusted proxy xff", "10.0.0.2:1000", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.2"}, "1.2.3.4"},
		{"trusted proxy real ip", "127.0.0.1:1000", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"trusted proxy garbage", "192.168.1.1:1000", map[string]string{"X-Forwarded-For": "nope"}, "192.168.1.1"},
		{"no port", "203.0.113.9", nil, "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractClientIP(req))
		})
	}
}

func TestAmountValue(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{`1500`, 1500},
		{`"₩1,500"`, 1500},
		{`"abc"`, 0},
	}
	for _, tt := range tests {
		var a amountValue
		require.NoError(t, json.Unmarshal([]byte(tt.in), &a))
		assert.Equal(t, tt.want, int64(a))
	}

	var a amountValue
	err := json.NewDecoder(bytes.NewReader([]byte(`{"amount":true}`))).Decode(&struct {
		Amount *amountValue `json:"amount"`
	}{Amount: &a})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}
