package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"heristone/internal/core"
	"heristone/internal/sheets/xlsx"
)

const (
	workbookName        = "heristone.xlsx"
	workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type nextPaymentResponse struct {
	Found       bool              `json:"found"`
	Installment *core.Installment `json:"installment,omitempty"`
	DDay        int               `json:"dday,omitempty"`
	DDayLabel   string            `json:"ddayLabel,omitempty"`
	Outstanding int64             `json:"outstanding,omitempty"`
}

type paymentResponse struct {
	Payment  core.Payment  `json:"payment"`
	Document core.Document `json:"document"`
}

type optionResponse struct {
	Option   core.Option   `json:"option"`
	Document core.Document `json:"document"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ready(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Document(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleNextPayment(w http.ResponseWriter, r *http.Request) {
	now, err := referenceTime(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	info, ok, err := s.svc.NextPayment(r.Context(), now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, nextPaymentResponse{Found: false})
		return
	}
	inst := info.Installment
	writeJSON(w, http.StatusOK, nextPaymentResponse{
		Found:       true,
		Installment: &inst,
		DDay:        info.DDay,
		DDayLabel:   core.FormatDDay(info.DDay),
		Outstanding: info.Outstanding,
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	now, err := referenceTime(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.svc.Schedule(r.Context(), now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleExportWorkbook renders the workbook into memory first so a render
// failure still gets a JSON error instead of a truncated download.
func (s *Server) handleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	now, err := referenceTime(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if now.IsZero() {
		now = time.Now()
	}
	doc, err := s.svc.Document(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	exporter, err := xlsx.New(xlsx.Config{Path: workbookName})
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := exporter.Write(&buf, doc, now); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", workbookContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", workbookName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req fieldUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.UpdateProjectField(r.Context(), core.ProjectField(req.Field), sanitizeInput(req.Value))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req fieldUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.UpdateInstallmentField(r.Context(), id, core.InstallmentField(req.Field), sanitizeInput(req.Value))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	doc, payment, err := s.svc.AddPayment(r.Context(), id, int64(req.Amount), req.Date, sanitizeInput(req.Memo))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResponse{Payment: payment, Document: doc})
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	paymentID, err := pathID(r, "paymentID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.DeletePayment(r.Context(), id, paymentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleAddOption(w http.ResponseWriter, r *http.Request) {
	doc, opt, err := s.svc.AddOption(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, optionResponse{Option: opt, Document: doc})
}

func (s *Server) handleUpdateOption(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req fieldUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.UpdateOptionField(r.Context(), id, core.OptionField(req.Field), sanitizeInput(req.Value))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteOption(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.DeleteOption(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Reset(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
