package http

import (
	"bytes"
	"net/http"
	"strings"

	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/report"
	"invoicer/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type dashboardResponse struct {
	Stats  report.Stats         `json:"stats"`
	Trend  []report.MonthAmount `json:"trend"`
	Recent []core.Invoice       `json:"recent"`
	Aging  []report.AgingBucket `json:"aging"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	invoices := s.store.Invoices()
	NewJSONResponse().Body(dashboardResponse{
		Stats:  report.Dashboard(invoices),
		Trend:  report.MonthlyTrend(invoices, s.now()),
		Recent: report.Recent(invoices, report.RecentLimit),
		Aging:  report.Aging(invoices, s.now()),
	}).Write(w)
}

func (s *Server) rangeReport(w http.ResponseWriter, r *http.Request) (report.RangeReport, bool) {
	start, end, err := ParseDateRange(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return report.RangeReport{}, false
	}
	return report.DateRange(s.store.Invoices(), start, end), true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.rangeReport(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(rep).Write(w)
}

func (s *Server) handleReportXLSX(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.rangeReport(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, rep); err != nil {
		s.requestLog(r).LogError(r.Context(), "Report export failed", err,
			applog.ComponentHTTP, applog.OpExport, nil)
		InternalServerError("could not export report").Write(w)
		return
	}

	attachment(w, xlsxContentType, report.XLSXFilename(rep))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type suggestRequest struct {
	Description string `json:"description"`
}

func (s *Server) handleSuggestItems(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	desc := sanitizeInput(req.Description)
	if strings.TrimSpace(desc) == "" {
		ValidationError(core.Violations{"description": "required"}).Write(w)
		return
	}
	items := s.assist.SuggestItems(r.Context(), s.store.Settings().BusinessName, desc)
	NewJSONResponse().Body(map[string]any{"items": items}).Write(w)
}

// failureLister is implemented by notifiers that keep recent failures.
type failureLister interface {
	Recent() []store.Failure
}

type failureClearer interface {
	Clear()
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	failures := []store.Failure{}
	if l, ok := s.store.Notifier().(failureLister); ok {
		failures = l.Recent()
	}
	NewJSONResponse().Body(map[string]any{"failures": failures}).Write(w)
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.store.Notifier().(failureClearer); ok {
		c.Clear()
	}
	NoContent().Write(w)
}
