package http

import (
	"bytes"
	"errors"
	"net/http"

	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/pdf"
)

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	status, err := ParseStatusFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	invoices := s.store.Invoices()
	if status != "" {
		filtered := invoices[:0]
		for _, inv := range invoices {
			if inv.Status == status {
				filtered = append(filtered, inv)
			}
		}
		invoices = filtered
	}
	NewJSONResponse().Body(invoices).Write(w)
}

// handleNewInvoice returns unsaved defaults, prefilled from a customer when
// customer_id is given.
func (s *Server) handleNewInvoice(w http.ResponseWriter, r *http.Request) {
	inv := core.NewInvoice(s.now())
	if id := sanitizeInput(r.URL.Query().Get("customer_id")); id != "" {
		c, ok := s.store.Customer(id)
		if !ok {
			NotFoundError("customer not found").Write(w)
			return
		}
		inv.ApplyCustomer(c)
	}
	NewJSONResponse().Body(inv).Write(w)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.store.Invoice(pathID(r))
	if !ok {
		NotFoundError("invoice not found").Write(w)
		return
	}
	NewJSONResponse().Body(inv).Write(w)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv core.Invoice
	if err := DecodeJSON(w, r, &inv); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if inv.ID == "" {
		inv.ID = core.NewID()
	}
	s.saveInvoice(w, r, inv, http.StatusCreated)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv core.Invoice
	if err := DecodeJSON(w, r, &inv); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	inv.ID = pathID(r)
	s.saveInvoice(w, r, inv, http.StatusOK)
}

// saveInvoice fills defaults, validates and hands the invoice to the store.
// Totals are always derived from the items.
func (s *Server) saveInvoice(w http.ResponseWriter, r *http.Request, inv core.Invoice, status int) {
	if inv.Status == "" {
		inv.Status = core.StatusDraft
	}
	if inv.Date.IsZero() {
		inv.Date = core.DateOf(s.now())
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.Date.AddDays(core.DefaultPaymentTermDays)
	}
	if inv.Items == nil {
		inv.Items = []core.InvoiceItem{}
	}
	for i := range inv.Items {
		if inv.Items[i].ID == "" {
			inv.Items[i].ID = core.NewID()
		}
		inv.Items[i].Description = sanitizeInput(inv.Items[i].Description)
	}
	inv.ClientName = sanitizeInput(inv.ClientName)
	inv.ClientEmail = sanitizeInput(inv.ClientEmail)
	inv.InvoiceNumber = sanitizeInput(inv.InvoiceNumber)
	inv.RoundItems()

	if err := inv.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	saved := s.store.SaveInvoice(r.Context(), inv)
	s.requestLog(r).LogInvoiceSaved(r.Context(),
		saved.ID, saved.InvoiceNumber, string(saved.Status), core.FormatAmount(saved.Total))
	NewJSONResponse().Status(status).Body(saved).Write(w)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	s.store.DeleteInvoice(r.Context(), pathID(r))
	NoContent().Write(w)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	status, err := core.ParseStatus(req.Status)
	if err != nil {
		ValidationError(core.Violations{"status": "invoice_status"}).Write(w)
		return
	}
	inv, err := s.store.SetInvoiceStatus(r.Context(), pathID(r), status)
	switch {
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("invoice not found").Write(w)
	case err != nil:
		ValidationError(err).Write(w)
	default:
		NewJSONResponse().Body(inv).Write(w)
	}
}

func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.store.Invoice(pathID(r))
	if !ok {
		NotFoundError("invoice not found").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := pdf.Render(&buf, inv, s.store.Settings()); err != nil {
		s.requestLog(r).LogError(r.Context(), "Invoice PDF failed", err,
			applog.ComponentPDF, applog.OpRender, applog.NewFields().WithEntity("invoice", inv.ID))
		InternalServerError("could not render invoice").Write(w)
		return
	}

	attachment(w, "application/pdf", pdf.Filename(inv))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleEmailDraft(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.store.Invoice(pathID(r))
	if !ok {
		NotFoundError("invoice not found").Write(w)
		return
	}
	draft := s.assist.EmailDraft(r.Context(), inv, s.store.Settings().BusinessName)
	NewJSONResponse().Body(map[string]string{"draft": draft}).Write(w)
}
