package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/idgen"
	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/pkg/store"
)

const maxBodyBytes = 1 << 20

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, r, http.StatusOK, map[string]any{
		"status":      "healthy",
		"defaultMode": a.codec.DefaultMode(),
		"readOnly":    a.IsReadOnly(),
		"time":        time.Now().Unix(),
	})
}

// handleCreateCustomer stores a customer. A missing business id is minted.
//
//	POST /api/customers
//	{"name": "Ada", "email": "ada@example.com"}
func (a *App) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var customer Customer
	if !a.decodeBody(w, r, &customer) {
		return
	}
	if customer.Name == "" {
		a.respondError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if !assignID(a, w, r, &customer.BusinessID) {
		return
	}
	if !a.save(w, r, &customer) {
		return
	}
	a.respondJSON(w, r, http.StatusCreated, customerResponse{Customer: &customer})
}

func (a *App) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseBusinessID[Customer](mux.Vars(r)["id"])
	if err != nil {
		a.respondError(w, r, http.StatusBadRequest, "invalid customer id")
		return
	}
	customer, err := a.loadCustomer(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, r, err)
		return
	}
	a.respondJSON(w, r, http.StatusOK, customerResponse{Customer: customer})
}

// handleCreateInvoice stores an invoice for an existing customer, which the
// body names by business id only.
//
//	POST /api/invoices
//	{"content": "Hello World", "amountCents": 1200, "customer": "77"}
//
// An unknown customer is answered with 422.
func (a *App) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var invoice Invoice
	if !a.decodeBody(w, r, &invoice) {
		return
	}
	if invoice.Customer == nil {
		a.respondError(w, r, http.StatusBadRequest, "customer is required")
		return
	}
	invoice.CustomerID = invoice.Customer.BusinessID
	if !assignID(a, w, r, &invoice.BusinessID) {
		return
	}
	if !a.save(w, r, &invoice) {
		return
	}
	a.respondJSON(w, r, http.StatusCreated, invoiceResponse{Invoice: &invoice})
}

func (a *App) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, ok := a.invoiceFromPath(w, r)
	if !ok {
		return
	}
	a.respondJSON(w, r, http.StatusOK, invoiceResponse{Invoice: invoice})
}

func (a *App) handleGetInvoiceSummary(w http.ResponseWriter, r *http.Request) {
	invoice, ok := a.invoiceFromPath(w, r)
	if !ok {
		return
	}
	a.respondJSON(w, r, http.StatusOK, invoiceSummary{Invoice: invoice, Customer: invoice.Customer})
}

func (a *App) handleSetReadOnly(w http.ResponseWriter, r *http.Request) {
	var req readOnlyRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	a.SetReadOnly(req.ReadOnly)
	a.respondJSON(w, r, http.StatusOK, req)
}

func (a *App) invoiceFromPath(w http.ResponseWriter, r *http.Request) (*Invoice, bool) {
	id, err := models.ParseBusinessID[Invoice](mux.Vars(r)["id"])
	if err != nil {
		a.respondError(w, r, http.StatusBadRequest, "invalid invoice id")
		return nil, false
	}
	invoice, err := a.loadInvoice(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, r, err)
		return nil, false
	}
	return invoice, true
}

// loadInvoice loads an invoice and hydrates its customer from CustomerID.
func (a *App) loadInvoice(ctx context.Context, id models.BusinessID[Invoice]) (*Invoice, error) {
	e, err := a.store.GetByBusinessID(ctx, id.ID(), typeOf[Invoice]())
	if err != nil {
		return nil, err
	}
	invoice, ok := e.(*Invoice)
	if !ok {
		return nil, errUnexpectedEntity(e)
	}
	if invoice.Customer == nil && invoice.CustomerID != 0 {
		customer, err := a.loadCustomer(ctx, invoice.CustomerID)
		if err != nil {
			return nil, err
		}
		invoice.Customer = customer
	}
	return invoice, nil
}

func (a *App) loadCustomer(ctx context.Context, id models.BusinessID[Customer]) (*Customer, error) {
	e, err := a.store.GetByBusinessID(ctx, id.ID(), typeOf[Customer]())
	if err != nil {
		return nil, err
	}
	customer, ok := e.(*Customer)
	if !ok {
		return nil, errUnexpectedEntity(e)
	}
	return customer, nil
}

// assignID mints an id when the client sent none and rejects ids in use.
func assignID[T any](a *App, w http.ResponseWriter, r *http.Request, id *models.BusinessID[T]) bool {
	if *id == 0 {
		*id = idgen.New[T](a.ids)
		return true
	}
	_, err := a.store.GetByBusinessID(r.Context(), id.ID(), typeOf[T]())
	switch {
	case err == nil:
		err = fmt.Errorf("%w: %s", errDuplicate, *id)
	case errors.Is(err, store.ErrNotFound):
		return true
	}
	a.respondStoreError(w, r, err)
	return false
}

func (a *App) save(w http.ResponseWriter, r *http.Request, e models.Persistable) bool {
	if err := a.store.Save(r.Context(), e); err != nil {
		a.respondStoreError(w, r, err)
		return false
	}
	requestLogger(r).Info().Stringer("key", models.KeyOf(e)).Msg("entity created")
	return true
}

// decodeBody reads the request body through the entity-aware codec. References
// to missing entities answer 422, anything else malformed 400.
func (a *App) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		a.respondError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	err = a.body.UnmarshalContext(r.Context(), data, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, store.ErrNotFound):
		a.respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrAmbiguousResult), errors.Is(err, constants.ErrNoLoader):
		requestLogger(r).Error().Err(err).Msg("failed to resolve reference")
		a.respondError(w, r, http.StatusInternalServerError, "failed to resolve reference")
	default:
		a.respondError(w, r, http.StatusBadRequest, err.Error())
	}
	return false
}

func (a *App) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.respondError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, errDuplicate):
		a.respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrReadOnly):
		a.respondError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		requestLogger(r).Error().Err(err).Msg("store operation failed")
		a.respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// respondJSON writes payload through the codec, so entities follow their
// reference annotations.
func (a *App) respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	response, err := a.codec.MarshalContext(r.Context(), payload)
	if err != nil {
		requestLogger(r).Error().Err(err).Msg("failed to encode response")
		status = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func (a *App) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	a.respondJSON(w, r, status, map[string]string{"error": message})
}
