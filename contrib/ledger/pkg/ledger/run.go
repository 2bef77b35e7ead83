package ledger

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Router returns the HTTP handler serving the API:
//
//	GET  /api/health
//	POST /api/customers
//	GET  /api/customers/{id}
//	POST /api/invoices                 customer given by business id
//	GET  /api/invoices/{id}            invoice in full, customer as reference
//	GET  /api/invoices/{id}/summary    invoice and customer in one flat object
//	POST /api/admin/read-only
func (a *App) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(a.withRequestID)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/customers", a.handleCreateCustomer).Methods("POST")
	api.HandleFunc("/customers/{id}", a.handleGetCustomer).Methods("GET")

	api.HandleFunc("/invoices", a.handleCreateInvoice).Methods("POST")
	api.HandleFunc("/invoices/{id}", a.handleGetInvoice).Methods("GET")
	api.HandleFunc("/invoices/{id}/summary", a.handleGetInvoiceSummary).Methods("GET")

	api.HandleFunc("/admin/read-only", a.handleSetReadOnly).Methods("POST")

	return router
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.Info().
		Str("addr", addr).
		Stringer("default_mode", a.codec.DefaultMode()).
		Bool("read_only", a.IsReadOnly()).
		Msg("starting ledger server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
