package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finance_tracker/internal/handlers"
	auth "finance_tracker/internal/transport/auth"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
}

// NewRouter wires the routes. Everything under /api goes through the token
// middleware.
func NewRouter(h *handlers.Handlers, tokens auth.TokenRepo, logger *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(cors)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.TokenMiddleware(tokens, logger))

	api.HandleFunc("/payments", h.ListPayments).Methods(http.MethodGet)
	api.HandleFunc("/payments", h.CreatePayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}", h.GetPayment).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}", h.EditPayment).Methods(http.MethodPatch)
	api.HandleFunc("/payments/{id}", h.DeletePayment).Methods(http.MethodDelete)
	api.HandleFunc("/payments/{id}/history", h.PaymentHistory).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}/settle", h.SettlePayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/installments", h.ScheduleInstallments).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/exports", h.Export).Methods(http.MethodPost)
	api.HandleFunc("/imports/upload", h.Upload).Methods(http.MethodPost)
	api.HandleFunc("/imports", h.Import).Methods(http.MethodPost)
	api.HandleFunc("/imports/{id}", h.ImportStatus).Methods(http.MethodGet)

	// preflight for any /api route
	api.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}

func NewServer(port string, h *handlers.Handlers, tokens auth.TokenRepo, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      NewRouter(h, tokens, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[SERVER] listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Printf("[SERVER] shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
