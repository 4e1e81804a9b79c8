package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/core/service"
)

const requestIDHeader = "X-Request-ID"

// Services groups the use cases exposed over HTTP and gRPC.
type Services struct {
	Orders    *service.OrderService
	Inventory *service.InventoryService
	Tickets   *service.TicketService
	Directory *service.DirectoryService
}

type HTTPHandler struct {
	Services
	logger *zap.Logger
}

func NewHTTPHandler(services Services, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{Services: services, logger: logger}
}

// Router registers every route on a new router. Extra handlers such as
// /metrics are mounted by the caller.
func (h *HTTPHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.requestLogger)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	r.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/by-status/{status}", h.ListOrdersByStatus).Methods(http.MethodGet)
	r.HandleFunc("/orders/by-customer/{id:[0-9]+}", h.ListOrdersByCustomer).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id:[0-9]+}", h.GetOrder).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id:[0-9]+}/status", h.SetOrderStatus).Methods(http.MethodPut)

	r.HandleFunc("/products", h.CreateProduct).Methods(http.MethodPost)
	r.HandleFunc("/products/{id:[0-9]+}", h.GetProduct).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}/inventory", h.GetInventory).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}/inventory", h.UpdateInventory).Methods(http.MethodPut)
	r.HandleFunc("/products/{id:[0-9]+}/inventory/history", h.ListHistory).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}/stock", h.GetStock).Methods(http.MethodGet)

	r.HandleFunc("/customers", h.CreateCustomer).Methods(http.MethodPost)
	r.HandleFunc("/customers/{id:[0-9]+}", h.GetCustomer).Methods(http.MethodGet)
	r.HandleFunc("/employees", h.CreateEmployee).Methods(http.MethodPost)
	r.HandleFunc("/employees/{id:[0-9]+}", h.GetEmployee).Methods(http.MethodGet)

	r.HandleFunc("/tickets", h.CreateTicket).Methods(http.MethodPost)
	r.HandleFunc("/tickets", h.ListTickets).Methods(http.MethodGet)
	r.HandleFunc("/tickets/by-status/{status}", h.ListTicketsByStatus).Methods(http.MethodGet)
	r.HandleFunc("/tickets/by-priority/{priority}", h.ListTicketsByPriority).Methods(http.MethodGet)
	r.HandleFunc("/tickets/by-customer/{id:[0-9]+}", h.ListTicketsByCustomer).Methods(http.MethodGet)
	r.HandleFunc("/tickets/{id:[0-9]+}", h.GetTicket).Methods(http.MethodGet)
	r.HandleFunc("/tickets/{id:[0-9]+}/status", h.SetTicketStatus).Methods(http.MethodPut)
	r.HandleFunc("/tickets/{id:[0-9]+}/assign/{employee:[0-9]+}", h.AssignTicket).Methods(http.MethodPut)
	r.HandleFunc("/tickets/{id:[0-9]+}/unassign", h.UnassignTicket).Methods(http.MethodPut)

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		h.logger.Debug("http request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := httpStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, Ack{Success: false, Message: message})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", domain.ErrInvalidArgument)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q is not a valid id: %w", name, mux.Vars(r)[name], domain.ErrInvalidArgument)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
