package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	inventory "github.com/orderflow/orderflow/internal/inventory/domain"
	"github.com/orderflow/orderflow/internal/order/application"
	"github.com/orderflow/orderflow/internal/order/domain"
	productdomain "github.com/orderflow/orderflow/internal/product/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.createOrder)
	r.Get("/{id}", h.getOrder)
	r.Patch("/{id}/status", h.updateStatus)
	return r
}

type createOrderReq struct {
	Items []application.Line `json:"items"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

type orderItemResp struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
}

type orderResp struct {
	ID        int64           `json:"id"`
	Status    domain.Status   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []orderItemResp `json:"items"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.service.CreateOrder(ctx, req.Items)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "order id must be a positive integer")
		return
	}

	o, err := h.service.GetOrder(ctx, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "order id must be a positive integer")
		return
	}

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target := domain.Status(req.Status)
	if !target.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status: "+req.Status)
		return
	}

	o, err := h.service.UpdateStatus(ctx, id, target)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

// writeDomainError maps core errors to HTTP statuses: validation and
// domain rejections are 400/404, lock timeouts are 503 so clients retry.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		invalidQty   *domain.ErrInvalidQuantity
		transition   *domain.ErrInvalidTransition
		insufficient *inventory.ErrInsufficientStock
		orderMissing *domain.ErrNotFound
		prodMissing  *productdomain.ErrNotFound
	)
	switch {
	case errors.Is(err, domain.ErrEmptyOrder),
		errors.As(err, &invalidQty),
		errors.As(err, &transition),
		errors.As(err, &insufficient):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &orderMissing), errors.As(err, &prodMissing):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("order request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toOrderResp(o domain.Order) orderResp {
	items := make([]orderItemResp, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResp{
			ID:           item.ID,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			PriceAtOrder: item.PriceAtOrder,
		})
	}
	return orderResp{ID: o.ID, Status: o.Status, CreatedAt: o.CreatedAt, Items: items}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
