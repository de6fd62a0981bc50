package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	logger   apt.Logger
	config   *apt.Config
	tlm      *telemetry.HTTP
	store    *Store
	receipts ReceiptRepo
}

type HandlerDeps struct {
	Store    *Store
	Receipts ReceiptRepo
}

func NewHandler(hd HandlerDeps, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		logger:   logger,
		config:   config,
		tlm:      telemetry.NewHTTP(),
		store:    hd.Store,
		receipts: hd.Receipts,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/join", h.JoinTable)
		r.Get("/current", h.GetState)
		r.Post("/leave", h.LeaveTable)
		r.Post("/close", h.CloseTable)
	})

	r.Route("/cart/items", func(r chi.Router) {
		r.Post("/", h.AddCartItem)
		r.Put("/{id}", h.UpdateCartItem)
		r.Delete("/{id}", h.RemoveCartItem)
	})

	r.Post("/orders/submit", h.SubmitOrder)
	r.Get("/payments/shares", h.PaymentShares)

	r.Route("/receipts", func(r chi.Router) {
		r.Get("/{id}", h.GetReceipt)
		r.Get("/", h.ListReceipts)
	})
}

func (h *Handler) JoinTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.JoinTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var req JoinTableRequest
	if !h.decodePayload(w, r, &req, log) {
		return
	}

	if errs := ValidateJoinTable(ctx, req); len(errs) > 0 {
		log.Debug("invalid join table request", "errors", errs)
		apt.RespondError(w, http.StatusBadRequest, errs[0])
		return
	}

	diner, err := h.store.JoinTable(ctx, JoinTableInput{
		TableNumber:  req.TableNumber,
		RestaurantID: req.RestaurantID,
		Name:         req.Name,
		Auth:         req.Auth,
	})
	if err != nil {
		h.respondStoreError(w, log, "cannot join table", err)
		return
	}

	log.Info("diner joined table", "table_number", req.TableNumber, "diner", diner.Name)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, diner)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetState")
	defer finish()

	apt.RespondSuccess(w, stateResponse(h.store.State()))
}

func (h *Handler) LeaveTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.LeaveTable")
	defer finish()

	log := h.log(r)

	if err := h.store.LeaveTable(r.Context()); err != nil {
		h.respondStoreError(w, log, "cannot leave table", err)
		return
	}

	apt.RespondSuccess(w, stateResponse(h.store.State()))
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddCartItem")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if h.store.State().Session == nil {
		apt.RespondError(w, http.StatusNotFound, "No active table session")
		return
	}

	var req AddCartItemRequest
	if !h.decodePayload(w, r, &req, log) {
		return
	}

	if errs := ValidateAddCartItem(ctx, req); len(errs) > 0 {
		log.Debug("invalid add cart item request", "errors", errs)
		apt.RespondError(w, http.StatusBadRequest, errs[0])
		return
	}

	err := h.store.AddToCart(ctx, AddToCartInput{
		ProductID: req.ProductID,
		Name:      req.Name,
		Price:     req.Price,
		Image:     req.Image,
		Quantity:  req.Quantity,
		Notes:     req.Notes,
	})
	if err != nil {
		h.respondStoreError(w, log, "cannot add to cart", err)
		return
	}

	apt.RespondSuccess(w, stateResponse(h.store.State()))
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateCartItem")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if !h.decodePayload(w, r, &req, log) {
		return
	}

	if err := h.store.UpdateQuantity(ctx, id, req.Quantity); err != nil {
		h.respondStoreError(w, log, "cannot update cart item", err)
		return
	}

	apt.RespondSuccess(w, stateResponse(h.store.State()))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveCartItem")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	if err := h.store.RemoveItem(r.Context(), id); err != nil {
		h.respondStoreError(w, log, "cannot remove cart item", err)
		return
	}

	apt.RespondSuccess(w, stateResponse(h.store.State()))
}

func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitOrder")
	defer finish()

	log := h.log(r)

	record, err := h.store.SubmitOrder(r.Context())
	if err != nil {
		h.respondStoreError(w, log, "cannot submit order", err)
		return
	}

	links := apt.RESTfulLinksFor(record)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, record, links...)
}

func (h *Handler) PaymentShares(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PaymentShares")
	defer finish()

	method := SplitMethod(r.URL.Query().Get("method"))
	if method == "" {
		method = SplitEqual
	}
	if !method.Valid() {
		apt.RespondError(w, http.StatusBadRequest, "Invalid split method")
		return
	}

	state := h.store.State()
	if state.Session == nil {
		apt.RespondError(w, http.StatusNotFound, "No active table session")
		return
	}

	shares := CalculatePaymentShares(state.Session.Diners, state.Orders, method)
	apt.RespondSuccess(w, map[string]interface{}{
		"method": string(method),
		"total":  OrdersTotal(state.Orders),
		"shares": shares,
	})
}

func (h *Handler) CloseTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CloseTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var req CloseTableRequest
	if !h.decodePayload(w, r, &req, log) {
		return
	}

	if errs := ValidateCloseTable(ctx, req); len(errs) > 0 {
		log.Debug("invalid close table request", "errors", errs)
		apt.RespondError(w, http.StatusBadRequest, errs[0])
		return
	}

	method := SplitMethod(req.SplitMethod)
	if method == "" {
		method = SplitEqual
	}

	receipt, err := h.store.CloseTable(ctx, method)
	if err != nil {
		h.respondStoreError(w, log, "cannot close table", err)
		return
	}

	log.Info("table closed", "table_number", receipt.TableNumber, "receipt_id", receipt.ID.String())
	links := apt.RESTfulLinksFor(receipt)
	apt.RespondSuccess(w, receipt, links...)
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetReceipt")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	receipt, err := h.receipts.Get(ctx, id)
	if err != nil {
		log.Error("error loading receipt", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	if receipt == nil {
		apt.RespondError(w, http.StatusNotFound, "Receipt not found")
		return
	}

	links := apt.RESTfulLinksFor(receipt)
	apt.RespondSuccess(w, receipt, links...)
}

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListReceipts")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	tableNumber := r.URL.Query().Get("table_number")
	if tableNumber == "" {
		apt.RespondError(w, http.StatusBadRequest, "table_number is required")
		return
	}

	receipts, err := h.receipts.ListByTable(ctx, tableNumber)
	if err != nil {
		log.Error("cannot list receipts", "error", err, "table_number", tableNumber)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list receipts")
		return
	}

	apt.RespondSuccess(w, receipts)
}

func (h *Handler) respondStoreError(w http.ResponseWriter, log apt.Logger, msg string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		apt.RespondError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, ErrNoSession):
		apt.RespondError(w, http.StatusNotFound, "No active table session")
	case errors.Is(err, ErrSessionExpired):
		apt.RespondError(w, http.StatusGone, "Table session expired, please rejoin")
	case errors.Is(err, ErrSubmissionInFlight):
		apt.RespondError(w, http.StatusConflict, "Another submission is in flight")
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrCartNotEmpty),
		errors.Is(err, ErrNoRounds):
		apt.RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Error(msg, "error", err)
		apt.RespondError(w, http.StatusBadGateway, msg)
	}
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log apt.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		log.Debug("missing id parameter")
		apt.RespondError(w, http.StatusBadRequest, "Missing id parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Debug("invalid id parameter", "id", idStr)
		apt.RespondError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}

	return id, true
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request, out interface{}, log apt.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}

	return true
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", r.Context().Value("request_id"))
}
