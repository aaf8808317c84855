package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pompom/go-box-store/internal/config"
	"github.com/pompom/go-box-store/internal/middleware"
	"github.com/pompom/go-box-store/internal/payments"
	"github.com/pompom/go-box-store/internal/rarity"
	"github.com/pompom/go-box-store/internal/store"
	"github.com/pompom/go-box-store/pkg/apierror"
	"github.com/pompom/go-box-store/pkg/response"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type CheckoutHandler struct {
	db      *sql.DB
	picker  *rarity.Picker
	stripe  payments.SessionCreator
	boxCfg  config.BoxConfig
	baseURL string
	logger  zerolog.Logger
}

func NewCheckoutHandler(db *sql.DB, picker *rarity.Picker, stripe payments.SessionCreator, boxCfg config.BoxConfig, baseURL string, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		db:      db,
		picker:  picker,
		stripe:  stripe,
		boxCfg:  boxCfg,
		baseURL: baseURL,
		logger:  logger,
	}
}

type checkoutRequest struct {
	Quantity int `json:"quantity"`
}

// Checkout handles POST /checkout: reserve stock for N boxes, record a
// pending order and hand back the payment-session URL. The order is settled
// by the payment webhook, not here.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	req := checkoutRequest{Quantity: 1}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("Invalid request body"))
		return
	}
	if req.Quantity < 1 || req.Quantity > 10 {
		response.Error(w, apierror.BadRequest("Quantity must be between 1 and 10"))
		return
	}

	reserved, err := store.ReserveBoxes(r.Context(), h.db, h.picker, req.Quantity)
	if err != nil {
		response.Error(w, mapStoreError(err))
		return
	}

	boxCents := h.boxCfg.Price.Mul(decimal.NewFromInt(100)).IntPart()
	shippingCents := h.boxCfg.ShippingFee.Mul(decimal.NewFromInt(100)).IntPart()

	session, err := h.stripe.CreateCheckoutSession(r.Context(), payments.CheckoutSessionParams{
		LineItems: []payments.LineItem{
			{
				Name:        "PomPom Mystery Box",
				Description: "One curated mystery item from top brands",
				UnitAmount:  boxCents,
				Quantity:    req.Quantity,
			},
			{
				Name:        "Shipping",
				Description: "USPS First Class shipping",
				UnitAmount:  shippingCents,
				Quantity:    1,
			},
		},
		SuccessURL: h.baseURL + "/order/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.baseURL,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Create checkout session failed")
		response.Error(w, apierror.InternalError(""))
		return
	}

	var userID *int64
	if id, ok := middleware.GetUserID(r); ok {
		userID = &id
	}

	order, err := store.CreateOrder(r.Context(), h.db, store.CreateOrderRequest{
		UserID:          userID,
		StripeSessionID: session.ID,
		BoxPrice:        h.boxCfg.Price,
		ShippingFee:     h.boxCfg.ShippingFee,
		Products:        reserved,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", session.ID).Msg("Create order failed")
		response.Error(w, apierror.InternalError(""))
		return
	}

	h.logger.Info().
		Int64("order_id", order.ID).
		Str("session_id", session.ID).
		Int("quantity", req.Quantity).
		Msg("Checkout session created")

	response.OK(w, map[string]interface{}{
		"url":        session.URL,
		"session_id": session.ID,
	})
}

type topupRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TopupCreateSession handles POST /topup/create-session. Rate limiting runs
// in middleware before this; amount bounds are enforced here, before any
// collaborator is touched.
func (h *CheckoutHandler) TopupCreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req topupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("Invalid request body"))
		return
	}
	if req.Amount.LessThan(h.boxCfg.TopupMin) || req.Amount.GreaterThan(h.boxCfg.TopupMax) {
		response.Error(w, apierror.BadRequest(fmt.Sprintf(
			"Amount must be between $%s and $%s",
			h.boxCfg.TopupMin.StringFixed(0), h.boxCfg.TopupMax.StringFixed(0))))
		return
	}

	user, err := store.GetUser(r.Context(), h.db, userID)
	if err != nil {
		response.Error(w, mapStoreError(err))
		return
	}

	amountCents := req.Amount.Mul(decimal.NewFromInt(100)).IntPart()

	session, err := h.stripe.CreateCheckoutSession(r.Context(), payments.CheckoutSessionParams{
		LineItems: []payments.LineItem{
			{
				Name:        "Account Balance Top-Up",
				Description: fmt.Sprintf("Add $%s to your PomPom account", req.Amount.StringFixed(2)),
				UnitAmount:  amountCents,
				Quantity:    1,
			},
		},
		SuccessURL: h.baseURL + "/topup/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.baseURL + "/topup",
		Metadata: map[string]string{
			"type":    "topup",
			"user_id": fmt.Sprintf("%d", userID),
			"amount":  req.Amount.StringFixed(2),
		},
		CustomerEmail: user.Email,
	})
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("Create top-up session failed")
		response.Error(w, apierror.InternalError(""))
		return
	}

	response.OK(w, map[string]interface{}{
		"url":        session.URL,
		"session_id": session.ID,
	})
}
