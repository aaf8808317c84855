package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/internal/models"
	"github.com/pompom/go-box-store/internal/payments"
	"github.com/pompom/go-box-store/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	db        *sql.DB
	secret    string
	tolerance time.Duration
	logger    zerolog.Logger
}

func NewWebhookHandler(db *sql.DB, secret string, tolerance time.Duration, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{db: db, secret: secret, tolerance: tolerance, logger: logger}
}

// HandleStripe verifies the provider signature before touching any state,
// then dispatches by event type. A processing failure returns 500 so the
// provider redelivers; duplicate deliveries are absorbed by the
// idempotency guard in CreditBalance.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := payments.VerifySignature(body, signature, h.secret, h.tolerance, time.Now()); err != nil {
		h.logger.Warn().Err(err).Msg("Webhook signature verification failed")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event payments.Event
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case payments.EventCheckoutSessionCompleted:
		var session payments.WebhookSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			http.Error(w, "invalid session payload", http.StatusBadRequest)
			return
		}

		if session.Metadata["type"] == "topup" {
			err = h.handleTopupCompleted(r, &session)
		} else {
			err = h.handleOrderCompleted(r, &session)
		}

	case payments.EventPaymentIntentFailed:
		var intent payments.WebhookPaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			http.Error(w, "invalid payment intent payload", http.StatusBadRequest)
			return
		}
		err = h.handlePaymentFailed(r, &intent)

	case payments.EventPaymentIntentSucceeded:
		// Settled via checkout.session.completed; nothing to do here.

	default:
		h.logger.Debug().Str("type", event.Type).Msg("Unhandled webhook event type")
	}

	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Str("event_id", event.ID).Msg("Webhook handler error")
		http.Error(w, "webhook handler failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"received":true}`))
}

func (h *WebhookHandler) handleTopupCompleted(r *http.Request, session *payments.WebhookSession) error {
	userID, err := strconv.ParseInt(session.Metadata["user_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("top-up session %s has invalid user_id metadata: %w", session.ID, err)
	}

	amount, err := decimal.NewFromString(session.Metadata["amount"])
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("top-up session %s has invalid amount metadata", session.ID)
	}

	result, err := store.CreditBalance(r.Context(), h.db, userID, amount, session.ID)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}

	if result.Duplicate {
		h.logger.Info().Str("session_id", session.ID).Msg("Top-up already processed, skipping")
		return nil
	}

	h.logger.Info().
		Int64("user_id", userID).
		Str("amount", amount.String()).
		Str("session_id", session.ID).
		Msg("Top-up completed")
	return nil
}

func (h *WebhookHandler) handleOrderCompleted(r *http.Request, session *payments.WebhookSession) error {
	var addr *models.ShippingAddress
	if session.ShippingDetails != nil {
		addr = &models.ShippingAddress{
			Name:       session.ShippingDetails.Name,
			Line1:      session.ShippingDetails.Address.Line1,
			Line2:      session.ShippingDetails.Address.Line2,
			City:       session.ShippingDetails.Address.City,
			State:      session.ShippingDetails.Address.State,
			PostalCode: session.ShippingDetails.Address.PostalCode,
			Country:    session.ShippingDetails.Address.Country,
		}
	}

	order, err := store.MarkOrderPaid(r.Context(), h.db, session.ID, session.PaymentIntent, addr)
	if errors.Is(err, database.ErrOrderNotFound) {
		// Unknown or already-settled session: redelivery, nothing to do.
		h.logger.Info().Str("session_id", session.ID).Msg("No pending order for session, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}

	h.logger.Info().Int64("order_id", order.ID).Msg("Order marked as paid")
	return nil
}

func (h *WebhookHandler) handlePaymentFailed(r *http.Request, intent *payments.WebhookPaymentIntent) error {
	err := store.CancelOrderByPaymentIntent(r.Context(), h.db, intent.ID)
	if errors.Is(err, database.ErrOrderNotFound) {
		h.logger.Info().Str("payment_intent", intent.ID).Msg("No pending order for payment intent, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	h.logger.Info().Str("payment_intent", intent.ID).Msg("Order cancelled after payment failure")
	return nil
}
