package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/pompom/go-box-store/internal/middleware"
	"github.com/pompom/go-box-store/internal/store"
	"github.com/pompom/go-box-store/pkg/apierror"
	"github.com/pompom/go-box-store/pkg/response"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type BoxHandler struct {
	db     *sql.DB
	cfg    store.BoxConfig
	logger zerolog.Logger
}

func NewBoxHandler(db *sql.DB, cfg store.BoxConfig, logger zerolog.Logger) *BoxHandler {
	return &BoxHandler{db: db, cfg: cfg, logger: logger}
}

type boxProductResponse struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Rarity       string          `json:"rarity"`
	BuybackPrice decimal.Decimal `json:"buyback_price"`
}

type boxOpenResponse struct {
	Product         boxProductResponse `json:"product"`
	InventoryItemID int64              `json:"inventory_item_id"`
	NewBalance      decimal.Decimal    `json:"new_balance"`
}

// Open handles POST /box/open. The revealed item only ever reaches the
// client once the whole transaction has committed; a failed open reveals
// nothing.
func (h *BoxHandler) Open(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	result, err := store.OpenBox(r.Context(), h.db, h.cfg, userID)
	if err != nil {
		apiErr := mapStoreError(err)
		if apiErr.StatusCode == http.StatusInternalServerError {
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("Box open failed")
		}
		response.Error(w, apiErr)
		return
	}

	h.logger.Info().
		Int64("user_id", userID).
		Int64("product_id", result.Product.ID).
		Str("rarity", string(result.Product.Rarity)).
		Str("new_balance", result.NewBalance.String()).
		Msg("Box opened")

	response.OK(w, boxOpenResponse{
		Product: boxProductResponse{
			ID:           result.Product.ID,
			Name:         result.Product.Name,
			SKU:          result.Product.SKU,
			Rarity:       string(result.Product.Rarity),
			BuybackPrice: result.BuybackPrice,
		},
		InventoryItemID: result.InventoryItemID,
		NewBalance:      result.NewBalance,
	})
}

type sellBackRequest struct {
	InventoryItemID int64           `json:"inventory_item_id"`
	BuybackPrice    decimal.Decimal `json:"buyback_price"`
}

// SellBack handles POST /box/sellback. The buyback_price in the body is
// display state from the client; the credit always uses the price recorded
// on the item, so the amount is never attacker-controlled.
func (h *BoxHandler) SellBack(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req sellBackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("Invalid request body"))
		return
	}
	if req.InventoryItemID <= 0 {
		response.Error(w, apierror.BadRequest("inventory_item_id is required"))
		return
	}

	result, err := store.SellBack(r.Context(), h.db, userID, req.InventoryItemID)
	if err != nil {
		apiErr := mapStoreError(err)
		if apiErr.StatusCode == http.StatusInternalServerError {
			h.logger.Error().Err(err).
				Int64("user_id", userID).
				Int64("item_id", req.InventoryItemID).
				Msg("Sellback failed")
		}
		response.Error(w, apiErr)
		return
	}

	response.OK(w, map[string]interface{}{
		"new_balance": result.NewBalance,
	})
}
