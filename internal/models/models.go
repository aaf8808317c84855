package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID             int64           `json:"id"`
	Email          string          `json:"email"`
	Name           string          `json:"name"`
	AccountBalance decimal.Decimal `json:"account_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Rarity is the drop tier of a catalog product.
type Rarity string

const (
	RarityCommon   Rarity = "common"
	RarityUncommon Rarity = "uncommon"
	RarityRare     Rarity = "rare"
	RarityUltra    Rarity = "ultra"
)

func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityUltra:
		return true
	}
	return false
}

type Product struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Rarity       Rarity          `json:"rarity"`
	BuybackPrice decimal.Decimal `json:"buyback_price"`
	ResaleValue  decimal.Decimal `json:"resale_value"`
	CreatedAt    time.Time       `json:"created_at"`

	// QuantityAvailable is joined in from the inventory table.
	QuantityAvailable int `json:"quantity_available"`
}

const (
	ItemStatusKept = "kept"
	ItemStatusSold = "sold"
)

// InventoryItem is an item owned by a user. Product fields are snapshotted
// at acquisition time; the buyback price credited on sellback is always the
// snapshot, never the current catalog value.
type InventoryItem struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductSKU   string          `json:"product_sku"`
	BuybackPrice decimal.Decimal `json:"buyback_price"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

const (
	TransactionTypeBoxPurchase = "box_purchase"
	TransactionTypeSellback    = "sellback"
	TransactionTypeTopup       = "topup"
)

// BalanceTransaction is an append-only ledger entry. Amount is signed:
// negative for box purchases, positive for sellbacks and top-ups. The sum of
// a user's entries always equals the user's account balance.
type BalanceTransaction struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	StripeSessionID *string         `json:"stripe_session_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

type Order struct {
	ID                    int64            `json:"id"`
	UserID                *int64           `json:"user_id,omitempty"`
	OrderNumber           string           `json:"order_number"`
	Status                string           `json:"status"`
	Subtotal              decimal.Decimal  `json:"subtotal"`
	ShippingFee           decimal.Decimal  `json:"shipping_fee"`
	TotalAmount           decimal.Decimal  `json:"total_amount"`
	StripeSessionID       string           `json:"stripe_session_id"`
	StripePaymentIntentID *string          `json:"stripe_payment_intent_id,omitempty"`
	ShippingAddress       *ShippingAddress `json:"shipping_address,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
	Items                 []OrderItem      `json:"items,omitempty"`
}

type OrderItem struct {
	ID                    int64           `json:"id"`
	OrderID               int64           `json:"order_id"`
	ProductID             int64           `json:"product_id"`
	ProductName           string          `json:"product_name"`
	ProductSKU            string          `json:"product_sku"`
	Rarity                Rarity          `json:"rarity"`
	PriceAtPurchase       decimal.Decimal `json:"price_at_purchase"`
	ResaleValueAtPurchase decimal.Decimal `json:"resale_value_at_purchase"`
	CreatedAt             time.Time       `json:"created_at"`
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}
