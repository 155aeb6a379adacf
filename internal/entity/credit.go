package entity

import "time"

// CreditTransactionType is the business reason for a ledger entry.
type CreditTransactionType string

const (
	CreditTxPurchase   CreditTransactionType = "purchase"
	CreditTxGeneration CreditTransactionType = "generation"
	CreditTxReferral   CreditTransactionType = "referral"
	CreditTxShare      CreditTransactionType = "share"
	CreditTxSignup     CreditTransactionType = "signup"
)

// DbCreditPack is a purchasable bundle of credits, keyed by the payment
// processor's product id.
type DbCreditPack struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ProductID  string    `gorm:"column:product_id;type:varchar(255);uniqueIndex;not null" json:"product_id"`
	Name       string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Credits    int       `gorm:"column:credits;not null" json:"credits"`
	PriceCents int       `gorm:"column:price_cents;not null" json:"price_cents"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

// TableName overrides the table name for DbCreditPack.
func (DbCreditPack) TableName() string {
	return "credit_packs"
}

// DbCreditTransaction is one row of the append-only credit ledger. Rows are
// never updated or deleted; Amount is positive for grants and negative for
// spends, and BalanceAfter snapshots the balance the row produced.
type DbCreditTransaction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID       uint                  `gorm:"column:user_id;index;not null" json:"user_id"`
	Amount       int                   `gorm:"column:amount;not null" json:"amount"`
	Type         CreditTransactionType `gorm:"column:type;type:varchar(32);index;not null" json:"type"`
	ReferenceID  string                `gorm:"column:reference_id;type:varchar(255)" json:"reference_id"`
	BalanceAfter int                   `gorm:"column:balance_after;not null" json:"balance_after"`
}

// TableName overrides the table name for DbCreditTransaction.
func (DbCreditTransaction) TableName() string {
	return "credit_transactions"
}

// DbPurchase records one processed payment notification. SaleID is the
// processor's unique sale identifier and is the idempotency key for the
// payment webhook.
type DbPurchase struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SaleID       string  `gorm:"column:sale_id;type:varchar(255);uniqueIndex;not null" json:"sale_id"`
	UserID       uint    `gorm:"column:user_id;index;not null" json:"user_id"`
	CreditPackID uint    `gorm:"column:credit_pack_id;not null" json:"credit_pack_id"`
	Credits      int     `gorm:"column:credits;not null" json:"credits"`
	RawPayload   JSONMap `gorm:"column:raw_payload;type:json" json:"-"`
}

// TableName overrides the table name for DbPurchase.
func (DbPurchase) TableName() string {
	return "purchases"
}
