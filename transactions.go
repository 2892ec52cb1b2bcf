package finance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/shopspring/decimal"
)

// TxType is a typed string for identifying transaction kinds.
type TxType string

// Transaction types. The string values are the persisted form.
const (
	Income                 TxType = "income"
	Expense                TxType = "expense"
	InternalTransfer       TxType = "internalTransfer"
	DepositTopUp           TxType = "depositTopUp"
	DepositWithdrawal      TxType = "depositWithdrawal"
	DepositInterestAccrual TxType = "depositInterestAccrual"
)

// ParseTxType parses the persisted form of a transaction type.
func ParseTxType(s string) (TxType, error) {
	switch t := TxType(s); t {
	case Income, Expense, InternalTransfer, DepositTopUp, DepositWithdrawal, DepositInterestAccrual:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// IsInflow reports whether the type credits the owning account.
func (t TxType) IsInflow() bool {
	return t == Income || t == DepositTopUp || t == DepositInterestAccrual
}

// IsOutflow reports whether the type debits the owning account.
func (t TxType) IsOutflow() bool {
	return t == Expense || t == DepositWithdrawal
}

// Transaction is a single ledger entry.
//
// Amount is always a positive magnitude expressed in Currency; the sign of the
// effect on balances comes from Type.
type Transaction struct {
	ID          string          `json:"id"`
	Date        date.Date       `json:"date" validate:"required"`
	Time        string          `json:"time,omitempty"` // optional "15:04"
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency    string          `json:"currency" validate:"required"`
	// ConvertedAmount is Amount expressed in the owning account's currency,
	// resolved once when the transaction is recorded.
	ConvertedAmount *decimal.Decimal `json:"convertedAmount,omitempty"`
	// TargetConvertedAmount is Amount expressed in the target account's
	// currency (transfers only).
	TargetConvertedAmount *decimal.Decimal `json:"targetConvertedAmount,omitempty"`

	Type            TxType `json:"type" validate:"required"`
	Category        string `json:"category,omitempty"`
	Subcategory     string `json:"subcategory,omitempty"`
	AccountID       string `json:"accountId,omitempty"`
	TargetAccountID string `json:"targetAccountId,omitempty"`
	SeriesID        string `json:"recurringSeriesId,omitempty"`
	OccurrenceID    string `json:"recurringOccurrenceId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// MarshalJSON writes the transaction with a stable key order and without empty optional fields.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", t.ID)
	w.Append("date", t.Date)
	w.Optional("time", t.Time)
	w.Optional("description", t.Description)
	w.Append("amount", t.Amount)
	w.Append("currency", t.Currency)
	w.Optional("convertedAmount", t.ConvertedAmount)
	w.Optional("targetConvertedAmount", t.TargetConvertedAmount)
	w.Append("type", t.Type)
	w.Optional("category", t.Category)
	w.Optional("subcategory", t.Subcategory)
	w.Optional("accountId", t.AccountID)
	w.Optional("targetAccountId", t.TargetAccountID)
	w.Optional("recurringSeriesId", t.SeriesID)
	w.Optional("recurringOccurrenceId", t.OccurrenceID)
	w.Optional("createdAt", t.CreatedAt)
	return w.MarshalJSON()
}

// UnmarshalJSON decodes a transaction and checks its type.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if _, err := ParseTxType(string(v.Type)); err != nil {
		return err
	}
	*t = Transaction(v)
	return nil
}

// Money returns the recorded amount with its currency.
func (t Transaction) Money() Money { return M(t.Amount, t.Currency) }

// IsTransfer reports whether the transaction moves money between two accounts.
func (t Transaction) IsTransfer() bool { return t.Type == InternalTransfer }

// Touches reports whether the transaction affects the given account.
func (t Transaction) Touches(accountID string) bool {
	return accountID != "" && (t.AccountID == accountID || t.TargetAccountID == accountID)
}

// before is the ledger order: by date, then creation time, then id.
func (t Transaction) before(o Transaction) bool {
	if c := t.Date.Compare(o.Date); c != 0 {
		return c < 0
	}
	if !t.CreatedAt.Equal(o.CreatedAt) {
		return t.CreatedAt.Before(o.CreatedAt)
	}
	return t.ID < o.ID
}

// ByAccount returns a predicate that selects transactions touching an account.
func ByAccount(accountID string) func(Transaction) bool {
	return func(tx Transaction) bool { return tx.Touches(accountID) }
}

// ByType returns a predicate that selects transactions of the given types.
func ByType(types ...TxType) func(Transaction) bool {
	return func(tx Transaction) bool {
		for _, t := range types {
			if tx.Type == t {
				return true
			}
		}
		return false
	}
}

// InRange returns a predicate that selects transactions dated within r.
func InRange(r date.Range) func(Transaction) bool {
	return func(tx Transaction) bool { return r.Contains(tx.Date) }
}

// BySeries returns a predicate that selects the transactions generated by a series.
func BySeries(seriesID string) func(Transaction) bool {
	return func(tx Transaction) bool { return tx.SeriesID == seriesID }
}
