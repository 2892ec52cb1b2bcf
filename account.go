package finance

import (
	"slices"

	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/shopspring/decimal"
)

// Account is a money container: a cash wallet, a bank card or a deposit.
//
// Balance is a cache maintained by the Ledger; it is always recomputable
// from the transaction log.
type Account struct {
	ID       string          `json:"id"`
	Name     string          `json:"name" validate:"required"`
	Currency string          `json:"currency" validate:"required"`
	Balance  decimal.Decimal `json:"balance"`
	Deposit  *DepositInfo    `json:"depositInfo,omitempty"`
	Order    *int            `json:"order,omitempty"`
}

// IsDeposit reports whether the account is an interest bearing deposit.
func (a Account) IsDeposit() bool { return a.Deposit != nil }

// clone returns a deep copy so callers never alias ledger state.
func (a Account) clone() Account {
	if a.Deposit != nil {
		d := a.Deposit.clone()
		a.Deposit = &d
	}
	if a.Order != nil {
		o := *a.Order
		a.Order = &o
	}
	return a
}

// RateChange records a new annual rate (percent) applying from a date on.
type RateChange struct {
	EffectiveFrom date.Date       `json:"effectiveFrom"`
	AnnualRate    decimal.Decimal `json:"annualRate"`
}

// DepositInfo holds the interest terms of a deposit account.
type DepositInfo struct {
	BankName string `json:"bankName,omitempty"`
	// PrincipalBalance is the interest bearing principal. Capitalized
	// interest and top-ups recorded through the Ledger are folded into it.
	PrincipalBalance decimal.Decimal `json:"principalBalance"`
	// LoggedPrincipal is the part of PrincipalBalance that is also present in
	// the transaction log (capitalized accruals, top-ups, withdrawals).
	// Balances seed from PrincipalBalance minus LoggedPrincipal so nothing is
	// counted twice.
	LoggedPrincipal       decimal.Decimal `json:"loggedPrincipal"`
	InterestRateAnnual    decimal.Decimal `json:"interestRateAnnual"`
	InterestPostingDay    int             `json:"interestPostingDay"`
	CapitalizationEnabled bool            `json:"capitalizationEnabled"`
	RateHistory           []RateChange    `json:"rateHistory,omitempty"`
	OpenedOn              date.Date       `json:"openedOn"`
	LastPostedOn          date.Date       `json:"lastPostedOn,omitempty"`
}

func (d DepositInfo) clone() DepositInfo {
	d.RateHistory = slices.Clone(d.RateHistory)
	return d
}

// seed is the balance the deposit starts from before any transaction.
func (d DepositInfo) seed() decimal.Decimal {
	return d.PrincipalBalance.Sub(d.LoggedPrincipal)
}

// postingDay returns InterestPostingDay clamped to [1, 31].
func (d DepositInfo) postingDay() int {
	switch {
	case d.InterestPostingDay < 1:
		return 1
	case d.InterestPostingDay > 31:
		return 31
	default:
		return d.InterestPostingDay
	}
}

// rates returns the rate history sorted by effective date.
func (d DepositInfo) rates() *date.History[decimal.Decimal] {
	h := new(date.History[decimal.Decimal])
	for _, rc := range d.RateHistory {
		h.Append(rc.EffectiveFrom, rc.AnnualRate)
	}
	return h
}

// normalize sorts the rate history and clamps the posting day.
func (d *DepositInfo) normalize() {
	slices.SortStableFunc(d.RateHistory, func(a, b RateChange) int {
		return a.EffectiveFrom.Compare(b.EffectiveFrom)
	})
	d.InterestPostingDay = d.postingDay()
}
