package finance

import (
	"slices"

	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RateOn returns the annual rate (percent) in effect on day: the latest rate
// change effective on or before day, else the base rate.
func (d DepositInfo) RateOn(day date.Date) decimal.Decimal {
	if rate, ok := d.rates().ValueAsOf(day); ok {
		return rate
	}
	return d.InterestRateAnnual
}

// anchor is the date interest starts accruing from: the last posting, or the
// opening date when nothing was posted yet.
func (d DepositInfo) anchor() date.Date {
	return date.Max(d.LastPostedOn, d.OpenedOn)
}

// InterestAccrued returns the simple interest earned by principal over the
// days in [from, to). Each day earns the rate in effect that day divided by
// the number of days in its year. The result is not rounded.
func InterestAccrued(d DepositInfo, principal decimal.Decimal, from, to date.Date) decimal.Decimal {
	rates := d.rates()
	total := decimal.Zero
	for cursor := from; cursor.Before(to); {
		// a segment has a single rate and lies within one calendar year.
		end := date.Min(to, date.New(cursor.Year()+1, 1, 1))
		if change, ok := rates.NextChange(cursor); ok {
			end = date.Min(end, change)
		}
		days := decimal.NewFromInt(int64(cursor.DaysUntil(end)))
		interest := principal.Mul(d.RateOn(cursor)).Mul(days).
			Div(hundred.Mul(decimal.NewFromInt(int64(cursor.DaysInYear()))))
		total = total.Add(interest)
		cursor = end
	}
	return total
}

// postingAfter returns the first posting boundary strictly after day.
func postingAfter(day date.Date, postingDay int) date.Date {
	if b := day.WithDay(postingDay); b.After(day) {
		return b
	}
	return date.New(day.Year(), day.Month()+1, 1).WithDay(postingDay)
}

// NextPostingDate returns the first posting boundary strictly after the last
// posting, or after the opening date if nothing was posted yet. It reports
// false when the deposit has neither.
func NextPostingDate(d DepositInfo) (date.Date, bool) {
	anchor := d.anchor()
	if anchor.IsZero() {
		return date.Date{}, false
	}
	return postingAfter(anchor, d.postingDay()), true
}

// InterestToDate returns the interest accrued and not yet posted, from the
// last posting to on (excluded).
//
// Boundaries already crossed but not reconciled yet are projected as if they
// had been posted: with capitalization their interest compounds. Amounts are
// kept exact so that the result never decreases as on advances.
func InterestToDate(d DepositInfo, on date.Date) decimal.Decimal {
	cursor := d.anchor()
	if cursor.IsZero() || !cursor.Before(on) {
		return decimal.Zero
	}
	principal := d.PrincipalBalance
	total := decimal.Zero
	for b := postingAfter(cursor, d.postingDay()); !b.After(on); b = postingAfter(b, d.postingDay()) {
		interest := InterestAccrued(d, principal, cursor, b)
		total = total.Add(interest)
		if d.CapitalizationEnabled {
			principal = principal.Add(interest)
		}
		cursor = b
	}
	return total.Add(InterestAccrued(d, principal, cursor, on))
}

// reconciliation is the outcome of walking one deposit up to today.
type reconciliation struct {
	info    DepositInfo
	posted  []Transaction
	skipped int
}

// reconcileDeposit walks the boundaries of a deposit from its last posting to
// today and builds one accrual transaction per boundary crossed. posted
// reports whether an accrual already exists on a given day; such a boundary
// is not posted again but still moves the watermark.
//
// Only the watermark of the returned info moves. Capitalized accruals reach
// the principal when they are recorded, like any other deposit transaction,
// so an accrual already in the ledger is part of PrincipalBalance.
func reconcileDeposit(a Account, today date.Date, posted func(date.Date) bool) reconciliation {
	info := a.Deposit.clone()
	r := reconciliation{info: info}
	principal := info.PrincipalBalance
	cursor := info.anchor()
	for b := postingAfter(cursor, info.postingDay()); !b.After(today); b = postingAfter(b, info.postingDay()) {
		interest := roundTo(InterestAccrued(r.info, principal, cursor, b), a.Currency)
		switch {
		case posted(b):
			r.skipped++
		case interest.IsPositive():
			r.posted = append(r.posted, Transaction{
				ID:          accrualID(a.ID, b),
				Date:        b,
				Description: "Interest",
				Amount:      interest,
				Currency:    a.Currency,
				Type:        DepositInterestAccrual,
				Category:    "Interest",
				AccountID:   a.ID,
			})
			if r.info.CapitalizationEnabled {
				principal = principal.Add(interest)
			}
		}
		r.info.LastPostedOn = b
		cursor = b
	}
	return r
}

func accrualID(accountID string, day date.Date) string {
	return uuid.NewSHA1(occurrenceSpace, []byte("accrual/"+accountID+"/"+day.String())).String()
}

// CalculateInterestToToday returns the interest accrued on a deposit since
// its last posting, up to the ledger's today.
func (l *Ledger) CalculateInterestToToday(d DepositInfo) decimal.Decimal {
	d = d.clone()
	d.normalize()
	return InterestToDate(d, l.today())
}

// NextPostingDate returns the next posting boundary of a deposit account.
func (l *Ledger) NextPostingDate(accountID string) (date.Date, bool) {
	a, ok := l.Account(accountID)
	if !ok || a.Deposit == nil {
		return date.Date{}, false
	}
	return NextPostingDate(*a.Deposit)
}

// ReconcileAllDeposits posts the interest of every deposit account for the
// boundaries crossed up to today.
//
// allTxs is the transaction set used to detect accruals already posted.
// The posting watermark is updated in the ledger; the accrual transactions
// themselves are handed to onCreated, after the ledger lock is released, so
// the caller can record them through its own add path. Capitalized interest
// reaches the principal once an accrual is recorded.
// It returns the created transactions.
func (l *Ledger) ReconcileAllDeposits(allTxs []Transaction, onCreated func(Transaction)) []Transaction {
	postedOn := make(map[string]map[date.Date]bool)
	for _, tx := range allTxs {
		if tx.Type != DepositInterestAccrual {
			continue
		}
		if postedOn[tx.AccountID] == nil {
			postedOn[tx.AccountID] = make(map[date.Date]bool)
		}
		postedOn[tx.AccountID][tx.Date] = true
	}

	var created []Transaction
	func() {
		var change Change
		defer l.notify(&change)
		l.mu.Lock()
		defer l.mu.Unlock()

		today := l.today()
		for i := range l.accounts {
			a := &l.accounts[i]
			if a.Deposit == nil {
				continue
			}
			if a.Deposit.anchor().IsZero() {
				l.log.Warn().Str("account", a.ID).Msg("deposit has no opening date, skipped")
				continue
			}
			r := reconcileDeposit(*a, today, func(d date.Date) bool { return postedOn[a.ID][d] })
			if r.info.LastPostedOn == a.Deposit.LastPostedOn {
				continue
			}
			a.Deposit = &r.info
			created = append(created, r.posted...)
			l.log.Info().Str("account", a.ID).Int("posted", len(r.posted)).Int("skipped", r.skipped).
				Stringer("lastPostedOn", r.info.LastPostedOn).Msg("deposit reconciled")
			change = Change{Kind: AccountsChanged, ID: a.ID}
		}
		if change.Kind != 0 {
			l.recompute()
		}
	}()

	if onCreated != nil {
		for _, tx := range created {
			onCreated(tx)
		}
	}
	return created
}

// ReconcileDeposits reconciles every deposit against the ledger's own
// transactions and records the accruals. Accruals that fail to record are
// logged and skipped.
func (l *Ledger) ReconcileDeposits() []Transaction {
	all := slices.Collect(l.Transactions())
	var recorded []Transaction
	l.ReconcileAllDeposits(all, func(tx Transaction) {
		stored, err := l.AddTransaction(tx)
		if err != nil {
			l.log.Error().Err(err).Str("account", tx.AccountID).Stringer("date", tx.Date).Msg("cannot record accrual")
			return
		}
		recorded = append(recorded, stored)
	})
	return recorded
}
