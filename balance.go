package finance

import (
	"context"

	"github.com/shopspring/decimal"
)

// Converter is the cache-only side of the currency conversion service.
// ConvertSync must not block: it answers from cached rates or reports false.
type Converter interface {
	ConvertSync(amount decimal.Decimal, from, to string) (decimal.Decimal, bool)
}

// AsyncConverter may fetch missing rates.
type AsyncConverter interface {
	Converter
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// Balances is the result of a recomputation.
type Balances struct {
	Amounts map[string]decimal.Decimal
	// Approximate marks accounts for which at least one leg had no rate and
	// the raw amount was used as if it were already in the account currency.
	Approximate map[string]bool
}

// Of returns the balance of an account, zero when unknown.
func (b Balances) Of(accountID string) decimal.Decimal { return b.Amounts[accountID] }

// Recompute derives every account balance from the transaction log.
//
// It is a pure fold: the result does not depend on the order of txs, and it
// never fails. Transactions referring to unknown accounts are ignored.
// Ordinary accounts start from zero, deposits from their principal not
// already present in the log.
func Recompute(accounts []Account, txs []Transaction, conv Converter) Balances {
	b := Balances{
		Amounts:     make(map[string]decimal.Decimal, len(accounts)),
		Approximate: make(map[string]bool),
	}
	index := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		index[a.ID] = a
		b.Amounts[a.ID] = decimal.Zero
		if a.Deposit != nil {
			b.Amounts[a.ID] = a.Deposit.seed()
		}
	}

	credit := func(accountID string, delta decimal.Decimal, exact bool) {
		b.Amounts[accountID] = b.Amounts[accountID].Add(delta)
		if !exact {
			b.Approximate[accountID] = true
		}
	}

	for _, tx := range txs {
		src, hasSrc := index[tx.AccountID]
		switch {
		case tx.Type.IsInflow():
			if hasSrc {
				v, exact := sourceLeg(tx, src.Currency, conv)
				credit(src.ID, v, exact)
			}
		case tx.Type.IsOutflow():
			if hasSrc {
				v, exact := sourceLeg(tx, src.Currency, conv)
				credit(src.ID, v.Neg(), exact)
			}
		case tx.IsTransfer():
			if hasSrc {
				v, exact := sourceLeg(tx, src.Currency, conv)
				credit(src.ID, v.Neg(), exact)
			}
			if dst, ok := index[tx.TargetAccountID]; ok && tx.TargetAccountID != tx.AccountID {
				v, exact := targetLeg(tx, dst.Currency, conv)
				credit(dst.ID, v, exact)
			}
		}
	}
	return b
}

// TransferLegs returns the source debit and the target credit of a transfer,
// each in its own account currency.
func TransferLegs(tx Transaction, sourceCurrency, targetCurrency string, conv Converter) (debit, credit decimal.Decimal) {
	debit, _ = sourceLeg(tx, sourceCurrency, conv)
	credit, _ = targetLeg(tx, targetCurrency, conv)
	return debit.Neg(), credit
}

// sourceLeg expresses tx's amount in the owning account currency.
func sourceLeg(tx Transaction, currency string, conv Converter) (decimal.Decimal, bool) {
	return leg(tx, currency, tx.ConvertedAmount, conv)
}

// targetLeg expresses tx's amount in the target account currency.
func targetLeg(tx Transaction, currency string, conv Converter) (decimal.Decimal, bool) {
	return leg(tx, currency, tx.TargetConvertedAmount, conv)
}

// leg applies the conversion fallback policy: cached per-leg amount, then a
// cached rate, then the raw amount. The last step is an approximation and is
// reported as such.
func leg(tx Transaction, currency string, preset *decimal.Decimal, conv Converter) (decimal.Decimal, bool) {
	if tx.Currency == "" || currency == "" || tx.Currency == currency {
		return tx.Amount, true
	}
	if preset != nil {
		return *preset, true
	}
	if conv != nil {
		if v, ok := conv.ConvertSync(tx.Amount, tx.Currency, currency); ok {
			return roundTo(v, currency), true
		}
	}
	return tx.Amount, false
}
