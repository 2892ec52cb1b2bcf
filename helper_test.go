package finance

import (
	"time"

	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

// day is a helper for tests to create a date from a const.
func day(s string) date.Date { return date.MustParse(s) }

// dec is a helper for tests to create a decimal from a const.
func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ptr returns a pointer to a decimal const.
func ptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// decimalEqual compares decimals by value, not representation.
var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

// dateEqual compares dates by value.
var dateEqual = cmp.Comparer(func(a, b date.Date) bool { return a == b })

// clock is a settable time source for ledgers under test. Each reading is a
// nanosecond later than the previous one, within the same day.
type clock struct {
	today date.Date
	tick  int
}

func (c *clock) now() time.Time {
	c.tick++
	return time.Date(c.today.Year(), c.today.Month(), c.today.Day(), 12, 0, 0, c.tick, time.UTC)
}

// newTestLedger returns a ledger whose today is set by the returned clock.
func newTestLedger(today string, opts ...Option) (*Ledger, *clock) {
	c := &clock{today: day(today)}
	return NewLedger(append([]Option{WithClock(c.now)}, opts...)...), c
}

// rateTable converts with fixed rates expressed in base units per unit.
type rateTable map[string]decimal.Decimal

func (r rateTable) ConvertSync(amount decimal.Decimal, from, to string) (decimal.Decimal, bool) {
	if from == to {
		return amount, true
	}
	rf, ok := r[from]
	if !ok {
		return decimal.Zero, false
	}
	rt, ok := r[to]
	if !ok {
		return decimal.Zero, false
	}
	return amount.Mul(rf).Div(rt), true
}

// kztRates has KZT as base.
var kztRates = rateTable{
	"KZT": decimal.NewFromInt(1),
	"USD": decimal.NewFromInt(450),
	"EUR": decimal.NewFromInt(500),
}

// mustAccount adds an account or panics.
func mustAccount(l *Ledger, a Account) Account {
	a, err := l.AddAccount(a)
	if err != nil {
		panic(err)
	}
	return a
}
