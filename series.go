package finance

import (
	"fmt"
	"strings"

	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/shopspring/decimal"
)

// Frequency is the schedule step of a recurring series.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// ParseFrequency parses a frequency name.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day":
		return Daily, nil
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	case "yearly", "year", "annual":
		return Yearly, nil
	default:
		return "", fmt.Errorf("unknown frequency %q", s)
	}
}

// Nth returns the n-th scheduled date of a series starting on start (n=0 is start).
//
// Monthly and yearly steps are anchored on start, so a series starting on the
// 31st lands on the last day of shorter months without drifting afterwards.
func (f Frequency) Nth(start date.Date, n int) date.Date {
	switch f {
	case Daily:
		return start.Add(n)
	case Weekly:
		return start.Add(7 * n)
	case Monthly:
		return start.AddMonths(n)
	case Yearly:
		return start.AddYears(n)
	default:
		panic(fmt.Sprintf("unknown frequency %q", string(f)))
	}
}

// After returns the first scheduled date strictly after 'after'.
// When 'after' is before start, start itself is returned.
func (f Frequency) After(start, after date.Date) date.Date {
	if after.Before(start) {
		return start
	}
	// estimate the index, then walk: the estimate is never past the answer.
	n := 0
	switch f {
	case Daily:
		n = start.DaysUntil(after)
	case Weekly:
		n = start.DaysUntil(after) / 7
	case Monthly:
		n = (after.Year()-start.Year())*12 + int(after.Month()-start.Month()) - 1
	case Yearly:
		n = after.Year() - start.Year() - 1
	}
	if n < 0 {
		n = 0
	}
	for {
		d := f.Nth(start, n)
		if d.After(after) {
			return d
		}
		n++
	}
}

func (f Frequency) valid() bool {
	return f == Daily || f == Weekly || f == Monthly || f == Yearly
}

// SeriesStatus is the single source of truth for the life cycle of a series.
type SeriesStatus string

const (
	StatusActive   SeriesStatus = "active"
	StatusPaused   SeriesStatus = "paused"
	StatusArchived SeriesStatus = "archived"
)

// SeriesKind distinguishes plain recurring expenses from subscriptions.
type SeriesKind string

const (
	RecurringExpense SeriesKind = "recurringExpense"
	Subscription     SeriesKind = "subscription"
)

// RecurringSeries is a schedule that materializes transactions.
type RecurringSeries struct {
	ID          string          `json:"id"`
	Status      SeriesStatus    `json:"status"`
	Kind        SeriesKind      `json:"kind"`
	Type        TxType          `json:"type"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency    string          `json:"currency" validate:"required"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
	Description string          `json:"description,omitempty"`

	AccountID       string `json:"accountId,omitempty"`
	TargetAccountID string `json:"targetAccountId,omitempty"`

	Frequency Frequency `json:"frequency" validate:"required"`
	StartDate date.Date `json:"startDate" validate:"required"`
	// EndDate is the last day an occurrence may fall on; zero means open ended.
	EndDate date.Date `json:"endDate,omitempty"`
	// LastGeneratedDate is the watermark: the latest materialized occurrence.
	LastGeneratedDate date.Date `json:"lastGeneratedDate,omitempty"`
}

// IsActive is a convenience view over Status.
func (s RecurringSeries) IsActive() bool { return s.Status == StatusActive }

// next returns the next date to materialize after the watermark.
func (s RecurringSeries) next() date.Date {
	if s.LastGeneratedDate.IsZero() {
		return s.StartDate
	}
	return s.Frequency.After(s.StartDate, s.LastGeneratedDate)
}

// ends reports whether d is past the end of the series.
func (s RecurringSeries) ends(d date.Date) bool {
	return !s.EndDate.IsZero() && d.After(s.EndDate)
}

// transaction builds the transaction materialized on day.
func (s RecurringSeries) transaction(day date.Date) Transaction {
	return Transaction{
		Date:            day,
		Description:     s.Description,
		Amount:          s.Amount,
		Currency:        s.Currency,
		Type:            s.Type,
		Category:        s.Category,
		Subcategory:     s.Subcategory,
		AccountID:       s.AccountID,
		TargetAccountID: s.TargetAccountID,
		SeriesID:        s.ID,
	}
}

// Occurrence links a series to the transaction materialized for one date.
// (SeriesID, Date) is unique.
type Occurrence struct {
	ID            string    `json:"id"`
	SeriesID      string    `json:"seriesId"`
	Date          date.Date `json:"occurrenceDate"`
	TransactionID string    `json:"transactionId"`
}

// SeriesInput holds the user editable fields of a series.
type SeriesInput struct {
	Kind            SeriesKind
	Type            TxType
	Amount          decimal.Decimal
	Currency        string
	Category        string
	Subcategory     string
	Description     string
	AccountID       string
	TargetAccountID string
	Frequency       Frequency
	StartDate       date.Date
	EndDate         date.Date
}
