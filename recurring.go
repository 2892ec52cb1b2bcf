package finance

import (
	"fmt"
	"slices"

	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/google/uuid"
)

// occurrenceSpace namespaces the deterministic ids of generated entities, so
// that the same (series, day) always materializes under the same ids.
var occurrenceSpace = uuid.MustParse("6f1c8a52-3d0e-4b8f-9a57-2c41e0d7b913")

func occurrenceID(seriesID string, day date.Date) string {
	return uuid.NewSHA1(occurrenceSpace, []byte("occurrence/"+seriesID+"/"+day.String())).String()
}

func occurrenceTxID(seriesID string, day date.Date) string {
	return uuid.NewSHA1(occurrenceSpace, []byte("transaction/"+seriesID+"/"+day.String())).String()
}

func (l *Ledger) seriesIndex(id string) int {
	return slices.IndexFunc(l.series, func(s RecurringSeries) bool { return s.ID == id })
}

// Series returns a series by id.
func (l *Ledger) Series(id string) (RecurringSeries, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.seriesIndex(id); i >= 0 {
		return l.series[i], true
	}
	return RecurringSeries{}, false
}

// AllSeries returns every series, archived ones included.
func (l *Ledger) AllSeries() []RecurringSeries {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.series)
}

// Occurrences returns the occurrences of a series sorted by date.
func (l *Ledger) Occurrences(seriesID string) []Occurrence {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Occurrence
	for _, o := range l.occurrences {
		if o.SeriesID == seriesID {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b Occurrence) int { return a.Date.Compare(b.Date) })
	return out
}

// CreateRecurringSeries validates and stores a new active series, then
// materializes the occurrences already due.
func (l *Ledger) CreateRecurringSeries(in SeriesInput) (RecurringSeries, error) {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	s := RecurringSeries{
		ID:     uuid.NewString(),
		Status: StatusActive,
	}
	s.apply(in)
	if err := l.validateSeries(s); err != nil {
		return RecurringSeries{}, err
	}
	l.series = append(l.series, s)
	n := l.generate(len(l.series)-1, l.today())
	l.log.Info().Str("series", s.ID).Str("frequency", string(s.Frequency)).Int("generated", n).Msg("series created")
	l.recompute()
	change = Change{Kind: SeriesChanged, ID: s.ID}
	return l.series[len(l.series)-1], nil
}

// apply copies the user editable fields.
func (s *RecurringSeries) apply(in SeriesInput) {
	s.Kind = in.Kind
	if s.Kind == "" {
		s.Kind = RecurringExpense
	}
	s.Type = in.Type
	if s.Type == "" {
		s.Type = Expense
	}
	s.Amount = in.Amount
	s.Currency = in.Currency
	s.Category = in.Category
	s.Subcategory = in.Subcategory
	s.Description = in.Description
	s.AccountID = in.AccountID
	s.TargetAccountID = in.TargetAccountID
	s.Frequency = in.Frequency
	s.StartDate = in.StartDate
	s.EndDate = in.EndDate
}

// Input returns the user editable fields of s.
func (s RecurringSeries) Input() SeriesInput {
	return SeriesInput{
		Kind:            s.Kind,
		Type:            s.Type,
		Amount:          s.Amount,
		Currency:        s.Currency,
		Category:        s.Category,
		Subcategory:     s.Subcategory,
		Description:     s.Description,
		AccountID:       s.AccountID,
		TargetAccountID: s.TargetAccountID,
		Frequency:       s.Frequency,
		StartDate:       s.StartDate,
		EndDate:         s.EndDate,
	}
}

// UpdateRecurringSeries replaces the definition of an existing series.
//
// Status and watermark are kept from the stored series. Materialized
// transactions are never rewritten: new values apply to future generations
// only. When the schedule itself changes, occurrences after today are dropped
// and the watermark falls back to the latest remaining occurrence.
func (l *Ledger) UpdateRecurringSeries(s RecurringSeries) error {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.seriesIndex(s.ID)
	if i < 0 {
		return fmt.Errorf("series %q: %w", s.ID, ErrNotFound)
	}
	old := l.series[i]
	next := old
	next.apply(s.Input())
	if err := l.validateSeries(next); err != nil {
		return err
	}
	if next.Frequency != old.Frequency || next.StartDate != old.StartDate {
		today := l.today()
		l.dropOccurrences(next.ID, func(o Occurrence) bool { return o.Date.After(today) })
		next.LastGeneratedDate = l.latestOccurrence(next.ID)
	}
	l.series[i] = next
	if next.IsActive() {
		l.generate(i, l.today())
	}
	l.recompute()
	change = Change{Kind: SeriesChanged, ID: s.ID}
	return nil
}

// StopRecurringSeries archives a series. Occurrences dated after today are
// removed together with their transactions; past ones are kept.
func (l *Ledger) StopRecurringSeries(id string) error {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.seriesIndex(id)
	if i < 0 {
		return fmt.Errorf("series %q: %w", id, ErrNotFound)
	}
	today := l.today()
	n := l.dropOccurrences(id, func(o Occurrence) bool { return o.Date.After(today) })
	l.series[i].Status = StatusArchived
	l.log.Info().Str("series", id).Int("removed", n).Msg("series stopped")
	l.recompute()
	change = Change{Kind: SeriesChanged, ID: id}
	return nil
}

// PauseSubscription stops generation of an active series, keeping its history.
func (l *Ledger) PauseSubscription(id string) error {
	return l.transition(id, StatusActive, StatusPaused)
}

// ResumeSubscription reactivates a paused series and catches up from its
// watermark: periods elapsed during the pause are materialized.
func (l *Ledger) ResumeSubscription(id string) error {
	return l.transition(id, StatusPaused, StatusActive)
}

func (l *Ledger) transition(id string, from, to SeriesStatus) error {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.seriesIndex(id)
	if i < 0 {
		return fmt.Errorf("series %q: %w", id, ErrNotFound)
	}
	s := &l.series[i]
	if s.Status == to {
		return nil
	}
	if s.Status != from {
		return invalid(InvalidState, "status", "series %q is %s", id, s.Status)
	}
	s.Status = to
	if to == StatusActive {
		l.generate(i, l.today())
	}
	l.recompute()
	change = Change{Kind: SeriesChanged, ID: id}
	return nil
}

// DeleteRecurringSeries removes a series, all its occurrences and their transactions.
func (l *Ledger) DeleteRecurringSeries(id string) error {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.seriesIndex(id)
	if i < 0 {
		return fmt.Errorf("series %q: %w", id, ErrNotFound)
	}
	l.dropOccurrences(id, func(Occurrence) bool { return true })
	l.series = slices.Delete(l.series, i, i+1)
	l.recompute()
	change = Change{Kind: SeriesChanged, ID: id}
	return nil
}

// GenerateDueOccurrences materializes the missing occurrences of one series
// up to today included. It is a no-op unless the series is active, and
// idempotent for a given today. It returns the number of created transactions.
func (l *Ledger) GenerateDueOccurrences(id string, today date.Date) (int, error) {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.seriesIndex(id)
	if i < 0 {
		return 0, fmt.Errorf("series %q: %w", id, ErrNotFound)
	}
	n := l.generate(i, today)
	if n > 0 {
		l.recompute()
		change = Change{Kind: TransactionsChanged, ID: id}
	}
	return n, nil
}

// GenerateRecurringTransactions sweeps every active series up to the ledger's
// today and recomputes balances once.
func (l *Ledger) GenerateRecurringTransactions() int {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	total := 0
	for i := range l.series {
		total += l.generate(i, today)
	}
	if total > 0 {
		l.log.Info().Int("generated", total).Stringer("today", today).Msg("recurring transactions generated")
		l.recompute()
		change = Change{Kind: TransactionsChanged}
	}
	return total
}

// generate is the unlocked generation loop for l.series[i]. It does not recompute.
func (l *Ledger) generate(i int, today date.Date) int {
	s := &l.series[i]
	if !s.IsActive() {
		return 0
	}
	exists := make(map[date.Date]bool)
	for _, o := range l.occurrences {
		if o.SeriesID == s.ID {
			exists[o.Date] = true
		}
	}
	created := 0
	for day := s.next(); !day.After(today) && !s.ends(day); day = s.Frequency.After(s.StartDate, day) {
		if !exists[day] {
			tx := s.transaction(day)
			tx.ID = occurrenceTxID(s.ID, day)
			tx.OccurrenceID = occurrenceID(s.ID, day)
			stored, err := l.add(tx)
			if err != nil {
				// the series references something that no longer validates
				// (a deleted account): stop here and retry on the next sweep.
				l.log.Warn().Err(err).Str("series", s.ID).Stringer("date", day).Msg("cannot materialize occurrence")
				break
			}
			l.occurrences = append(l.occurrences, Occurrence{
				ID:            stored.OccurrenceID,
				SeriesID:      s.ID,
				Date:          day,
				TransactionID: stored.ID,
			})
			exists[day] = true
			created++
		}
		if day.After(s.LastGeneratedDate) {
			s.LastGeneratedDate = day
		}
	}
	return created
}

// dropOccurrences removes the matching occurrences of a series and their transactions.
func (l *Ledger) dropOccurrences(seriesID string, match func(Occurrence) bool) int {
	var txIDs []string
	l.occurrences = slices.DeleteFunc(l.occurrences, func(o Occurrence) bool {
		if o.SeriesID == seriesID && match(o) {
			txIDs = append(txIDs, o.TransactionID)
			return true
		}
		return false
	})
	for _, id := range txIDs {
		l.remove(id)
	}
	return len(txIDs)
}

// latestOccurrence returns the date of the latest occurrence of a series.
func (l *Ledger) latestOccurrence(seriesID string) date.Date {
	var last date.Date
	for _, o := range l.occurrences {
		if o.SeriesID == seriesID && o.Date.After(last) {
			last = o.Date
		}
	}
	return last
}

// NextChargeDate returns the next scheduled date on or after today that has
// not been materialized yet. It reports false for series that are not active
// or have ended.
func (l *Ledger) NextChargeDate(id string) (date.Date, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.seriesIndex(id)
	if i < 0 || !l.series[i].IsActive() {
		return date.Date{}, false
	}
	s := l.series[i]
	after := date.Max(s.LastGeneratedDate, l.today().Add(-1))
	next := s.Frequency.After(s.StartDate, after)
	if s.ends(next) {
		return date.Date{}, false
	}
	return next, true
}
