package finance

import (
	"slices"
	"testing"

	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/google/go-cmp/cmp"
)

func occurrenceDates(l *Ledger, seriesID string) []date.Date {
	var out []date.Date
	for _, o := range l.Occurrences(seriesID) {
		out = append(out, o.Date)
	}
	return out
}

func days(s ...string) []date.Date {
	out := make([]date.Date, 0, len(s))
	for _, d := range s {
		out = append(out, day(d))
	}
	return out
}

func TestFrequencyAfter(t *testing.T) {
	testCases := []struct {
		freq         Frequency
		start, after string
		want         string
	}{
		{Daily, "2024-01-01", "2023-12-01", "2024-01-01"},
		{Daily, "2024-01-01", "2024-01-01", "2024-01-02"},
		{Weekly, "2024-01-01", "2024-01-07", "2024-01-08"},
		{Weekly, "2024-01-01", "2024-01-08", "2024-01-15"},
		{Monthly, "2024-01-31", "2024-01-31", "2024-02-29"},
		{Monthly, "2024-01-31", "2024-02-29", "2024-03-31"},
		{Monthly, "2024-01-31", "2024-04-15", "2024-04-30"},
		{Yearly, "2024-02-29", "2024-02-29", "2025-02-28"},
		{Yearly, "2024-02-29", "2027-03-01", "2028-02-29"},
	}
	for _, tc := range testCases {
		t.Run(string(tc.freq)+"/"+tc.start+"/"+tc.after, func(t *testing.T) {
			if got := tc.freq.After(day(tc.start), day(tc.after)); got != day(tc.want) {
				t.Errorf("After(%s, %s) = %v, want %s", tc.start, tc.after, got, tc.want)
			}
		})
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	l, _ := newTestLedger("2023-12-01")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	s, err := l.CreateRecurringSeries(SeriesInput{Kind: Subscription, Amount: dec("9.99"), Currency: "USD", AccountID: a.ID, Frequency: Monthly, StartDate: day("2024-01-01")})
	if err != nil {
		t.Fatalf("CreateRecurringSeries() unexpected error: %v", err)
	}
	want := days("2024-01-01", "2024-02-01", "2024-03-01")
	for i, wantCreated := range []int{3, 0} {
		n, err := l.GenerateDueOccurrences(s.ID, day("2024-03-15"))
		if err != nil {
			t.Fatalf("run %d: GenerateDueOccurrences() unexpected error: %v", i, err)
		}
		if n != wantCreated {
			t.Errorf("run %d: created %d, want %d", i, n, wantCreated)
		}
		if diff := cmp.Diff(want, occurrenceDates(l, s.ID), dateEqual); diff != "" {
			t.Errorf("run %d: occurrences mismatch (-want +got):\n%s", i, diff)
		}
		if got := len(slices.Collect(l.Transactions(BySeries(s.ID)))); got != 3 {
			t.Errorf("run %d: %d transactions, want 3", i, got)
		}
	}
	if got, _ := l.Balance(a.ID); !got.Equal(dec("-29.97")) {
		t.Errorf("balance = %v, want -29.97", got)
	}
	if got, _ := l.Series(s.ID); got.LastGeneratedDate != day("2024-03-01") {
		t.Errorf("watermark = %v, want 2024-03-01", got.LastGeneratedDate)
	}
}

func TestCreateGeneratesDueOccurrences(t *testing.T) {
	l, _ := newTestLedger("2024-05-31")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	s, err := l.CreateRecurringSeries(SeriesInput{Amount: dec("100"), Currency: "USD", AccountID: a.ID, Frequency: Monthly, StartDate: day("2024-01-31")})
	if err != nil {
		t.Fatalf("CreateRecurringSeries() unexpected error: %v", err)
	}
	want := days("2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31")
	if diff := cmp.Diff(want, occurrenceDates(l, s.ID), dateEqual); diff != "" {
		t.Errorf("occurrences mismatch (-want +got):\n%s", diff)
	}
}

func TestWatermarkCatchUp(t *testing.T) {
	l, c := newTestLedger("2024-01-05")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	s, err := l.CreateRecurringSeries(SeriesInput{Amount: dec("1"), Currency: "USD", AccountID: a.ID, Frequency: Daily, StartDate: day("2024-01-01")})
	if err != nil {
		t.Fatal(err)
	}
	before := occurrenceDates(l, s.ID)

	c.today = day("2024-01-15")
	if n := l.GenerateRecurringTransactions(); n != 10 {
		t.Fatalf("GenerateRecurringTransactions() = %d, want 10", n)
	}
	got := occurrenceDates(l, s.ID)[len(before):]
	for i, d := range got {
		if want := day("2024-01-06").Add(i); d != want {
			t.Errorf("occurrence %d on %v, want %v", i, d, want)
		}
	}
}

func TestStopRemovesOnlyFutureOccurrences(t *testing.T) {
	l, c := newTestLedger("2024-08-15")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	if _, err := l.AddTransaction(Transaction{Date: day("2023-12-01"), Type: Income, Amount: dec("1000"), Currency: "USD", AccountID: a.ID}); err != nil {
		t.Fatal(err)
	}
	s, err := l.CreateRecurringSeries(SeriesInput{Amount: dec("10"), Currency: "USD", AccountID: a.ID, Frequency: Monthly, StartDate: day("2024-01-01")})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := l.Balance(a.ID); !got.Equal(dec("920")) {
		t.Fatalf("balance = %v, want 920", got)
	}

	// seen from May 15th, Jan..May are past and Jun..Aug are future.
	c.today = day("2024-05-15")
	if err := l.StopRecurringSeries(s.ID); err != nil {
		t.Fatalf("StopRecurringSeries() unexpected error: %v", err)
	}
	want := days("2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01")
	if diff := cmp.Diff(want, occurrenceDates(l, s.ID), dateEqual); diff != "" {
		t.Errorf("occurrences mismatch (-want +got):\n%s", diff)
	}
	if got := len(slices.Collect(l.Transactions(BySeries(s.ID)))); got != 5 {
		t.Errorf("%d transactions, want 5", got)
	}
	if got, _ := l.Balance(a.ID); !got.Equal(dec("950")) {
		t.Errorf("balance = %v, want 950", got)
	}
	got, _ := l.Series(s.ID)
	if got.Status != StatusArchived || got.IsActive() {
		t.Errorf("status = %v, want archived", got.Status)
	}
	if n, _ := l.GenerateDueOccurrences(s.ID, day("2024-12-31")); n != 0 {
		t.Errorf("archived series generated %d occurrences", n)
	}
	if err := l.ResumeSubscription(s.ID); !IsValidation(err, InvalidState) {
		t.Errorf("ResumeSubscription(archived) error = %v, want InvalidState", err)
	}
}

func TestPauseAndResume(t *testing.T) {
	l, c := newTestLedger("2024-01-03")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	s, err := l.CreateRecurringSeries(SeriesInput{Kind: Subscription, Amount: dec("1"), Currency: "USD", AccountID: a.ID, Frequency: Daily, StartDate: day("2024-01-01")})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.PauseSubscription(s.ID); err != nil {
		t.Fatalf("PauseSubscription() unexpected error: %v", err)
	}
	c.today = day("2024-01-06")
	if n := l.GenerateRecurringTransactions(); n != 0 {
		t.Errorf("paused series generated %d occurrences", n)
	}
	if _, ok := l.NextChargeDate(s.ID); ok {
		t.Error("NextChargeDate() reported a date for a paused series")
	}
	if got := len(l.Occurrences(s.ID)); got != 3 {
		t.Errorf("%d occurrences after pause, want 3", got)
	}

	if err := l.ResumeSubscription(s.ID); err != nil {
		t.Fatalf("ResumeSubscription() unexpected error: %v", err)
	}
	want := days("2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06")
	if diff := cmp.Diff(want, occurrenceDates(l, s.ID), dateEqual); diff != "" {
		t.Errorf("occurrences mismatch (-want +got):\n%s", diff)
	}
	// resuming an active series is a no-op.
	if err := l.ResumeSubscription(s.ID); err != nil {
		t.Errorf("ResumeSubscription(active) unexpected error: %v", err)
	}
}

func TestUpdateSeriesKeepsHistory(t *testing.T) {
	l, c := newTestLedger("2024-03-15")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	s, err := l.CreateRecurringSeries(SeriesInput{Amount: dec("10"), Currency: "USD", AccountID: a.ID, Category: "Rent", Frequency: Monthly, StartDate: day("2024-01-01")})
	if err != nil {
		t.Fatal(err)
	}
	s.Amount = dec("20")
	s.Category = "Housing"
	s.Status = StatusPaused // ignored: status changes through Pause/Resume/Stop only.
	if err := l.UpdateRecurringSeries(s); err != nil {
		t.Fatalf("UpdateRecurringSeries() unexpected error: %v", err)
	}
	c.today = day("2024-04-01")
	l.GenerateRecurringTransactions()

	var got []string
	for tx := range l.Transactions(BySeries(s.ID)) {
		got = append(got, tx.Amount.String()+" "+tx.Category)
	}
	want := []string{"10 Rent", "10 Rent", "10 Rent", "20 Housing"}
	if !slices.Equal(got, want) {
		t.Errorf("transactions = %v, want %v", got, want)
	}
	if stored, _ := l.Series(s.ID); stored.Status != StatusActive {
		t.Errorf("status = %v, want active", stored.Status)
	}
}

func TestUpdateSeriesSchedule(t *testing.T) {
	l, _ := newTestLedger("2024-03-15")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	s, err := l.CreateRecurringSeries(SeriesInput{Amount: dec("10"), Currency: "USD", AccountID: a.ID, Frequency: Monthly, StartDate: day("2024-01-01")})
	if err != nil {
		t.Fatal(err)
	}
	s.Frequency = Weekly
	if err := l.UpdateRecurringSeries(s); err != nil {
		t.Fatalf("UpdateRecurringSeries() unexpected error: %v", err)
	}
	// history is kept, weekly steps resume after the last occurrence.
	want := days("2024-01-01", "2024-02-01", "2024-03-01", "2024-03-04", "2024-03-11")
	if diff := cmp.Diff(want, occurrenceDates(l, s.ID), dateEqual); diff != "" {
		t.Errorf("occurrences mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteSeries(t *testing.T) {
	l, _ := newTestLedger("2024-03-15")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	s, err := l.CreateRecurringSeries(SeriesInput{Type: Income, Amount: dec("500"), Currency: "USD", AccountID: a.ID, Frequency: Monthly, StartDate: day("2024-01-01")})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := l.Balance(a.ID); !got.Equal(dec("1500")) {
		t.Fatalf("balance = %v, want 1500", got)
	}
	if err := l.DeleteRecurringSeries(s.ID); err != nil {
		t.Fatalf("DeleteRecurringSeries() unexpected error: %v", err)
	}
	if _, ok := l.Series(s.ID); ok {
		t.Error("series still present")
	}
	if n := len(slices.Collect(l.Transactions())); n != 0 {
		t.Errorf("%d transactions left, want 0", n)
	}
	if got, _ := l.Balance(a.ID); !got.IsZero() {
		t.Errorf("balance = %v, want 0", got)
	}
}

func TestEndDateAndNextChargeDate(t *testing.T) {
	l, _ := newTestLedger("2024-03-15")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	ended, err := l.CreateRecurringSeries(SeriesInput{Amount: dec("1"), Currency: "USD", AccountID: a.ID, Frequency: Daily, StartDate: day("2024-01-01"), EndDate: day("2024-01-03")})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(l.Occurrences(ended.ID)); got != 3 {
		t.Errorf("%d occurrences, want 3", got)
	}
	if _, ok := l.NextChargeDate(ended.ID); ok {
		t.Error("NextChargeDate() reported a date past the end")
	}

	monthly, err := l.CreateRecurringSeries(SeriesInput{Amount: dec("1"), Currency: "USD", AccountID: a.ID, Frequency: Monthly, StartDate: day("2024-01-15")})
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := l.NextChargeDate(monthly.ID); !ok || got != day("2024-04-15") {
		t.Errorf("NextChargeDate() = %v, %v, want 2024-04-15", got, ok)
	}

	future, err := l.CreateRecurringSeries(SeriesInput{Amount: dec("1"), Currency: "USD", AccountID: a.ID, Frequency: Yearly, StartDate: day("2024-06-01")})
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := l.NextChargeDate(future.ID); !ok || got != day("2024-06-01") {
		t.Errorf("NextChargeDate() = %v, %v, want 2024-06-01", got, ok)
	}
}

func TestCreateSeriesValidation(t *testing.T) {
	l, _ := newTestLedger("2024-03-15")
	a := mustAccount(l, Account{Name: "A", Currency: "USD"})
	valid := SeriesInput{Amount: dec("10"), Currency: "USD", AccountID: a.ID, Frequency: Monthly, StartDate: day("2024-01-01")}
	testCases := []struct {
		name   string
		modify func(*SeriesInput)
		want   ValidationKind
	}{
		{name: "zero amount", modify: func(in *SeriesInput) { in.Amount = dec("0") }, want: InvalidAmount},
		{name: "no currency", modify: func(in *SeriesInput) { in.Currency = "" }, want: InvalidCurrency},
		{name: "no frequency", modify: func(in *SeriesInput) { in.Frequency = "" }, want: MissingField},
		{name: "unknown frequency", modify: func(in *SeriesInput) { in.Frequency = "hourly" }, want: InvalidSchedule},
		{name: "ends before start", modify: func(in *SeriesInput) { in.EndDate = day("2023-12-31") }, want: InvalidSchedule},
		{name: "unknown account", modify: func(in *SeriesInput) { in.AccountID = "nope" }, want: AccountNotFound},
		{name: "no account", modify: func(in *SeriesInput) { in.AccountID = "" }, want: MissingField},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.modify(&in)
			if _, err := l.CreateRecurringSeries(in); !IsValidation(err, tc.want) {
				t.Errorf("CreateRecurringSeries() error = %v, want %v", err, tc.want)
			}
		})
	}
	if n := len(l.AllSeries()); n != 0 {
		t.Errorf("%d series stored after rejected creations", n)
	}
}
