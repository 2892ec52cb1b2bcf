package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	finance "github.com/dkicekeeper/AIFinanceManager-sub008"
	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func fixedClock() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer repo.Close()

	l := finance.NewLedger(finance.WithClock(fixedClock))
	cash, err := l.AddAccount(finance.Account{Name: "Cash", Currency: "USD"})
	if err != nil {
		t.Fatal(err)
	}
	deposit, err := l.AddAccount(finance.Account{Name: "Savings", Currency: "USD", Deposit: &finance.DepositInfo{
		PrincipalBalance:   decimal.NewFromInt(1000),
		InterestRateAnnual: decimal.NewFromInt(10),
		InterestPostingDay: 1,
		OpenedOn:           date.New(2024, 1, 1),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.AddTransaction(finance.Transaction{Date: date.New(2024, 1, 2), Amount: decimal.NewFromInt(100), Currency: "USD", Type: finance.Income, AccountID: cash.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.CreateRecurringSeries(finance.SeriesInput{
		Amount: decimal.NewFromInt(10), Currency: "USD", AccountID: cash.ID,
		Frequency: finance.Monthly, StartDate: date.New(2024, 1, 5),
	}); err != nil {
		t.Fatal(err)
	}
	l.ReconcileDeposits()

	if err := repo.Save(ctx, l.Snapshot()); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	// saving again replaces rather than duplicates.
	if err := repo.Save(ctx, l.Snapshot()); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	restored, err := finance.LoadLedger(ctx, repo, finance.WithClock(fixedClock))
	if err != nil {
		t.Fatalf("LoadLedger() unexpected error: %v", err)
	}
	opts := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(l.Balances().Amounts, restored.Balances().Amounts, opts); diff != "" {
		t.Errorf("balances mismatch (-saved +loaded):\n%s", diff)
	}
	if got, want := len(restored.Snapshot().Transactions), len(l.Snapshot().Transactions); got != want {
		t.Errorf("loaded %d transactions, want %d", got, want)
	}
	if got, want := len(restored.Occurrences(l.AllSeries()[0].ID)), 3; got != want {
		t.Errorf("loaded %d occurrences, want %d", got, want)
	}
	a, _ := restored.Account(deposit.ID)
	if want := date.New(2024, 3, 1); a.Deposit.LastPostedOn != want {
		t.Errorf("LastPostedOn = %v, want %v", a.Deposit.LastPostedOn, want)
	}
}

func TestLoadEmpty(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer repo.Close()
	s, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(s.Accounts)+len(s.Transactions)+len(s.Series)+len(s.Occurrences) != 0 {
		t.Errorf("Load() = %+v, want an empty snapshot", s)
	}
}
