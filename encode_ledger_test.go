package finance

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// sampleLedger builds a ledger touching every record kind.
func sampleLedger(t *testing.T) *Ledger {
	t.Helper()
	l, _ := newTestLedger("2024-03-15", WithConverter(kztRates))
	cash := mustAccount(l, Account{Name: "Cash", Currency: "USD"})
	card := mustAccount(l, Account{Name: "Card", Currency: "KZT"})
	dep := mustAccount(l, Account{Name: "Deposit", Currency: "KZT", Deposit: &DepositInfo{
		PrincipalBalance:   dec("500000"),
		InterestRateAnnual: dec("12"),
		InterestPostingDay: 1,
		OpenedOn:           day("2024-01-01"),
		RateHistory:        []RateChange{{EffectiveFrom: day("2024-02-15"), AnnualRate: dec("13.5")}},
	}})
	txs := []Transaction{
		{Date: day("2024-01-05"), Type: Income, Amount: dec("1200"), Currency: "USD", AccountID: cash.ID, Category: "Salary"},
		{Date: day("2024-01-06"), Time: "09:30", Type: InternalTransfer, Amount: dec("100"), Currency: "USD", AccountID: cash.ID, TargetAccountID: card.ID},
		{Date: day("2024-02-01"), Type: DepositTopUp, Amount: dec("20000"), Currency: "KZT", AccountID: dep.ID},
	}
	for _, tx := range txs {
		if _, err := l.AddTransaction(tx); err != nil {
			t.Fatalf("AddTransaction() unexpected error: %v", err)
		}
	}
	if _, err := l.CreateRecurringSeries(SeriesInput{
		Kind: Subscription, Amount: dec("4.99"), Currency: "USD", Category: "Music",
		AccountID: cash.ID, Frequency: Monthly, StartDate: day("2024-01-31"),
	}); err != nil {
		t.Fatalf("CreateRecurringSeries() unexpected error: %v", err)
	}
	l.ReconcileDeposits()
	return l
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := sampleLedger(t)

	var first bytes.Buffer
	if err := EncodeSnapshot(&first, l.Snapshot()); err != nil {
		t.Fatalf("EncodeSnapshot() unexpected error: %v", err)
	}
	s, err := DecodeSnapshot(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatalf("DecodeSnapshot() unexpected error: %v", err)
	}
	restored := NewLedger(WithConverter(kztRates))
	restored.Restore(s)

	if diff := cmp.Diff(l.Balances().Amounts, restored.Balances().Amounts, decimalEqual); diff != "" {
		t.Errorf("balances mismatch after round trip (-want +got):\n%s", diff)
	}
	if got, want := len(restored.Occurrences(l.AllSeries()[0].ID)), 2; got != want {
		t.Errorf("%d occurrences restored, want %d", got, want)
	}

	var second bytes.Buffer
	if err := EncodeSnapshot(&second, restored.Snapshot()); err != nil {
		t.Fatalf("EncodeSnapshot() unexpected error: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("encoding is not stable:\nfirst:\n%s\nsecond:\n%s", first.String(), second.String())
	}
}

func TestEncodeRecord(t *testing.T) {
	var buf bytes.Buffer
	tx := Transaction{ID: "t1", Date: day("2024-01-05"), Type: Expense, Amount: dec("12.5"), Currency: "EUR", AccountID: "a"}
	if err := EncodeRecord(&buf, KindTransaction, tx); err != nil {
		t.Fatalf("EncodeRecord() unexpected error: %v", err)
	}
	want := `{"record":"transaction","id":"t1","date":"2024-01-05","amount":12.5,"currency":"EUR","type":"expense","accountId":"a"}` + "\n"
	if got := buf.String(); got != want {
		t.Errorf("EncodeRecord() = %q, want %q", got, want)
	}
}

func TestDecodeSnapshotErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "unknown record",
			input: `{"record":"budget","id":"b"}`,
			want:  `line 1: unknown record kind "budget"`,
		},
		{
			name:  "bad json",
			input: "\n" + `{"record":`,
			want:  "line 2: could not identify record",
		},
		{
			name:  "unknown transaction type",
			input: `{"record":"transaction","id":"t","date":"2024-01-01","amount":1,"currency":"USD","type":"gift"}`,
			want:  "line 1:",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeSnapshot(strings.NewReader(tc.input))
			if err == nil {
				t.Fatalf("DecodeSnapshot() expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("DecodeSnapshot() error = %q, want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestFileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "nested", "ledger.jsonl"))

	empty, err := LoadLedger(ctx, repo)
	if err != nil {
		t.Fatalf("LoadLedger() on a missing file: %v", err)
	}
	if n := len(empty.Accounts()); n != 0 {
		t.Errorf("missing file loaded %d accounts, want 0", n)
	}

	l := sampleLedger(t)
	if err := SaveLedger(ctx, repo, l); err != nil {
		t.Fatalf("SaveLedger() unexpected error: %v", err)
	}
	got, err := LoadLedger(ctx, repo, WithConverter(kztRates))
	if err != nil {
		t.Fatalf("LoadLedger() unexpected error: %v", err)
	}
	if diff := cmp.Diff(l.Balances().Amounts, got.Balances().Amounts, decimalEqual); diff != "" {
		t.Errorf("balances mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(l.Accounts(), got.Accounts(), decimalEqual, dateEqual); diff != "" {
		t.Errorf("accounts mismatch (-want +got):\n%s", diff)
	}
}
