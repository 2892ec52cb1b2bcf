package finance

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestRecompute(t *testing.T) {
	accounts := []Account{
		{ID: "cash", Name: "Cash", Currency: "USD"},
		{ID: "card", Name: "Card", Currency: "USD"},
		{ID: "dep", Name: "Deposit", Currency: "USD", Deposit: &DepositInfo{PrincipalBalance: dec("1000"), LoggedPrincipal: dec("200")}},
	}
	testCases := []struct {
		name string
		txs  []Transaction
		want map[string]decimal.Decimal
	}{
		{
			name: "empty log",
			want: map[string]decimal.Decimal{"cash": dec("0"), "card": dec("0"), "dep": dec("800")},
		},
		{
			name: "income and expense",
			txs: []Transaction{
				{Type: Income, Amount: dec("100"), Currency: "USD", AccountID: "cash"},
				{Type: Expense, Amount: dec("30.5"), Currency: "USD", AccountID: "cash"},
			},
			want: map[string]decimal.Decimal{"cash": dec("69.5"), "card": dec("0"), "dep": dec("800")},
		},
		{
			name: "deposit flows",
			txs: []Transaction{
				{Type: DepositTopUp, Amount: dec("200"), Currency: "USD", AccountID: "dep"},
				{Type: DepositInterestAccrual, Amount: dec("12.34"), Currency: "USD", AccountID: "dep"},
				{Type: DepositWithdrawal, Amount: dec("50"), Currency: "USD", AccountID: "dep"},
			},
			want: map[string]decimal.Decimal{"cash": dec("0"), "card": dec("0"), "dep": dec("962.34")},
		},
		{
			name: "transfer",
			txs: []Transaction{
				{Type: InternalTransfer, Amount: dec("40"), Currency: "USD", AccountID: "cash", TargetAccountID: "card"},
			},
			want: map[string]decimal.Decimal{"cash": dec("-40"), "card": dec("40"), "dep": dec("800")},
		},
		{
			name: "orphans are ignored",
			txs: []Transaction{
				{Type: Income, Amount: dec("10"), Currency: "USD", AccountID: "gone"},
				{Type: Income, Amount: dec("10"), Currency: "USD"},
				{Type: InternalTransfer, Amount: dec("5"), Currency: "USD", AccountID: "gone", TargetAccountID: "card"},
			},
			want: map[string]decimal.Decimal{"cash": dec("0"), "card": dec("5"), "dep": dec("800")},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Recompute(accounts, tc.txs, nil)
			if diff := cmp.Diff(tc.want, got.Amounts, decimalEqual); diff != "" {
				t.Errorf("Recompute() mismatch (-want +got):\n%s", diff)
			}
			if len(got.Approximate) != 0 {
				t.Errorf("Recompute() approximate = %v, want none", got.Approximate)
			}
		})
	}
}

func TestRecomputeConversionFallback(t *testing.T) {
	accounts := []Account{
		{ID: "usd", Name: "USD", Currency: "USD"},
		{ID: "kzt", Name: "KZT", Currency: "KZT"},
	}
	testCases := []struct {
		name      string
		tx        Transaction
		conv      Converter
		usd, kzt  string
		approxKZT bool
	}{
		{
			name: "cached rate",
			tx:   Transaction{Type: InternalTransfer, Amount: dec("30"), Currency: "USD", AccountID: "usd", TargetAccountID: "kzt"},
			conv: kztRates,
			usd:  "-30", kzt: "13500",
		},
		{
			name: "converted amount wins over the rate",
			tx:   Transaction{Type: InternalTransfer, Amount: dec("30"), Currency: "USD", AccountID: "usd", TargetAccountID: "kzt", TargetConvertedAmount: ptr("13000")},
			conv: kztRates,
			usd:  "-30", kzt: "13000",
		},
		{
			name: "no rate falls back to the raw amount",
			tx:   Transaction{Type: InternalTransfer, Amount: dec("30"), Currency: "USD", AccountID: "usd", TargetAccountID: "kzt"},
			usd:  "-30", kzt: "30", approxKZT: true,
		},
		{
			name: "income in a foreign currency",
			tx:   Transaction{Type: Income, Amount: dec("1"), Currency: "EUR", AccountID: "usd"},
			conv: kztRates,
			usd:  "1.11", kzt: "0",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Recompute(accounts, []Transaction{tc.tx}, tc.conv)
			want := map[string]decimal.Decimal{"usd": dec(tc.usd), "kzt": dec(tc.kzt)}
			if diff := cmp.Diff(want, got.Amounts, decimalEqual); diff != "" {
				t.Errorf("Recompute() mismatch (-want +got):\n%s", diff)
			}
			if got.Approximate["kzt"] != tc.approxKZT {
				t.Errorf("Approximate[kzt] = %v, want %v", got.Approximate["kzt"], tc.approxKZT)
			}
		})
	}
}

func TestTransferLegsAreIndependent(t *testing.T) {
	// a EUR amount moved from a USD account to a KZT account is converted
	// twice, once per leg.
	tx := Transaction{Type: InternalTransfer, Amount: dec("9"), Currency: "EUR", AccountID: "a", TargetAccountID: "b"}
	debit, credit := TransferLegs(tx, "USD", "KZT", kztRates)
	if want := dec("-10"); !debit.Equal(want) {
		t.Errorf("debit = %v, want %v", debit, want)
	}
	if want := dec("4500"); !credit.Equal(want) {
		t.Errorf("credit = %v, want %v", credit, want)
	}
}

func TestTransferConservation(t *testing.T) {
	currencies := []string{"USD", "KZT", "EUR"}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 200 {
		from := currencies[rng.IntN(3)]
		to := currencies[rng.IntN(3)]
		cur := currencies[rng.IntN(3)]
		amount := decimal.New(rng.Int64N(10_000_000)+1, -2)
		tx := Transaction{Type: InternalTransfer, Amount: amount, Currency: cur, AccountID: "a", TargetAccountID: "b"}

		debit, credit := TransferLegs(tx, from, to, kztRates)
		// both legs back in KZT at the same fixed rates.
		d, _ := kztRates.ConvertSync(debit, from, "KZT")
		c, _ := kztRates.ConvertSync(credit, to, "KZT")
		// each leg is rounded to a hundredth of its currency.
		tolerance := kztRates[from].Add(kztRates[to]).Div(decimal.NewFromInt(200))
		if sum := d.Add(c).Abs(); sum.GreaterThan(tolerance) {
			t.Fatalf("transfer %d: %v %s from %s to %s: legs sum to %v KZT, tolerance %v", i, amount, cur, from, to, sum, tolerance)
		}
	}
}

func TestRecomputeIsOrderIndependent(t *testing.T) {
	accounts := []Account{
		{ID: "usd", Name: "USD", Currency: "USD"},
		{ID: "kzt", Name: "KZT", Currency: "KZT"},
		{ID: "eur", Name: "EUR", Currency: "EUR", Deposit: &DepositInfo{PrincipalBalance: dec("100")}},
	}
	ids := []string{"usd", "kzt", "eur"}
	types := []TxType{Income, Expense, InternalTransfer, DepositTopUp, DepositWithdrawal, DepositInterestAccrual}
	rng := rand.New(rand.NewPCG(3, 4))
	var txs []Transaction
	for range 300 {
		tx := Transaction{
			Type:      types[rng.IntN(len(types))],
			Amount:    decimal.New(rng.Int64N(100_000)+1, -2),
			Currency:  []string{"USD", "KZT", "EUR"}[rng.IntN(3)],
			AccountID: ids[rng.IntN(3)],
		}
		if tx.IsTransfer() {
			tx.TargetAccountID = ids[(slices.Index(ids, tx.AccountID)+1+rng.IntN(2))%3]
		}
		txs = append(txs, tx)
	}

	want := Recompute(accounts, txs, kztRates)
	for i := range 5 {
		shuffled := slices.Clone(txs)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := Recompute(accounts, shuffled, kztRates)
		// bit-identical: compare the exact representation.
		for id, w := range want.Amounts {
			if got.Amounts[id].String() != w.String() {
				t.Errorf("shuffle %d: balance[%s] = %v, want %v", i, id, got.Amounts[id], w)
			}
		}
	}
}
