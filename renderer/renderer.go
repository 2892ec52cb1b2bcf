// Package renderer turns ledger state into markdown reports for the terminal.
package renderer

import (
	"fmt"
	"io"
	"slices"
	"strings"

	finance "github.com/dkicekeeper/AIFinanceManager-sub008"
	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/shopspring/decimal"
)

// SeriesLine is a recurring series with its next charge date.
type SeriesLine struct {
	Series  finance.RecurringSeries
	Next    date.Date
	HasNext bool
}

// DepositLine is a deposit account with its running interest.
type DepositLine struct {
	Account finance.Account
	// Interest accrued since the last posting, not yet in the balance.
	Interest decimal.Decimal
	Next     date.Date
	HasNext  bool
}

// names indexes account names by id.
func names(accounts []finance.Account) map[string]string {
	m := make(map[string]string, len(accounts))
	for _, a := range accounts {
		m[a.ID] = a.Name
	}
	return m
}

// BalancesMarkdown renders the balance of every account.
// Approximate balances are prefixed with "~".
func BalancesMarkdown(on date.Date, accounts []finance.Account, b finance.Balances) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Balances on %s\n\n", on)
	if len(accounts) == 0 {
		sb.WriteString("No accounts.\n")
		return sb.String()
	}
	table(&sb, "llr", "Account", "Kind", "Balance")
	for _, a := range accounts {
		kind := "account"
		if a.IsDeposit() {
			kind = "deposit"
		}
		balance := money(b.Of(a.ID), a.Currency)
		if b.Approximate[a.ID] {
			balance = "~" + balance
		}
		row(&sb, a.Name, kind, balance)
	}
	if len(b.Approximate) > 0 {
		sb.WriteString("\n~ some amounts had no exchange rate and were counted unconverted.\n")
	}
	return sb.String()
}

// Transaction renders a transaction to a single line.
func Transaction(tx finance.Transaction, accountNames map[string]string) string {
	name := func(id string) string {
		if n, ok := accountNames[id]; ok {
			return n
		}
		return id
	}
	m := tx.Money()
	switch tx.Type {
	case finance.Income:
		return fmt.Sprintf("Received %s on %s", m, name(tx.AccountID))
	case finance.Expense:
		return fmt.Sprintf("Spent %s from %s", m, name(tx.AccountID))
	case finance.InternalTransfer:
		return fmt.Sprintf("Moved %s from %s to %s", m, name(tx.AccountID), name(tx.TargetAccountID))
	case finance.DepositTopUp:
		return fmt.Sprintf("Topped up %s with %s", name(tx.AccountID), m)
	case finance.DepositWithdrawal:
		return fmt.Sprintf("Withdrew %s from %s", m, name(tx.AccountID))
	case finance.DepositInterestAccrual:
		return fmt.Sprintf("Interest of %s on %s", m, name(tx.AccountID))
	default:
		return string(tx.Type)
	}
}

// TransactionsMarkdown renders a list of transactions in the given order.
func TransactionsMarkdown(txs []finance.Transaction, accounts []finance.Account) string {
	var sb strings.Builder
	sb.WriteString("# Transactions\n\n")
	byID := names(accounts)
	// net flow per currency, transfers excluded.
	nets := make(map[string]finance.Money)
	section := Header(func(w io.Writer) {
		table(w, "llllr", "Date", "ID", "Category", "What", "Amount")
	}).Footer(func(w io.Writer) {
		fmt.Fprintf(w, "\n%d transactions.", len(txs))
		if net := netString(nets); net != "" {
			fmt.Fprintf(w, " Net %s.", net)
		}
		io.WriteString(w, "\n")
	})
	for _, tx := range txs {
		section.PrintHeader(&sb)
		amount := tx.Money()
		if tx.Type.IsOutflow() {
			amount = amount.Neg()
		}
		if !tx.IsTransfer() {
			nets[tx.Currency] = nets[tx.Currency].Add(amount)
		}
		category := tx.Category
		if tx.Subcategory != "" {
			category += " / " + tx.Subcategory
		}
		row(&sb, tx.Date.String(), shortID(tx.ID), category, Transaction(tx, byID), amount.SignedString())
	}
	section.PrintFooter(&sb)
	if len(txs) == 0 {
		sb.WriteString("No transactions.\n")
	}
	return sb.String()
}

// netString lists the non zero net amounts sorted by currency.
func netString(nets map[string]finance.Money) string {
	var all []finance.Money
	for _, m := range nets {
		if !m.IsZero() {
			all = append(all, m)
		}
	}
	slices.SortFunc(all, func(a, b finance.Money) int { return strings.Compare(a.Currency(), b.Currency()) })
	parts := make([]string, len(all))
	for i, m := range all {
		parts[i] = m.SignedString()
	}
	return strings.Join(parts, ", ")
}

// SeriesMarkdown renders recurring series grouped by status.
func SeriesMarkdown(lines []SeriesLine, accounts []finance.Account) string {
	var sb strings.Builder
	sb.WriteString("# Recurring series\n\n")
	byID := names(accounts)
	for _, status := range []finance.SeriesStatus{finance.StatusActive, finance.StatusPaused, finance.StatusArchived} {
		ConditionalBlock(&sb, func(w io.Writer) bool {
			fmt.Fprintf(w, "## %s\n\n", strings.ToUpper(string(status[:1]))+string(status[1:]))
			table(w, "lllllr", "ID", "Kind", "Description", "Account", "Next", "Amount")
			n := 0
			for _, l := range lines {
				s := l.Series
				if s.Status != status {
					continue
				}
				n++
				next := "-"
				if l.HasNext {
					next = l.Next.String()
				}
				row(w, shortID(s.ID), string(s.Kind), describe(s), byID[s.AccountID], next,
					fmt.Sprintf("%s / %s", finance.M(s.Amount, s.Currency), s.Frequency))
			}
			fmt.Fprintln(w)
			return n > 0
		})
	}
	if len(lines) == 0 {
		sb.WriteString("No recurring series.\n")
	}
	return sb.String()
}

func describe(s finance.RecurringSeries) string {
	switch {
	case s.Description != "":
		return s.Description
	case s.Category != "":
		return s.Category
	default:
		return string(s.Type)
	}
}

// DepositsMarkdown renders the terms and running interest of deposits.
func DepositsMarkdown(on date.Date, lines []DepositLine) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Deposits on %s\n\n", on)
	if len(lines) == 0 {
		sb.WriteString("No deposits.\n")
		return sb.String()
	}
	table(&sb, "llrrrl", "Deposit", "Bank", "Rate", "Principal", "Accrued", "Next posting")
	for _, l := range lines {
		a := l.Account
		d := a.Deposit
		next := "-"
		if l.HasNext {
			next = l.Next.String()
			if d.CapitalizationEnabled {
				next += " (capitalized)"
			}
		}
		row(&sb, a.Name, d.BankName, percent(d.RateOn(on)),
			money(d.PrincipalBalance, a.Currency), money(l.Interest, a.Currency), next)
	}
	return sb.String()
}

// shortID keeps the first block of a uuid.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
