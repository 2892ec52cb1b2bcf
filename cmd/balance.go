package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/dkicekeeper/AIFinanceManager-sub008/renderer"
	"github.com/google/subcommands"
)

// --- balance Command ---

type balanceCmd struct {
	noCatchUp bool
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "show the balance of every account" }
func (*balanceCmd) Usage() string {
	return `fin balance [-no-catch-up]

  Materializes due recurring transactions and posts deposit interest, then
  prints the balance of every account. Balances marked with ~ contain amounts
  that could not be converted for lack of an exchange rate.
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noCatchUp, "no-catch-up", false, "Do not generate recurring transactions nor post interest")
}

func (c *balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, !c.noCatchUp, func(s *session) error {
		if !c.noCatchUp {
			s.catchUp()
		}
		printMarkdown(renderer.BalancesMarkdown(s.ledger.Today(), s.ledger.Accounts(), s.ledger.Balances()))
		return nil
	})
}

// --- interest Command ---

type interestCmd struct{}

func (*interestCmd) Name() string     { return "interest" }
func (*interestCmd) Synopsis() string { return "show deposits with their interest accrued to date" }
func (*interestCmd) Usage() string {
	return `fin interest

  Prints every deposit with its current rate, principal, the interest accrued
  since the last posting and the next posting date.
`
}

func (*interestCmd) SetFlags(*flag.FlagSet) {}

func (*interestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, false, func(s *session) error {
		var lines []renderer.DepositLine
		for _, a := range s.ledger.Accounts() {
			if !a.IsDeposit() {
				continue
			}
			line := renderer.DepositLine{Account: a, Interest: s.ledger.CalculateInterestToToday(*a.Deposit)}
			line.Next, line.HasNext = s.ledger.NextPostingDate(a.ID)
			lines = append(lines, line)
		}
		printMarkdown(renderer.DepositsMarkdown(s.ledger.Today(), lines))
		return nil
	})
}

// --- reconcile Command ---

type reconcileCmd struct{}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "post the interest of deposits up to today" }
func (*reconcileCmd) Usage() string {
	return `fin reconcile

  Posts one interest accrual per deposit and per posting date crossed since
  the last run. Running it twice posts nothing the second time.
`
}

func (*reconcileCmd) SetFlags(*flag.FlagSet) {}

func (*reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, true, func(s *session) error {
		posted := s.ledger.ReconcileDeposits()
		if len(posted) == 0 {
			fmt.Fprintln(stdout, "No interest to post.")
			return nil
		}
		printMarkdown(renderer.TransactionsMarkdown(posted, s.ledger.Accounts()))
		return nil
	})
}
