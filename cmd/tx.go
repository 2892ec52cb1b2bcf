package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	finance "github.com/dkicekeeper/AIFinanceManager-sub008"
	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/dkicekeeper/AIFinanceManager-sub008/renderer"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// --- add Command ---

type addCmd struct {
	id          string
	date        string
	time        string
	txType      string
	account     string
	target      string
	amount      string
	currency    string
	category    string
	subcategory string
	memo        string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a transaction or edit a recorded one" }
func (*addCmd) Usage() string {
	return `fin add -type <type> -a <account> -amount <amount> [-currency <code>] [-to <account>] [-d <date>] [-t <hh:mm>] [-c <category>] [-sub <subcategory>] [-m <memo>]
fin add -id <transaction> [flags to change]

  Records a transaction. Types are income, expense, internalTransfer,
  depositTopUp, depositWithdrawal and depositInterestAccrual.
  The currency defaults to the account's. Amounts in another currency are
  converted with the current exchange rate when it is available.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Transaction to edit (id or id prefix)")
	f.StringVar(&c.date, "d", date.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.time, "t", "", "Optional time of day (HH:MM)")
	f.StringVar(&c.txType, "type", string(finance.Expense), "Transaction type")
	f.StringVar(&c.account, "a", "", "Account (id, id prefix or name)")
	f.StringVar(&c.target, "to", "", "Target account of a transfer")
	f.StringVar(&c.amount, "amount", "", "Positive amount")
	f.StringVar(&c.currency, "currency", "", "Currency of the amount, defaults to the account's")
	f.StringVar(&c.category, "c", "", "Category")
	f.StringVar(&c.subcategory, "sub", "", "Subcategory")
	f.StringVar(&c.memo, "m", "", "Description")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	set := setFlags(f)
	return run(ctx, true, func(s *session) error {
		var tx finance.Transaction
		if c.id != "" {
			var err error
			if tx, err = findTransaction(s.ledger, c.id); err != nil {
				return err
			}
		} else {
			if c.account == "" || c.amount == "" {
				return fmt.Errorf("%w: -a and -amount are required", errUsage)
			}
			// every flag applies to a new transaction.
			set = map[string]bool{"d": true, "t": true, "type": true, "a": true, "to": true, "amount": true, "currency": true, "c": true, "sub": true, "m": true}
		}
		if err := c.apply(s.ledger, &tx, set); err != nil {
			return err
		}
		if c.id != "" {
			if err := s.ledger.UpdateTransaction(tx); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Updated transaction %s\n", tx.ID)
			return nil
		}
		tx, err := s.ledger.AddTransactionContext(ctx, tx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Recorded transaction %s\n", tx.ID)
		return nil
	})
}

// apply copies the set flags into tx.
func (c *addCmd) apply(l *finance.Ledger, tx *finance.Transaction, set map[string]bool) error {
	var err error
	if set["d"] {
		if tx.Date, err = date.Parse(c.date); err != nil {
			return fmt.Errorf("%w: invalid date: %v", errUsage, err)
		}
	}
	if set["t"] {
		tx.Time = c.time
	}
	if set["type"] {
		if tx.Type, err = finance.ParseTxType(c.txType); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
	}
	if set["a"] && c.account != "" {
		a, err := findAccount(l, c.account)
		if err != nil {
			return err
		}
		tx.AccountID = a.ID
		if !set["currency"] || c.currency == "" {
			tx.Currency = a.Currency
		}
	}
	if set["to"] {
		tx.TargetAccountID = ""
		if c.target != "" {
			a, err := findAccount(l, c.target)
			if err != nil {
				return err
			}
			tx.TargetAccountID = a.ID
		}
	}
	if set["amount"] {
		if tx.Amount, err = decimal.NewFromString(c.amount); err != nil {
			return fmt.Errorf("%w: invalid amount %q", errUsage, c.amount)
		}
	}
	if set["currency"] && c.currency != "" {
		tx.Currency = c.currency
	}
	if set["c"] {
		tx.Category = c.category
	}
	if set["sub"] {
		tx.Subcategory = c.subcategory
	}
	if set["m"] {
		tx.Description = c.memo
	}
	return nil
}

// --- rm Command ---

type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete transactions" }
func (*rmCmd) Usage() string {
	return `fin rm <transaction>...

  Deletes transactions by id or id prefix. Deleting a transaction generated by
  a recurring series also forgets its occurrence.
`
}

func (*rmCmd) SetFlags(*flag.FlagSet) {}

func (c *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, true, func(s *session) error {
		for _, ref := range f.Args() {
			tx, err := findTransaction(s.ledger, ref)
			if err != nil {
				return err
			}
			if err := s.ledger.DeleteTransaction(tx); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deleted transaction %s\n", tx.ID)
		}
		return nil
	})
}

// --- tx Command ---

type txCmd struct {
	account string
	txType  string
	series  string
	start   string
	end     string
	period  string
	head    int
	tail    int
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list the transactions in the ledger" }
func (*txCmd) Usage() string {
	return `fin tx [-a <account>] [-type <type>] [-series <series>] [-s <start_date>] [-d <end_date>] [-p <period>] [-head <n>] [-tail <n>]

  Lists transactions from the ledger, with options for filtering and limiting the output.
  Dates may be relative to today: -s -1m lists the last month. -p selects the
  whole day, week, month, quarter or year containing the end date.
`
}

func (p *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.account, "a", "", "Only transactions touching this account.")
	f.StringVar(&p.txType, "type", "", "Only transactions of this type.")
	f.StringVar(&p.series, "series", "", "Only transactions generated by this series.")
	f.StringVar(&p.start, "s", "", "The start date of the range.")
	f.StringVar(&p.end, "d", "", "The end date of the range.")
	f.StringVar(&p.period, "p", "", "The period containing the end date (day, week, month, quarter, year).")
	f.IntVar(&p.head, "head", 0, "Show only the first N transactions.")
	f.IntVar(&p.tail, "tail", 0, "Show only the last N transactions.")
}

func (p *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.head > 0 && p.tail > 0 {
		fmt.Fprintln(os.Stderr, "Error: -head and -tail flags cannot be used together.")
		return subcommands.ExitUsageError
	}
	return run(ctx, false, func(s *session) error {
		var filters []func(finance.Transaction) bool
		if p.account != "" {
			a, err := findAccount(s.ledger, p.account)
			if err != nil {
				return err
			}
			filters = append(filters, finance.ByAccount(a.ID))
		}
		if p.txType != "" {
			t, err := finance.ParseTxType(p.txType)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			filters = append(filters, finance.ByType(t))
		}
		if p.series != "" {
			rs, err := findSeries(s.ledger, p.series)
			if err != nil {
				return err
			}
			filters = append(filters, finance.BySeries(rs.ID))
		}
		if p.period != "" {
			period, err := date.ParsePeriod(p.period)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			end, err := parseDay(p.end, s.ledger.Today())
			if err != nil {
				return fmt.Errorf("%w: invalid end date: %v", errUsage, err)
			}
			filters = append(filters, finance.InRange(period.Range(end)))
		} else if p.start != "" || p.end != "" {
			from, err := parseDay(p.start, date.Date{})
			if err != nil {
				return fmt.Errorf("%w: invalid start date: %v", errUsage, err)
			}
			to, err := parseDay(p.end, date.Date{})
			if err != nil {
				return fmt.Errorf("%w: invalid end date: %v", errUsage, err)
			}
			filters = append(filters, finance.InRange(date.NewRange(from, to)))
		}

		var transactions []finance.Transaction
		for tx := range s.ledger.Transactions(filters...) {
			transactions = append(transactions, tx)
		}
		if p.head > 0 && len(transactions) > p.head {
			transactions = transactions[:p.head]
		}
		if p.tail > 0 && len(transactions) > p.tail {
			transactions = transactions[len(transactions)-p.tail:]
		}
		printMarkdown(renderer.TransactionsMarkdown(transactions, s.ledger.Accounts()))
		return nil
	})
}
