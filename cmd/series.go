package cmd

import (
	"context"
	"flag"
	"fmt"

	finance "github.com/dkicekeeper/AIFinanceManager-sub008"
	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/dkicekeeper/AIFinanceManager-sub008/renderer"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// --- series Command ---

type seriesCmd struct {
	id          string
	kind        string
	txType      string
	account     string
	target      string
	amount      string
	currency    string
	category    string
	subcategory string
	memo        string
	frequency   string
	start       string
	end         string
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "create or edit a recurring series" }
func (*seriesCmd) Usage() string {
	return `fin series -a <account> -amount <amount> -freq <daily|weekly|monthly|yearly> [-start <date>] [-end <date>] [-kind <recurringExpense|subscription>] [-type <type>] [-to <account>] [-c <category>] [-sub <subcategory>] [-m <memo>]
fin series -id <series> [flags to change]

  Creates a recurring series and materializes the occurrences already due.
  Editing a series never rewrites past transactions. Changing its schedule
  forgets the occurrences planned after today.
`
}

func (c *seriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Series to edit (id, id prefix or description)")
	f.StringVar(&c.kind, "kind", string(finance.RecurringExpense), "Series kind")
	f.StringVar(&c.txType, "type", string(finance.Expense), "Type of the generated transactions")
	f.StringVar(&c.account, "a", "", "Account (id, id prefix or name)")
	f.StringVar(&c.target, "to", "", "Target account of a recurring transfer")
	f.StringVar(&c.amount, "amount", "", "Positive amount")
	f.StringVar(&c.currency, "currency", "", "Currency of the amount, defaults to the account's")
	f.StringVar(&c.category, "c", "", "Category")
	f.StringVar(&c.subcategory, "sub", "", "Subcategory")
	f.StringVar(&c.memo, "m", "", "Description")
	f.StringVar(&c.frequency, "freq", string(finance.Monthly), "Frequency")
	f.StringVar(&c.start, "start", date.Today().String(), "First occurrence (YYYY-MM-DD)")
	f.StringVar(&c.end, "end", "", "Last possible occurrence (YYYY-MM-DD)")
}

func (c *seriesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	set := setFlags(f)
	return run(ctx, true, func(s *session) error {
		if c.id == "" {
			if c.account == "" || c.amount == "" {
				return fmt.Errorf("%w: -a and -amount are required", errUsage)
			}
			var in finance.SeriesInput
			all := map[string]bool{"kind": true, "type": true, "a": true, "to": true, "amount": true, "currency": true, "c": true, "sub": true, "m": true, "freq": true, "start": true, "end": true}
			if err := c.apply(s.ledger, &in, all); err != nil {
				return err
			}
			rs, err := s.ledger.CreateRecurringSeries(in)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Created series %s with %d occurrences\n", rs.ID, len(s.ledger.Occurrences(rs.ID)))
			return nil
		}

		rs, err := findSeries(s.ledger, c.id)
		if err != nil {
			return err
		}
		in := rs.Input()
		if err := c.apply(s.ledger, &in, set); err != nil {
			return err
		}
		applyInput(&rs, in)
		if err := s.ledger.UpdateRecurringSeries(rs); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Updated series %s\n", rs.ID)
		return nil
	})
}

// applyInput copies the editable fields into a series.
func applyInput(rs *finance.RecurringSeries, in finance.SeriesInput) {
	rs.Kind = in.Kind
	rs.Type = in.Type
	rs.Amount = in.Amount
	rs.Currency = in.Currency
	rs.Category = in.Category
	rs.Subcategory = in.Subcategory
	rs.Description = in.Description
	rs.AccountID = in.AccountID
	rs.TargetAccountID = in.TargetAccountID
	rs.Frequency = in.Frequency
	rs.StartDate = in.StartDate
	rs.EndDate = in.EndDate
}

// apply copies the set flags into in.
func (c *seriesCmd) apply(l *finance.Ledger, in *finance.SeriesInput, set map[string]bool) error {
	var err error
	if set["kind"] {
		in.Kind = finance.SeriesKind(c.kind)
	}
	if set["type"] {
		if in.Type, err = finance.ParseTxType(c.txType); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
	}
	if set["a"] && c.account != "" {
		a, err := findAccount(l, c.account)
		if err != nil {
			return err
		}
		in.AccountID = a.ID
		if !set["currency"] || c.currency == "" {
			in.Currency = a.Currency
		}
	}
	if set["to"] {
		in.TargetAccountID = ""
		if c.target != "" {
			a, err := findAccount(l, c.target)
			if err != nil {
				return err
			}
			in.TargetAccountID = a.ID
		}
	}
	if set["amount"] {
		if in.Amount, err = decimal.NewFromString(c.amount); err != nil {
			return fmt.Errorf("%w: invalid amount %q", errUsage, c.amount)
		}
	}
	if set["currency"] && c.currency != "" {
		in.Currency = c.currency
	}
	if set["c"] {
		in.Category = c.category
	}
	if set["sub"] {
		in.Subcategory = c.subcategory
	}
	if set["m"] {
		in.Description = c.memo
	}
	if set["freq"] {
		if in.Frequency, err = finance.ParseFrequency(c.frequency); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
	}
	if set["start"] {
		if in.StartDate, err = date.Parse(c.start); err != nil {
			return fmt.Errorf("%w: invalid start date: %v", errUsage, err)
		}
	}
	if set["end"] {
		if in.EndDate, err = parseDay(c.end, date.Date{}); err != nil {
			return fmt.Errorf("%w: invalid end date: %v", errUsage, err)
		}
	}
	return nil
}

// --- series-list Command ---

type seriesListCmd struct{}

func (*seriesListCmd) Name() string     { return "series-list" }
func (*seriesListCmd) Synopsis() string { return "list recurring series with their next charge" }
func (*seriesListCmd) Usage() string {
	return `fin series-list

  Lists every recurring series grouped by status, with the next date it will
  charge.
`
}

func (*seriesListCmd) SetFlags(*flag.FlagSet) {}

func (*seriesListCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, false, func(s *session) error {
		var lines []renderer.SeriesLine
		for _, rs := range s.ledger.AllSeries() {
			line := renderer.SeriesLine{Series: rs}
			line.Next, line.HasNext = s.ledger.NextChargeDate(rs.ID)
			lines = append(lines, line)
		}
		printMarkdown(renderer.SeriesMarkdown(lines, s.ledger.Accounts()))
		return nil
	})
}

// --- series state Commands ---

// seriesStateCmd applies a life cycle operation to series.
type seriesStateCmd struct {
	name, synopsis, usage, done string
	apply                       func(l *finance.Ledger, id string) error
}

func (c *seriesStateCmd) Name() string     { return c.name }
func (c *seriesStateCmd) Synopsis() string { return c.synopsis }
func (c *seriesStateCmd) Usage() string {
	return fmt.Sprintf("fin %s <series>...\n\n  %s\n", c.name, c.usage)
}

func (*seriesStateCmd) SetFlags(*flag.FlagSet) {}

func (c *seriesStateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, true, func(s *session) error {
		for _, ref := range f.Args() {
			rs, err := findSeries(s.ledger, ref)
			if err != nil {
				return err
			}
			if err := c.apply(s.ledger, rs.ID); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s series %s\n", c.done, rs.ID)
		}
		return nil
	})
}

func stopSeriesCmd() *seriesStateCmd {
	return &seriesStateCmd{
		name:     "series-stop",
		synopsis: "stop a recurring series",
		usage:    "Archives the series and deletes its occurrences planned after today. Past transactions are kept.",
		done:     "Stopped",
		apply:    (*finance.Ledger).StopRecurringSeries,
	}
}

func pauseSeriesCmd() *seriesStateCmd {
	return &seriesStateCmd{
		name:     "series-pause",
		synopsis: "pause a subscription",
		usage:    "Stops generating transactions until the series is resumed.",
		done:     "Paused",
		apply:    (*finance.Ledger).PauseSubscription,
	}
}

func resumeSeriesCmd() *seriesStateCmd {
	return &seriesStateCmd{
		name:     "series-resume",
		synopsis: "resume a paused subscription",
		usage:    "Reactivates the series and generates the periods elapsed during the pause.",
		done:     "Resumed",
		apply:    (*finance.Ledger).ResumeSubscription,
	}
}

func deleteSeriesCmd() *seriesStateCmd {
	return &seriesStateCmd{
		name:     "series-rm",
		synopsis: "delete a recurring series and its transactions",
		usage:    "Deletes the series, its occurrences and every transaction it generated.",
		done:     "Deleted",
		apply:    (*finance.Ledger).DeleteRecurringSeries,
	}
}

// --- generate Command ---

type generateCmd struct {
	series string
	until  string
}

func (*generateCmd) Name() string     { return "generate" }
func (*generateCmd) Synopsis() string { return "materialize due recurring transactions" }
func (*generateCmd) Usage() string {
	return `fin generate [-series <series> [-until <date>]]

  Generates the transactions of every active series due up to today, or of a
  single series up to a given date. Running it twice generates nothing the
  second time.
`
}

func (c *generateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.series, "series", "", "Only this series")
	f.StringVar(&c.until, "until", "", "Generate up to this date included, defaults to today (requires -series)")
}

func (c *generateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, true, func(s *session) error {
		if c.series == "" {
			if c.until != "" {
				return fmt.Errorf("%w: -until requires -series", errUsage)
			}
			n := s.ledger.GenerateRecurringTransactions()
			fmt.Fprintf(stdout, "Generated %d transactions\n", n)
			return nil
		}
		rs, err := findSeries(s.ledger, c.series)
		if err != nil {
			return err
		}
		until, err := parseDay(c.until, s.ledger.Today())
		if err != nil {
			return fmt.Errorf("%w: invalid date: %v", errUsage, err)
		}
		n, err := s.ledger.GenerateDueOccurrences(rs.ID, until)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Generated %d transactions\n", n)
		return nil
	})
}
