package cmd

import (
	"context"
	"flag"
	"fmt"

	finance "github.com/dkicekeeper/AIFinanceManager-sub008"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type accountCmd struct {
	id       string
	name     string
	currency string
	order    int
	rm       bool

	deposit    bool
	bank       string
	principal  string
	rate       string
	from       string
	postingDay int
	capitalize bool
	opened     string
}

func (*accountCmd) Name() string     { return "account" }
func (*accountCmd) Synopsis() string { return "create, update or delete an account" }
func (*accountCmd) Usage() string {
	return `fin account -name <name> -currency <code> [-order <n>]
fin account -deposit -name <name> -currency <code> -principal <amount> -rate <percent> [-posting-day <day>] [-capitalize] [-opened <date>] [-bank <name>]
fin account -id <account> [-name <name>] [-order <n>] [-rate <percent> [-from <date>]]
fin account -id <account> -rm

  Creates an account, or updates the one designated by -id.
  On a deposit, -rate with -from records a rate change effective from that date.
  Deleting an account deletes its transactions and archives the series using it.
`
}

func (c *accountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Account to update (id, id prefix or name)")
	f.StringVar(&c.name, "name", "", "Account name")
	f.StringVar(&c.currency, "currency", "", "ISO 4217 currency code")
	f.IntVar(&c.order, "order", 0, "Display order")
	f.BoolVar(&c.rm, "rm", false, "Delete the account")

	f.BoolVar(&c.deposit, "deposit", false, "Create an interest bearing deposit")
	f.StringVar(&c.bank, "bank", "", "Bank holding the deposit")
	f.StringVar(&c.principal, "principal", "0", "Initial principal of the deposit")
	f.StringVar(&c.rate, "rate", "", "Annual interest rate in percent")
	f.StringVar(&c.from, "from", "", "Date a new rate applies from (YYYY-MM-DD)")
	f.IntVar(&c.postingDay, "posting-day", 31, "Day of month interest is posted, clamped to the month length")
	f.BoolVar(&c.capitalize, "capitalize", false, "Fold posted interest into the principal")
	f.StringVar(&c.opened, "opened", "", "Opening date of the deposit, defaults to today")
}

func (c *accountCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	set := setFlags(f)
	return run(ctx, true, func(s *session) error {
		if c.id == "" {
			return c.create(s, set)
		}
		a, err := findAccount(s.ledger, c.id)
		if err != nil {
			return err
		}
		if c.rm {
			if err := s.ledger.DeleteAccount(a.ID); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deleted account %s\n", a.Name)
			return nil
		}
		if err := c.update(&a, set); err != nil {
			return err
		}
		if err := s.ledger.UpdateAccount(a); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Updated account %s\n", a.Name)
		return nil
	})
}

func (c *accountCmd) create(s *session, set map[string]bool) error {
	if c.name == "" || c.currency == "" {
		return fmt.Errorf("%w: -name and -currency are required", errUsage)
	}
	a := finance.Account{Name: c.name, Currency: c.currency}
	if set["order"] {
		a.Order = &c.order
	}
	if c.deposit {
		principal, err := decimal.NewFromString(c.principal)
		if err != nil {
			return fmt.Errorf("%w: invalid principal: %v", errUsage, err)
		}
		rate, err := decimal.NewFromString(c.rate)
		if err != nil {
			return fmt.Errorf("%w: invalid rate: %v", errUsage, err)
		}
		opened, err := parseDay(c.opened, s.ledger.Today())
		if err != nil {
			return fmt.Errorf("%w: invalid opening date: %v", errUsage, err)
		}
		a.Deposit = &finance.DepositInfo{
			BankName:              c.bank,
			PrincipalBalance:      principal,
			InterestRateAnnual:    rate,
			InterestPostingDay:    c.postingDay,
			CapitalizationEnabled: c.capitalize,
			OpenedOn:              opened,
		}
	}
	a, err := s.ledger.AddAccount(a)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created account %s (%s)\n", a.Name, a.ID)
	return nil
}

// update applies the explicitly set flags to a.
func (c *accountCmd) update(a *finance.Account, set map[string]bool) error {
	if set["name"] {
		a.Name = c.name
	}
	if set["currency"] {
		a.Currency = c.currency
	}
	if set["order"] {
		a.Order = &c.order
	}
	if a.Deposit == nil {
		if set["rate"] || set["bank"] || set["capitalize"] || set["posting-day"] {
			return fmt.Errorf("%w: %s is not a deposit", errUsage, a.Name)
		}
		return nil
	}
	d := a.Deposit
	if set["bank"] {
		d.BankName = c.bank
	}
	if set["capitalize"] {
		d.CapitalizationEnabled = c.capitalize
	}
	if set["posting-day"] {
		d.InterestPostingDay = c.postingDay
	}
	if !set["rate"] {
		return nil
	}
	rate, err := decimal.NewFromString(c.rate)
	if err != nil {
		return fmt.Errorf("%w: invalid rate: %v", errUsage, err)
	}
	if c.from == "" {
		d.InterestRateAnnual = rate
		return nil
	}
	from, err := parseDay(c.from, d.OpenedOn)
	if err != nil {
		return fmt.Errorf("%w: invalid date: %v", errUsage, err)
	}
	d.RateHistory = append(d.RateHistory, finance.RateChange{EffectiveFrom: from, AnnualRate: rate})
	return nil
}
