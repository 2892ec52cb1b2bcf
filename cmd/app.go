// Package cmd implements the CLI application to manage a personal finance ledger.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	finance "github.com/dkicekeeper/AIFinanceManager-sub008"
	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/dkicekeeper/AIFinanceManager-sub008/internal/config"
	"github.com/dkicekeeper/AIFinanceManager-sub008/internal/logger"
	"github.com/dkicekeeper/AIFinanceManager-sub008/rates"
	"github.com/dkicekeeper/AIFinanceManager-sub008/store/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&accountCmd{}, "accounts")
	c.Register(&balanceCmd{}, "accounts")
	c.Register(&interestCmd{}, "accounts")
	c.Register(&reconcileCmd{}, "accounts")

	c.Register(&addCmd{}, "transactions")
	c.Register(&rmCmd{}, "transactions")
	c.Register(&txCmd{}, "transactions")

	c.Register(&seriesCmd{}, "recurring")
	c.Register(&seriesListCmd{}, "recurring")
	c.Register(stopSeriesCmd(), "recurring")
	c.Register(pauseSeriesCmd(), "recurring")
	c.Register(resumeSeriesCmd(), "recurring")
	c.Register(deleteSeriesCmd(), "recurring")
	c.Register(&generateCmd{}, "recurring")

	c.Register(&exportCmd{}, "storage")
	c.Register(&importCmd{}, "storage")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var ledgerPath = flag.String("ledger", "", "Path to the ledger. Overrides the configuration file.")
var logLevel = flag.String("log", "", "Log level (debug, info, warn, error). Overrides the configuration file.")
var rawOutput = flag.Bool("raw", false, "Print plain markdown instead of styled terminal output.")

// stdout receives the reports.
var stdout io.Writer = os.Stdout

// session is the state shared by a single command run.
type session struct {
	cfg    config.Config
	log    zerolog.Logger
	rates  *rates.Service
	repo   finance.Repository
	ledger *finance.Ledger
	closer []func() error
}

// openSession loads the configuration and the ledger.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if *ledgerPath != "" {
		cfg.Ledger.Path = *ledgerPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	s := &session{cfg: cfg, log: logger.New(cfg.Log.Level)}

	if err := s.openRates(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openRepository(); err != nil {
		s.Close()
		return nil, err
	}
	ctx = logger.WithContext(ctx, s.log)
	s.ledger, err = finance.LoadLedger(ctx, s.repo, finance.WithConverter(s.rates), finance.WithLogger(s.log))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.warmRates(ctx)
	return s, nil
}

// openRates builds the conversion service from the configuration.
func (s *session) openRates() error {
	cfg := s.cfg.Rates
	opts := []rates.Option{rates.WithTTL(cfg.TTL), rates.WithLogger(s.log)}
	switch {
	case cfg.URL != "":
		opts = append(opts, rates.WithSource(&rates.JSONSource{URL: cfg.URL, Path: cfg.Path, Invert: cfg.Invert}))
	case len(cfg.Static) > 0:
		static := make(rates.StaticSource, len(cfg.Static))
		for cur, v := range cfg.Static {
			r, err := decimal.NewFromString(v)
			if err != nil {
				return fmt.Errorf("invalid static rate for %s: %w", cur, err)
			}
			static[cur] = r
		}
		opts = append(opts, rates.WithSource(static))
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		s.closer = append(s.closer, client.Close)
		opts = append(opts, rates.WithSharedCache(rates.NewRedisCache(client, cfg.TTL)))
	}
	s.rates = rates.NewService(cfg.Base, opts...)
	return nil
}

// openRepository opens the configured storage backend.
func (s *session) openRepository() error {
	switch s.cfg.Ledger.Backend {
	case "sqlite":
		db, err := sqlite.Open(s.cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("could not open ledger database %q: %w", s.cfg.Ledger.Path, err)
		}
		s.closer = append(s.closer, db.Close)
		s.repo = db
	default:
		s.repo = finance.NewFileRepository(s.cfg.Ledger.Path)
	}
	return nil
}

// warmRates fetches the rate of every currency in use, then recomputes the
// balances with them. Missing rates only degrade balances to approximate.
func (s *session) warmRates(ctx context.Context) {
	seen := map[string]bool{s.rates.Base(): true}
	fetch := func(cur string) {
		cur = strings.ToUpper(cur)
		if seen[cur] {
			return
		}
		seen[cur] = true
		if _, err := s.rates.Rate(ctx, cur); err != nil {
			s.log.Warn().Err(err).Str("currency", cur).Msg("no exchange rate")
		}
	}
	for _, a := range s.ledger.Accounts() {
		fetch(a.Currency)
	}
	for tx := range s.ledger.Transactions() {
		fetch(tx.Currency)
	}
	s.ledger.RecalculateAccountBalances()
}

// catchUp materializes due recurring transactions and posts deposit interest.
// It reports whether anything was written.
func (s *session) catchUp() bool {
	n := s.ledger.GenerateRecurringTransactions()
	posted := s.ledger.ReconcileDeposits()
	if n > 0 || len(posted) > 0 {
		s.log.Info().Int("occurrences", n).Int("accruals", len(posted)).Msg("ledger caught up")
		return true
	}
	return false
}

// Save persists the ledger.
func (s *session) Save(ctx context.Context) error {
	if err := finance.SaveLedger(ctx, s.repo, s.ledger); err != nil {
		return fmt.Errorf("could not save ledger %q: %w", s.cfg.Ledger.Path, err)
	}
	return nil
}

// Close releases the storage and cache connections.
func (s *session) Close() error {
	var errs []error
	for _, c := range s.closer {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// run opens a session, calls fn and closes the session. When save is true
// the ledger is persisted after fn succeeds.
func run(ctx context.Context, save bool, fn func(s *session) error) subcommands.ExitStatus {
	s, err := openSession(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	if err := fn(s); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	if save {
		if err := s.Save(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

var errUsage = errors.New("usage error")

// printMarkdown renders markdown to the terminal.
func printMarkdown(md string) {
	if *rawOutput {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}

// findAccount resolves an account by id, id prefix or case insensitive name.
func findAccount(l *finance.Ledger, ref string) (finance.Account, error) {
	if a, ok := l.Account(ref); ok {
		return a, nil
	}
	var found []finance.Account
	for _, a := range l.Accounts() {
		if strings.EqualFold(a.Name, ref) || strings.HasPrefix(a.ID, ref) {
			found = append(found, a)
		}
	}
	switch len(found) {
	case 0:
		return finance.Account{}, fmt.Errorf("account %q: %w", ref, finance.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return finance.Account{}, fmt.Errorf("account %q is ambiguous, %d accounts match", ref, len(found))
	}
}

// findTransaction resolves a transaction by id or id prefix.
func findTransaction(l *finance.Ledger, ref string) (finance.Transaction, error) {
	if tx, ok := l.Transaction(ref); ok {
		return tx, nil
	}
	var found []finance.Transaction
	for tx := range l.Transactions(func(tx finance.Transaction) bool { return strings.HasPrefix(tx.ID, ref) }) {
		found = append(found, tx)
	}
	switch len(found) {
	case 0:
		return finance.Transaction{}, fmt.Errorf("transaction %q: %w", ref, finance.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return finance.Transaction{}, fmt.Errorf("transaction %q is ambiguous, %d transactions match", ref, len(found))
	}
}

// findSeries resolves a series by id, id prefix or case insensitive description.
func findSeries(l *finance.Ledger, ref string) (finance.RecurringSeries, error) {
	if s, ok := l.Series(ref); ok {
		return s, nil
	}
	var found []finance.RecurringSeries
	for _, s := range l.AllSeries() {
		if strings.HasPrefix(s.ID, ref) || (s.Description != "" && strings.EqualFold(s.Description, ref)) {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return finance.RecurringSeries{}, fmt.Errorf("series %q: %w", ref, finance.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return finance.RecurringSeries{}, fmt.Errorf("series %q is ambiguous, %d series match", ref, len(found))
	}
}

// parseDay parses an optional date flag, absolute or relative to today
// ("-1d", "+1m"). def is used when s is empty.
func parseDay(s string, def date.Date) (date.Date, error) {
	if s == "" {
		return def, nil
	}
	return date.ParseRelative(s, date.Today())
}

// setFlags returns the names of the flags explicitly set on the command line.
func setFlags(f *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}
