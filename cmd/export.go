package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	finance "github.com/dkicekeeper/AIFinanceManager-sub008"
	"github.com/google/subcommands"
)

// --- export Command ---

type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the whole ledger as JSONL" }
func (*exportCmd) Usage() string {
	return `fin export [-o <file>]

  Writes accounts, series, transactions and occurrences in canonical JSONL
  form, to stdout by default. Combined with import it moves a ledger between
  storage backends.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file, defaults to stdout")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, false, func(s *session) error {
		if c.output == "" {
			return finance.EncodeSnapshot(stdout, s.ledger.Snapshot())
		}
		if err := finance.NewFileRepository(c.output).Save(ctx, s.ledger.Snapshot()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Ledger exported to %s\n", c.output)
		return nil
	})
}

// --- import Command ---

type importCmd struct {
	input string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace the ledger with a JSONL export" }
func (*importCmd) Usage() string {
	return `fin import -i <file>

  Replaces the configured ledger with the content of a file written by export.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.input, "i", "", "JSONL file to import")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.input == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, true, func(s *session) error {
		in, err := os.Open(c.input)
		if err != nil {
			return err
		}
		defer in.Close()
		snap, err := finance.DecodeSnapshot(in)
		if err != nil {
			return fmt.Errorf("could not decode %q: %w", c.input, err)
		}
		s.ledger.Restore(snap)
		s.warmRates(ctx)
		fmt.Fprintf(stdout, "Imported %d accounts, %d transactions and %d series\n", len(snap.Accounts), len(snap.Transactions), len(snap.Series))
		return nil
	})
}
