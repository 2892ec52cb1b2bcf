// Command fin manages a personal finance ledger from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/dkicekeeper/AIFinanceManager-sub008/cmd"
	"github.com/dkicekeeper/AIFinanceManager-sub008/docs"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	// shell completion: exits when invoked by the shell (COMP_LINE is set).
	completion(commander).Complete(commander.Name())

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// completion describes every registered subcommand and its flags.
func completion(c *subcommands.Commander) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: map[string]complete.Predictor{},
	}
	flag.CommandLine.VisitAll(func(f *flag.Flag) {
		root.Flags[f.Name] = predict.Something
	})
	root.Flags["ledger"] = predict.Files("*")

	c.VisitCommands(func(_ *subcommands.CommandGroup, sc subcommands.Command) {
		fs := flag.NewFlagSet(sc.Name(), flag.ContinueOnError)
		sc.SetFlags(fs)
		sub := &complete.Command{Flags: map[string]complete.Predictor{}}
		fs.VisitAll(func(f *flag.Flag) {
			switch f.Name {
			case "i", "o":
				sub.Flags[f.Name] = predict.Files("*.jsonl")
			case "type":
				sub.Flags[f.Name] = predict.Set{"income", "expense", "internalTransfer", "depositTopUp", "depositWithdrawal", "depositInterestAccrual"}
			case "freq":
				sub.Flags[f.Name] = predict.Set{"daily", "weekly", "monthly", "yearly"}
			case "kind":
				sub.Flags[f.Name] = predict.Set{"recurringExpense", "subscription"}
			default:
				if _, ok := f.Value.(interface{ IsBoolFlag() bool }); ok {
					sub.Flags[f.Name] = predict.Nothing
				} else {
					sub.Flags[f.Name] = predict.Something
				}
			}
		})
		if sc.Name() == "topic" {
			topics, _ := docs.Topics()
			sub.Args = predict.Set(topics)
		}
		root.Sub[sc.Name()] = sub
	})
	return root
}
