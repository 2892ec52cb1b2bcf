// Package finance is the ledger core of a personal finance tracker.
//
// It derives account balances from a transaction log, materializes the
// transactions of recurring series (subscriptions, rent, salaries) as time
// advances, and posts the interest of deposit accounts once per posting
// period.
//
// The core functionalities include:
//   - Ledger: the single writer owning accounts, transactions, series and
//     their occurrences. Every mutation is validated, then followed by a full
//     balance recomputation.
//   - Balances: a pure, order independent fold over the transaction log,
//     converting amounts across currencies with cached rates and marking the
//     balances that fell back to unconverted amounts as approximate.
//   - Recurring series: an active, paused, archived state machine that
//     catches up every elapsed period exactly once.
//   - Deposits: piecewise simple interest across rate changes, with optional
//     monthly capitalization.
//   - Persistence: a Repository abstraction with a JSONL file implementation.
//
// This package serves as the foundational logic for the `fin` command-line
// tool.
package finance
