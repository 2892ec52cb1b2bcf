package finance

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dkicekeeper/AIFinanceManager-sub008/date"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ChangeKind tells what a mutation touched.
type ChangeKind int

const (
	AccountsChanged ChangeKind = iota + 1
	TransactionsChanged
	SeriesChanged
)

// Change is sent to the change hook after every successful mutation. Balances
// are already recomputed when it is delivered.
type Change struct {
	Kind ChangeKind
	ID   string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithConverter sets the currency conversion service.
func WithConverter(c Converter) Option { return func(l *Ledger) { l.conv = c } }

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option { return func(l *Ledger) { l.log = log } }

// WithClock sets the time source. "Today" is the calendar day of now().
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithChangeHook registers a function called after each mutation.
// The hook runs outside the ledger lock and may read from the ledger.
func WithChangeHook(hook func(Change)) Option { return func(l *Ledger) { l.hook = hook } }

// Ledger owns accounts, transactions, recurring series and their occurrences.
//
// All mutations go through its methods and are serialized; each one ends
// with a full balance recomputation. Transactions are kept in chronological
// order (date, then creation time).
type Ledger struct {
	mu sync.Mutex

	accounts     []Account
	transactions []Transaction
	series       []RecurringSeries
	occurrences  []Occurrence
	balances     Balances

	conv     Converter
	log      zerolog.Logger
	now      func() time.Time
	hook     func(Change)
	validate *validator.Validate
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		accounts:     make([]Account, 0),
		transactions: make([]Transaction, 0),
		series:       make([]RecurringSeries, 0),
		occurrences:  make([]Occurrence, 0),
		log:          zerolog.Nop(),
		now:          time.Now,
		validate:     newValidator(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.recompute()
	return l
}

func (l *Ledger) today() date.Date { return date.FromTime(l.now()) }

// Today returns the ledger's current day.
func (l *Ledger) Today() date.Date { return l.today() }

// notify delivers a change outside the lock. It is deferred before Lock so
// that it runs after Unlock.
func (l *Ledger) notify(c *Change) {
	if l.hook != nil && c.Kind != 0 {
		l.hook(*c)
	}
}

// --- accounts ---

func (l *Ledger) accountIndex(id string) int {
	return slices.IndexFunc(l.accounts, func(a Account) bool { return a.ID == id })
}

func (l *Ledger) account(id string) (Account, bool) {
	if i := l.accountIndex(id); i >= 0 {
		return l.accounts[i], true
	}
	return Account{}, false
}

// Account returns a copy of an account with its current balance.
func (l *Ledger) Account(id string) (Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.account(id)
	return a.clone(), ok
}

// Accounts returns all accounts sorted by Order (unset last) then name.
func (l *Ledger) Accounts() []Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a.clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].Order, out[j].Order
		switch {
		case oi != nil && oj != nil && *oi != *oj:
			return *oi < *oj
		case oi != nil && oj == nil:
			return true
		case oi == nil && oj != nil:
			return false
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// AddAccount validates and stores a new account. An empty ID is generated.
func (l *Ledger) AddAccount(a Account) (Account, error) {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	a = a.clone()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if l.accountIndex(a.ID) >= 0 {
		return Account{}, invalid(MissingField, "id", "account %q already exists", a.ID)
	}
	if err := l.validateAccount(&a); err != nil {
		return Account{}, err
	}
	l.accounts = append(l.accounts, a)
	l.recompute()
	change = Change{Kind: AccountsChanged, ID: a.ID}
	a, _ = l.account(a.ID)
	return a.clone(), nil
}

// UpdateAccount replaces an account's user editable fields. The balance is
// recomputed, never taken from the argument.
func (l *Ledger) UpdateAccount(a Account) error {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.accountIndex(a.ID)
	if i < 0 {
		return fmt.Errorf("account %q: %w", a.ID, ErrNotFound)
	}
	a = a.clone()
	if err := l.validateAccount(&a); err != nil {
		return err
	}
	previous := l.accounts[i]
	l.accounts[i] = a
	if previous.Currency != a.Currency {
		l.reconvert(a.ID)
	}
	l.recompute()
	change = Change{Kind: AccountsChanged, ID: a.ID}
	return nil
}

// reconvert drops the cached legs expressed in an account's previous
// currency and resolves them in its current one.
func (l *Ledger) reconvert(accountID string) {
	for j := range l.transactions {
		tx := &l.transactions[j]
		if !tx.Touches(accountID) {
			continue
		}
		if tx.AccountID == accountID {
			tx.ConvertedAmount = nil
		}
		if tx.TargetAccountID == accountID {
			tx.TargetConvertedAmount = nil
		}
		*tx = l.resolveConversions(*tx)
	}
}

// DeleteAccount removes an account and every transaction referring to it.
// Series bound to the account are archived and their occurrences for the
// removed transactions dropped.
func (l *Ledger) DeleteAccount(id string) error {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.accountIndex(id)
	if i < 0 {
		return fmt.Errorf("account %q: %w", id, ErrNotFound)
	}
	l.accounts = slices.Delete(l.accounts, i, i+1)

	removed := make(map[string]bool)
	l.transactions = slices.DeleteFunc(l.transactions, func(tx Transaction) bool {
		if tx.Touches(id) {
			removed[tx.ID] = true
			return true
		}
		return false
	})
	l.occurrences = slices.DeleteFunc(l.occurrences, func(o Occurrence) bool { return removed[o.TransactionID] })
	for j := range l.series {
		s := &l.series[j]
		if s.AccountID == id || s.TargetAccountID == id {
			s.Status = StatusArchived
		}
	}
	l.log.Info().Str("account", id).Int("transactions", len(removed)).Msg("account deleted")
	l.recompute()
	change = Change{Kind: AccountsChanged, ID: id}
	return nil
}

// --- transactions ---

func (l *Ledger) transactionIndex(id string) int {
	return slices.IndexFunc(l.transactions, func(t Transaction) bool { return t.ID == id })
}

// Transaction returns a transaction by id.
func (l *Ledger) Transaction(id string) (Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.transactionIndex(id); i >= 0 {
		return l.transactions[i], true
	}
	return Transaction{}, false
}

// Transactions returns the transactions accepted by all filters, in ledger order.
func (l *Ledger) Transactions(filters ...func(Transaction) bool) iter.Seq[Transaction] {
	l.mu.Lock()
	txs := slices.Clone(l.transactions)
	l.mu.Unlock()
	return func(yield func(Transaction) bool) {
		for _, tx := range txs {
			accept := true
			for _, filter := range filters {
				if !filter(tx) {
					accept = false
					break
				}
			}
			if !accept {
				continue
			}
			if !yield(tx) {
				return
			}
		}
	}
}

// AddTransaction validates and records a transaction, resolving its
// converted amounts from cached rates. It returns the stored value.
func (l *Ledger) AddTransaction(tx Transaction) (Transaction, error) {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.add(tx)
	if err != nil {
		return Transaction{}, err
	}
	l.recompute()
	change = Change{Kind: TransactionsChanged, ID: tx.ID}
	return tx, nil
}

// AddTransactionContext is like AddTransaction but first settles currency
// conversion through the suspending converter when the cache has no rate.
// If ctx is cancelled before the conversion settles nothing is written.
func (l *Ledger) AddTransactionContext(ctx context.Context, tx Transaction) (Transaction, error) {
	if ac, ok := l.conv.(AsyncConverter); ok {
		var err error
		tx, err = l.settle(ctx, ac, tx)
		if err != nil {
			return Transaction{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	return l.AddTransaction(tx)
}

// settle fills the converted amounts through ac. Unavailable rates are not
// an error: the cache-only fallback applies when the transaction is added.
func (l *Ledger) settle(ctx context.Context, ac AsyncConverter, tx Transaction) (Transaction, error) {
	l.mu.Lock()
	src, hasSrc := l.account(tx.AccountID)
	dst, hasDst := l.account(tx.TargetAccountID)
	l.mu.Unlock()

	resolve := func(cur string) (*decimal.Decimal, error) {
		v, err := ac.Convert(ctx, tx.Amount, tx.Currency, cur)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			l.log.Warn().Err(err).Str("from", tx.Currency).Str("to", cur).Msg("conversion unavailable")
			return nil, nil
		}
		v = roundTo(v, cur)
		return &v, nil
	}
	var err error
	if hasSrc && tx.ConvertedAmount == nil && tx.Currency != src.Currency {
		if tx.ConvertedAmount, err = resolve(src.Currency); err != nil {
			return tx, err
		}
	}
	if tx.IsTransfer() && hasDst && tx.TargetConvertedAmount == nil && tx.Currency != dst.Currency {
		if tx.TargetConvertedAmount, err = resolve(dst.Currency); err != nil {
			return tx, err
		}
	}
	return tx, nil
}

// add is the unlocked add path shared by every writer.
func (l *Ledger) add(tx Transaction) (Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = l.now()
	}
	if l.transactionIndex(tx.ID) >= 0 {
		return Transaction{}, invalid(MissingField, "id", "transaction %q already exists", tx.ID)
	}
	if err := l.validateTransaction(tx); err != nil {
		return Transaction{}, err
	}
	tx = l.resolveConversions(tx)
	l.applyPrincipal(tx, decimal.NewFromInt(1))
	l.insert(tx)
	return tx, nil
}

// insert keeps the transaction list sorted.
func (l *Ledger) insert(tx Transaction) {
	i := sort.Search(len(l.transactions), func(i int) bool { return tx.before(l.transactions[i]) })
	l.transactions = slices.Insert(l.transactions, i, tx)
}

// resolveConversions caches the per-leg converted amounts when a rate is known.
func (l *Ledger) resolveConversions(tx Transaction) Transaction {
	if src, ok := l.account(tx.AccountID); ok && tx.ConvertedAmount == nil && tx.Currency != src.Currency {
		if v, exact := sourceLeg(tx, src.Currency, l.conv); exact {
			tx.ConvertedAmount = &v
		} else {
			l.log.Warn().Str("tx", tx.ID).Str("from", tx.Currency).Str("to", src.Currency).Msg("no cached rate, amount kept as is")
		}
	}
	if dst, ok := l.account(tx.TargetAccountID); ok && tx.IsTransfer() && tx.TargetConvertedAmount == nil && tx.Currency != dst.Currency {
		if v, exact := targetLeg(tx, dst.Currency, l.conv); exact {
			tx.TargetConvertedAmount = &v
		} else {
			l.log.Warn().Str("tx", tx.ID).Str("from", tx.Currency).Str("to", dst.Currency).Msg("no cached rate, amount kept as is")
		}
	}
	return tx
}

// applyPrincipal folds deposit top-ups, withdrawals and, when interest is
// capitalized, accruals into the deposit principal (sign +1 on add, -1 on
// removal).
func (l *Ledger) applyPrincipal(tx Transaction, sign decimal.Decimal) {
	i := l.accountIndex(tx.AccountID)
	if i < 0 || l.accounts[i].Deposit == nil {
		return
	}
	a := &l.accounts[i]
	var delta decimal.Decimal
	switch tx.Type {
	case DepositTopUp:
		delta, _ = sourceLeg(tx, a.Currency, l.conv)
	case DepositWithdrawal:
		delta, _ = sourceLeg(tx, a.Currency, l.conv)
		delta = delta.Neg()
	case DepositInterestAccrual:
		if !a.Deposit.CapitalizationEnabled {
			return
		}
		delta, _ = sourceLeg(tx, a.Currency, l.conv)
	default:
		return
	}
	delta = delta.Mul(sign)
	a.Deposit.PrincipalBalance = a.Deposit.PrincipalBalance.Add(delta)
	a.Deposit.LoggedPrincipal = a.Deposit.LoggedPrincipal.Add(delta)
}

// UpdateTransaction replaces a stored transaction with the same id.
func (l *Ledger) UpdateTransaction(tx Transaction) error {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.transactionIndex(tx.ID)
	if i < 0 {
		return fmt.Errorf("transaction %q: %w", tx.ID, ErrNotFound)
	}
	old := l.transactions[i]
	if err := l.validateTransaction(tx); err != nil {
		return err
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = old.CreatedAt
	}
	// cached conversions are only valid for the values they were computed from.
	if tx.Amount.Equal(old.Amount) && tx.Currency == old.Currency && tx.AccountID == old.AccountID && tx.TargetAccountID == old.TargetAccountID {
		if tx.ConvertedAmount == nil {
			tx.ConvertedAmount = old.ConvertedAmount
		}
		if tx.TargetConvertedAmount == nil {
			tx.TargetConvertedAmount = old.TargetConvertedAmount
		}
	}
	l.applyPrincipal(old, decimal.NewFromInt(-1))
	l.transactions = slices.Delete(l.transactions, i, i+1)
	tx = l.resolveConversions(tx)
	l.applyPrincipal(tx, decimal.NewFromInt(1))
	l.insert(tx)
	l.recompute()
	change = Change{Kind: TransactionsChanged, ID: tx.ID}
	return nil
}

// DeleteTransaction removes a transaction and its occurrence record, if any.
func (l *Ledger) DeleteTransaction(tx Transaction) error {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.remove(tx.ID) {
		return fmt.Errorf("transaction %q: %w", tx.ID, ErrNotFound)
	}
	l.recompute()
	change = Change{Kind: TransactionsChanged, ID: tx.ID}
	return nil
}

// remove is the unlocked delete path. It does not recompute.
func (l *Ledger) remove(id string) bool {
	i := l.transactionIndex(id)
	if i < 0 {
		return false
	}
	l.applyPrincipal(l.transactions[i], decimal.NewFromInt(-1))
	l.transactions = slices.Delete(l.transactions, i, i+1)
	l.occurrences = slices.DeleteFunc(l.occurrences, func(o Occurrence) bool { return o.TransactionID == id })
	return true
}

// --- balances ---

// RecalculateAccountBalances recomputes every balance from the log.
func (l *Ledger) RecalculateAccountBalances() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recompute()
}

// recompute runs the balance calculator and refreshes the cached balances.
func (l *Ledger) recompute() {
	l.balances = Recompute(l.accounts, l.transactions, l.conv)
	for i := range l.accounts {
		l.accounts[i].Balance = l.balances.Of(l.accounts[i].ID)
	}
}

// Balance returns the cached balance of an account.
func (l *Ledger) Balance(accountID string) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.balances.Amounts[accountID]
	return v, ok
}

// Balances returns a copy of all cached balances.
func (l *Ledger) Balances() Balances {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := Balances{
		Amounts:     make(map[string]decimal.Decimal, len(l.balances.Amounts)),
		Approximate: make(map[string]bool, len(l.balances.Approximate)),
	}
	for k, v := range l.balances.Amounts {
		b.Amounts[k] = v
	}
	for k, v := range l.balances.Approximate {
		b.Approximate[k] = v
	}
	return b
}

// --- snapshots ---

// Snapshot is the persisted state of a ledger.
type Snapshot struct {
	Accounts     []Account
	Transactions []Transaction
	Series       []RecurringSeries
	Occurrences  []Occurrence
}

// Snapshot returns a deep copy of the ledger state.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &Snapshot{
		Accounts:     make([]Account, 0, len(l.accounts)),
		Transactions: slices.Clone(l.transactions),
		Series:       slices.Clone(l.series),
		Occurrences:  slices.Clone(l.occurrences),
	}
	for _, a := range l.accounts {
		s.Accounts = append(s.Accounts, a.clone())
	}
	return s
}

// Restore replaces the ledger state with a snapshot. Entities are trusted as
// persisted: no validation, no conversion; balances are recomputed.
func (l *Ledger) Restore(s *Snapshot) {
	var change Change
	defer l.notify(&change)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts = make([]Account, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		a = a.clone()
		if a.Deposit != nil {
			a.Deposit.normalize()
		}
		l.accounts = append(l.accounts, a)
	}
	l.transactions = slices.Clone(s.Transactions)
	sort.SliceStable(l.transactions, func(i, j int) bool { return l.transactions[i].before(l.transactions[j]) })
	l.series = slices.Clone(s.Series)
	l.occurrences = slices.Clone(s.Occurrences)
	l.recompute()
	change = Change{Kind: AccountsChanged}
}
