package finance

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an id does not resolve to a ledger entity.
var ErrNotFound = errors.New("not found")

// ValidationKind is the closed set of write-boundary failures.
type ValidationKind int

const (
	InvalidAmount ValidationKind = iota + 1
	AccountNotFound
	MissingField
	InvalidTransfer
	InvalidCurrency
	InvalidSchedule
	InvalidState
)

func (k ValidationKind) String() string {
	switch k {
	case InvalidAmount:
		return "invalid amount"
	case AccountNotFound:
		return "account not found"
	case MissingField:
		return "missing field"
	case InvalidTransfer:
		return "invalid transfer"
	case InvalidCurrency:
		return "invalid currency"
	case InvalidSchedule:
		return "invalid schedule"
	case InvalidState:
		return "invalid state"
	default:
		return "invalid"
	}
}

// ValidationError is a rejected write. Nothing was modified.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Msg)
}

func invalid(kind ValidationKind, field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation failure of the given kind.
func IsValidation(err error, kind ValidationKind) bool {
	var v *ValidationError
	return errors.As(err, &v) && v.Kind == kind
}

// newValidator returns a validator that understands decimal amounts.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// checkStruct runs the struct tags and maps the first failure to a ValidationError.
func checkStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("could not validate %T: %w", s, err)
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "Amount":
		return invalid(InvalidAmount, "amount", "must be positive")
	case fe.Field() == "Currency":
		return invalid(InvalidCurrency, "currency", "is missing")
	case fe.Tag() == "required":
		return invalid(MissingField, fe.Field(), "is required")
	default:
		return invalid(MissingField, fe.Field(), "failed %q check", fe.Tag())
	}
}

// validateTransaction checks tx against the accounts currently in the ledger.
func (l *Ledger) validateTransaction(tx Transaction) error {
	if err := checkStruct(l.validate, tx); err != nil {
		return err
	}
	if _, err := ParseTxType(string(tx.Type)); err != nil {
		return invalid(MissingField, "type", "%v", err)
	}
	if err := ValidateCurrency(tx.Currency); err != nil {
		return invalid(InvalidCurrency, "currency", "%v", err)
	}
	if tx.AccountID == "" {
		if tx.IsTransfer() {
			return invalid(MissingField, "accountId", "a transfer needs a source account")
		}
		return invalid(MissingField, "accountId", "no account selected")
	}
	if _, ok := l.account(tx.AccountID); !ok {
		return invalid(AccountNotFound, "accountId", "no account %q", tx.AccountID)
	}
	if !tx.IsTransfer() {
		if tx.TargetAccountID != "" {
			return invalid(InvalidTransfer, "targetAccountId", "only transfers have a target account")
		}
		return nil
	}
	switch {
	case tx.TargetAccountID == "":
		return invalid(MissingField, "targetAccountId", "a transfer needs a target account")
	case tx.AccountID == tx.TargetAccountID:
		return invalid(InvalidTransfer, "targetAccountId", "source and target are the same account")
	}
	if _, ok := l.account(tx.TargetAccountID); !ok {
		return invalid(AccountNotFound, "targetAccountId", "no account %q", tx.TargetAccountID)
	}
	return nil
}

// validateSeries checks a series definition before it is stored.
func (l *Ledger) validateSeries(s RecurringSeries) error {
	if err := checkStruct(l.validate, s); err != nil {
		return err
	}
	if !s.Frequency.valid() {
		return invalid(InvalidSchedule, "frequency", "unknown frequency %q", string(s.Frequency))
	}
	if !s.EndDate.IsZero() && s.EndDate.Before(s.StartDate) {
		return invalid(InvalidSchedule, "endDate", "ends before it starts")
	}
	if s.Kind != RecurringExpense && s.Kind != Subscription {
		return invalid(MissingField, "kind", "unknown kind %q", string(s.Kind))
	}
	// a series is validated as the transaction it would generate.
	probe := s.transaction(s.StartDate)
	return l.validateTransaction(probe)
}

// validateAccount checks an account before it is stored. Deposit terms are
// clamped rather than rejected.
func (l *Ledger) validateAccount(a *Account) error {
	if err := checkStruct(l.validate, *a); err != nil {
		return err
	}
	if err := ValidateCurrency(a.Currency); err != nil {
		return invalid(InvalidCurrency, "currency", "%v", err)
	}
	if a.Deposit != nil {
		a.Deposit.normalize()
		if a.Deposit.OpenedOn.IsZero() {
			a.Deposit.OpenedOn = l.today()
		}
	}
	return nil
}
