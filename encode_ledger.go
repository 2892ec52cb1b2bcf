package finance

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// RecordKind identifies the entity stored on one line of a ledger file.
type RecordKind string

const (
	KindAccount     RecordKind = "account"
	KindTransaction RecordKind = "transaction"
	KindSeries      RecordKind = "series"
	KindOccurrence  RecordKind = "occurrence"
)

// EncodeRecord writes a single entity as one JSON line, prefixed with its
// kind under the "record" key.
func EncodeRecord(w io.Writer, kind RecordKind, v any) error {
	var obj jsonObjectWriter
	obj.Append("record", kind)
	obj.EmbedFrom(v)
	data, err := obj.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write %s: %w", kind, err)
	}
	return nil
}

// EncodeSnapshot persists a snapshot to w in JSONL format.
//
// Output is canonical: accounts, series, transactions in ledger order, then
// occurrences by series and date. Encoding the same state twice yields the
// same bytes.
func EncodeSnapshot(w io.Writer, s *Snapshot) error {
	for _, a := range s.Accounts {
		if err := EncodeRecord(w, KindAccount, a); err != nil {
			return err
		}
	}
	for _, rs := range s.Series {
		if err := EncodeRecord(w, KindSeries, rs); err != nil {
			return err
		}
	}
	txs := slices.Clone(s.Transactions)
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		switch {
		case a.before(b):
			return -1
		case b.before(a):
			return 1
		}
		return 0
	})
	for _, tx := range txs {
		if err := EncodeRecord(w, KindTransaction, tx); err != nil {
			return err
		}
	}
	occ := slices.Clone(s.Occurrences)
	slices.SortStableFunc(occ, func(a, b Occurrence) int {
		if c := strings.Compare(a.SeriesID, b.SeriesID); c != 0 {
			return c
		}
		return a.Date.Compare(b.Date)
	})
	for _, o := range occ {
		if err := EncodeRecord(w, KindOccurrence, o); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSnapshot reads a JSONL stream written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	s := new(Snapshot)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}
		var identifier struct {
			Kind RecordKind `json:"record"`
		}
		if err := json.Unmarshal(lineBytes, &identifier); err != nil {
			return nil, fmt.Errorf("line %d: could not identify record: %w", line, err)
		}

		var err error
		switch identifier.Kind {
		case KindAccount:
			var a Account
			err = json.Unmarshal(lineBytes, &a)
			s.Accounts = append(s.Accounts, a)
		case KindTransaction:
			var tx Transaction
			err = json.Unmarshal(lineBytes, &tx)
			s.Transactions = append(s.Transactions, tx)
		case KindSeries:
			var rs RecurringSeries
			err = json.Unmarshal(lineBytes, &rs)
			s.Series = append(s.Series, rs)
		case KindOccurrence:
			var o Occurrence
			err = json.Unmarshal(lineBytes, &o)
			s.Occurrences = append(s.Occurrences, o)
		default:
			err = fmt.Errorf("unknown record kind %q", identifier.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}
	return s, nil
}
