package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// StaticSource serves rates from a fixed table.
type StaticSource map[string]decimal.Decimal

// Rate implements Source.
func (s StaticSource) Rate(_ context.Context, currency string) (decimal.Decimal, error) {
	currency = normalize(currency)
	for k, v := range s {
		if normalize(k) == currency {
			return v, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no static rate for %s", currency)
}

// JSONSource reads rates from a JSON HTTP endpoint.
//
// The "{currency}" placeholder in URL and Path is replaced by the requested
// currency code. Path is a jsonpath expression selecting a number, or a
// string holding one.
type JSONSource struct {
	URL    string
	Path   string
	Client *http.Client
	// Invert is set when the endpoint quotes units of currency per base unit.
	Invert bool
}

// Rate implements Source.
func (s *JSONSource) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	addr := strings.ReplaceAll(s.URL, "{currency}", currency)
	path := strings.ReplaceAll(s.Path, "{currency}", currency)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	var jobj any
	if err := jwget(ctx, client, addr, &jobj); err != nil {
		return decimal.Zero, fmt.Errorf("error retrieving %s: %w", currency, err)
	}
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error parsing %s: %q: %w", currency, path, err)
	}
	// jsonpath may return a list of one answer or the answer itself.
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	var rate decimal.Decimal
	switch v := jval.(type) {
	case float64:
		rate = decimal.NewFromFloat(v)
	case string:
		// some endpoints quote numbers as strings, with a decimal comma.
		v = strings.ReplaceAll(v, ",", ".")
		v = strings.ReplaceAll(v, " ", "")
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return decimal.Zero, fmt.Errorf("cannot read rate of %s: invalid string %q: %w", currency, v, err)
		}
		rate = decimal.NewFromFloat(f)
	default:
		return decimal.Zero, fmt.Errorf("cannot read rate of %s: %q is neither a number nor a string: %v", currency, path, jval)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("empty rate for %s", currency)
	}
	if s.Invert {
		rate = decimal.NewFromInt(1).Div(rate)
	}
	return rate, nil
}

// jwget performs an HTTP GET request and unmarshals the JSON response into data.
func jwget(ctx context.Context, client *http.Client, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), data)
}
