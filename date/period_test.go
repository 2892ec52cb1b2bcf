package date

import "testing"

func TestPeriodRange(t *testing.T) {
	testCases := []struct {
		on       string
		period   Period
		from, to string
	}{
		{"2024-03-13", Day, "2024-03-13", "2024-03-13"},
		{"2024-03-13", Week, "2024-03-11", "2024-03-17"},
		{"2024-03-17", Week, "2024-03-11", "2024-03-17"},
		{"2024-03-11", Week, "2024-03-11", "2024-03-17"},
		{"2024-02-10", Month, "2024-02-01", "2024-02-29"},
		{"2024-05-20", Quarter, "2024-04-01", "2024-06-30"},
		{"2024-12-31", Quarter, "2024-10-01", "2024-12-31"},
		{"2024-07-04", Year, "2024-01-01", "2024-12-31"},
	}
	for _, tc := range testCases {
		t.Run(tc.on+" "+tc.period.String(), func(t *testing.T) {
			r := tc.period.Range(MustParse(tc.on))
			if r.From != MustParse(tc.from) || r.To != MustParse(tc.to) {
				t.Errorf("Range() = [%v, %v], want [%s, %s]", r.From, r.To, tc.from, tc.to)
			}
		})
	}
}

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"day", "Weekly", " month ", "quarter", "YEAR"} {
		if _, err := ParsePeriod(s); err != nil {
			t.Errorf("ParsePeriod(%q) unexpected error: %v", s, err)
		}
	}
	if _, err := ParsePeriod("fortnight"); err == nil {
		t.Errorf("ParsePeriod(fortnight) expected an error")
	}
}

func TestParseRelative(t *testing.T) {
	today := New(2024, 1, 31)
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0d", want: "2024-01-31"},
		{in: "-1d", want: "2024-01-30"},
		{in: "+1d", want: "2024-02-01"},
		{in: "-2w", want: "2024-01-17"},
		{in: "+1m", want: "2024-02-29"},
		{in: "-1q", want: "2023-10-31"},
		{in: "+1y", want: "2025-01-31"},
		{in: "2023-7-4", want: "2023-07-04"},
		{in: "1d", wantErr: true},
		{in: "yesterday", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseRelative(tc.in, today)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseRelative(%q) = %v, want an error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRelative(%q) unexpected error: %v", tc.in, err)
			}
			if got != MustParse(tc.want) {
				t.Errorf("ParseRelative(%q) = %v, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestPeriodLength(t *testing.T) {
	testCases := []struct {
		on     string
		period Period
		days   int
	}{
		{"2024-02-10", Day, 1},
		{"2024-02-10", Week, 7},
		{"2024-02-10", Month, 29},
		{"2023-02-10", Month, 28},
		{"2024-02-10", Quarter, 91},
		{"2024-08-10", Quarter, 92},
		{"2024-02-10", Year, 366},
		{"2023-02-10", Year, 365},
	}
	for _, tc := range testCases {
		r := tc.period.Range(MustParse(tc.on))
		if got := r.From.DaysUntil(r.To) + 1; got != tc.days {
			t.Errorf("%s %v lasts %d days, want %d", tc.on, tc.period, got, tc.days)
		}
		if got := r.To.DaysUntil(r.From); got != 1-tc.days {
			t.Errorf("%s %v: DaysUntil backwards = %d, want %d", tc.on, tc.period, got, 1-tc.days)
		}
	}
}
