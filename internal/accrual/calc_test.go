package accrual

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func mustPeriod(t *testing.T, label string) ProcessingPeriod {
	t.Helper()
	p, err := ParsePeriod(label)
	require.NoError(t, err)
	return p
}

func datedInput(t *testing.T, net string, start, end time.Time, month string) CalcInput {
	t.Helper()
	return CalcInput{
		NetAmount: dec(net),
		StartDate: &start,
		EndDate:   &end,
		Period:    mustPeriod(t, month),
	}
}

// Contract Jan 1 – Jun 30 2026 over 192,240 processed in Feb 2026: the
// canonical worked example for the dated branch.
func TestComputeDatedBranch(t *testing.T) {
	in := datedInput(t, "192240", date(2026, time.January, 1), date(2026, time.June, 30), "Feb 2026")

	result := Compute(in)

	require.Equal(t, 181, result.TotalDays)
	require.Equal(t, 31, result.PrevMonthDays)
	require.Equal(t, 28, result.CurrentMonthDays)
	requireDec(t, "32925", result.PrevMonthProvision)
	requireDec(t, "29739", result.SuggestedProvision)
	requireDec(t, "32925", result.CarryForward)
	requireDec(t, "62664", result.FinalProvision)

	// The daily rate itself stays unrounded so each month rounds alone.
	require.True(t, result.DailyRate.GreaterThan(dec("1062.09")))
	require.True(t, result.DailyRate.LessThan(dec("1062.10")))
}

func TestComputeDatedBranchWithGRNAndTrueUps(t *testing.T) {
	in := datedInput(t, "192240", date(2026, time.January, 1), date(2026, time.June, 30), "Feb 2026")
	in.GRN = GRNBuckets{PrevMonth: dec("5000"), CurrentMonth: dec("12000"), ToDate: dec("17000")}
	in.PrevTrueUp = dec("-2000")
	in.CurrentTrueUp = dec("1000")

	result := Compute(in)

	// carryForward = 32925 - 2000 - 5000
	requireDec(t, "25925", result.CarryForward)
	// final = 25925 + 29739 - 12000 + 1000
	requireDec(t, "44664", result.FinalProvision)
}

func TestComputeCarryForwardIdentity(t *testing.T) {
	cases := []struct {
		name       string
		net        string
		start, end time.Time
		grn        GRNBuckets
		prevTU     string
		currTU     string
	}{
		{"plain", "100000", date(2026, time.January, 15), date(2026, time.May, 15), GRNBuckets{}, "0", "0"},
		{"receipts", "250000", date(2025, time.November, 1), date(2026, time.March, 31), GRNBuckets{PrevMonth: dec("30000"), CurrentMonth: dec("40000")}, "0", "0"},
		{"fractional true-ups", "77777", date(2026, time.February, 3), date(2026, time.February, 20), GRNBuckets{CurrentMonth: dec("500")}, "123.45", "-67.89"},
		{"over-receipt", "1000", date(2026, time.January, 1), date(2026, time.February, 28), GRNBuckets{PrevMonth: dec("900"), CurrentMonth: dec("900")}, "0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := datedInput(t, tc.net, tc.start, tc.end, "Feb 2026")
			in.GRN = tc.grn
			in.PrevTrueUp = dec(tc.prevTU)
			in.CurrentTrueUp = dec(tc.currTU)

			result := Compute(in)

			wantCarry := result.PrevMonthProvision.Add(in.PrevTrueUp).Sub(in.GRN.PrevMonth)
			require.True(t, wantCarry.Equal(result.CarryForward))

			wantFinal := result.CarryForward.Add(result.SuggestedProvision).Sub(in.GRN.CurrentMonth).Add(in.CurrentTrueUp).Round(0)
			require.True(t, wantFinal.Equal(result.FinalProvision))

			// Re-rounding an already-rounded figure is a no-op.
			require.True(t, result.FinalProvision.Equal(result.FinalProvision.Round(0)))
			require.True(t, result.PrevMonthProvision.Equal(result.PrevMonthProvision.Round(0)))
		})
	}
}

func TestComputeTotalDaysFloor(t *testing.T) {
	// Same-day contract.
	result := Compute(datedInput(t, "500", date(2026, time.February, 10), date(2026, time.February, 10), "Feb 2026"))
	require.Equal(t, 1, result.TotalDays)
	requireDec(t, "500", result.DailyRate)

	// Inverted range never divides by zero.
	result = Compute(datedInput(t, "500", date(2026, time.March, 1), date(2026, time.January, 1), "Feb 2026"))
	require.Equal(t, 1, result.TotalDays)
	require.Equal(t, 0, result.PrevMonthDays)
	require.Equal(t, 0, result.CurrentMonthDays)
}

func TestComputeDatelessBranch(t *testing.T) {
	in := CalcInput{
		NetAmount:     dec("999999"),
		Period:        mustPeriod(t, "Feb 2026"),
		GRN:           GRNBuckets{PrevMonth: dec("4000"), CurrentMonth: dec("15000"), ToDate: dec("19000")},
		PrevTrueUp:    dec("111"),
		CurrentTrueUp: dec("-222"),
	}

	result := Compute(in)

	require.Equal(t, 0, result.TotalDays)
	require.Equal(t, 0, result.PrevMonthDays)
	require.Equal(t, 0, result.CurrentMonthDays)
	requireDec(t, "0", result.DailyRate)
	requireDec(t, "0", result.PrevMonthProvision)
	requireDec(t, "0", result.SuggestedProvision)
	requireDec(t, "0", result.CarryForward)
	// Provision tracks receipts only; true-ups and net amount are ignored.
	requireDec(t, "15000", result.FinalProvision)
}

func TestComputeDatelessBranchSingleMissingDate(t *testing.T) {
	start := date(2026, time.January, 1)
	in := CalcInput{
		NetAmount: dec("50000"),
		StartDate: &start,
		Period:    mustPeriod(t, "Feb 2026"),
		GRN:       GRNBuckets{CurrentMonth: dec("7500")},
	}

	result := Compute(in)
	require.Equal(t, 0, result.TotalDays)
	requireDec(t, "0", result.CarryForward)
	requireDec(t, "7500", result.FinalProvision)
}

func TestComputeNegativeProvisionPreserved(t *testing.T) {
	in := datedInput(t, "10000", date(2026, time.February, 1), date(2026, time.February, 28), "Feb 2026")
	in.GRN = GRNBuckets{CurrentMonth: dec("25000")}

	result := Compute(in)
	requireDec(t, "-15000", result.FinalProvision)
	require.True(t, result.FinalProvision.IsNegative())
}

func TestComputeExactZeroProvision(t *testing.T) {
	// 2800 over Feb, fully consumed by receipts plus a true-up.
	in := datedInput(t, "2800", date(2026, time.February, 1), date(2026, time.February, 28), "Feb 2026")
	in.GRN = GRNBuckets{CurrentMonth: dec("3800")}
	in.CurrentTrueUp = dec("1000")

	result := Compute(in)
	requireDec(t, "0", result.CarryForward)
	requireDec(t, "2800", result.SuggestedProvision)
	requireDec(t, "0", result.FinalProvision)
}
