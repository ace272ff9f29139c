package accrual

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalcInput carries everything the provision calculator needs for one line
// and one processing month. StartDate/EndDate are nil when the raw contract
// dates are missing or unparseable.
type CalcInput struct {
	NetAmount decimal.Decimal
	StartDate *time.Time
	EndDate   *time.Time
	Period    ProcessingPeriod
	GRN       GRNBuckets

	PrevTrueUp    decimal.Decimal
	CurrentTrueUp decimal.Decimal
}

// CalcResult holds the derived figures. Named provision figures are whole
// currency units; DailyRate is deliberately left unrounded so per-month
// allocations round independently.
type CalcResult struct {
	TotalDays        int
	DailyRate        decimal.Decimal
	PrevMonthDays    int
	CurrentMonthDays int

	PrevMonthProvision decimal.Decimal
	SuggestedProvision decimal.Decimal
	CarryForward       decimal.Decimal
	FinalProvision     decimal.Decimal
}

// Compute derives the provision figures for one line.
//
// Dated branch (both contract dates present):
//
//	carryForward   = prevMonthProvision + prevTrueUp - prevMonthGRN
//	finalProvision = round(carryForward + suggestedProvision - currentMonthGRN + currentTrueUp)
//
// Date-less branch (Activity lines without a contract window): the provision
// tracks current-month receipts, carry-forward is zero and no proration is
// attempted.
func Compute(in CalcInput) CalcResult {
	if in.StartDate == nil || in.EndDate == nil {
		return CalcResult{
			FinalProvision: in.GRN.CurrentMonth.Round(0),
		}
	}

	totalDays := InclusiveDays(*in.StartDate, *in.EndDate)
	if totalDays < 1 {
		// Degenerate or inverted ranges never divide by zero.
		totalDays = 1
	}
	dailyRate := in.NetAmount.Div(decimal.NewFromInt(int64(totalDays)))

	prevDays := OverlapDays(*in.StartDate, *in.EndDate, in.Period.PrevMonthStart, in.Period.PrevMonthEnd)
	currentDays := OverlapDays(*in.StartDate, *in.EndDate, in.Period.MonthStart, in.Period.MonthEnd)

	prevProvision := dailyRate.Mul(decimal.NewFromInt(int64(prevDays))).Round(0)
	suggested := dailyRate.Mul(decimal.NewFromInt(int64(currentDays))).Round(0)

	carryForward := prevProvision.Add(in.PrevTrueUp).Sub(in.GRN.PrevMonth)
	final := carryForward.Add(suggested).Sub(in.GRN.CurrentMonth).Add(in.CurrentTrueUp).Round(0)

	return CalcResult{
		TotalDays:          totalDays,
		DailyRate:          dailyRate,
		PrevMonthDays:      prevDays,
		CurrentMonthDays:   currentDays,
		PrevMonthProvision: prevProvision,
		SuggestedProvision: suggested,
		CarryForward:       carryForward,
		FinalProvision:     final,
	}
}
