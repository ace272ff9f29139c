package accrual

import (
	"sort"

	"github.com/shopspring/decimal"
)

// largeTrueUpRatio flags lines whose combined true-up magnitude exceeds this
// share of the net amount. Fixed by policy, not configurable.
var largeTrueUpRatio = decimal.NewFromFloat(0.2)

// VendorTotal aggregates provision exposure per vendor.
type VendorTotal struct {
	Vendor         string          `json:"vendor"`
	Lines          int             `json:"lines"`
	FinalProvision decimal.Decimal `json:"finalProvision"`
}

// ExceptionSummary is a read-only reduction over computed line views. It
// re-derives nothing; every figure comes straight off the views.
type ExceptionSummary struct {
	Month      string `json:"month"`
	TotalLines int    `json:"totalLines"`

	NegativeProvisionCount int             `json:"negativeProvisionCount"`
	NegativeProvisionTotal decimal.Decimal `json:"negativeProvisionTotal"`

	ZeroProvisionCount int `json:"zeroProvisionCount"`

	OverReceiptCount int             `json:"overReceiptCount"`
	OverReceiptValue decimal.Decimal `json:"overReceiptValue"`

	LargeTrueUpCount int             `json:"largeTrueUpCount"`
	LargeTrueUpValue decimal.Decimal `json:"largeTrueUpValue"`

	MissingDatesCount int             `json:"missingDatesCount"`
	MissingDatesValue decimal.Decimal `json:"missingDatesValue"`

	MissingReferenceCount int `json:"missingReferenceCount"`

	UnassignedActivityCount int             `json:"unassignedActivityCount"`
	UnassignedActivityValue decimal.Decimal `json:"unassignedActivityValue"`

	CompletionRate float64 `json:"completionRate"`

	VendorBreakdown []VendorTotal  `json:"vendorBreakdown"`
	StatusBreakdown map[Status]int `json:"statusBreakdown"`
}

// Reduce folds line views into an exception summary for the given month.
func Reduce(month string, views []LineView) ExceptionSummary {
	summary := ExceptionSummary{
		Month:           month,
		TotalLines:      len(views),
		StatusBreakdown: make(map[Status]int),
	}
	vendors := make(map[string]*VendorTotal)
	completed := 0

	for _, v := range views {
		summary.StatusBreakdown[v.Status]++
		if v.Status == StatusApproved || v.Status == StatusPosted {
			completed++
		}

		if v.FinalProvision.IsNegative() {
			summary.NegativeProvisionCount++
			summary.NegativeProvisionTotal = summary.NegativeProvisionTotal.Add(v.FinalProvision.Abs())
		}
		if v.FinalProvision.IsZero() && v.NetAmount.IsPositive() {
			summary.ZeroProvisionCount++
		}
		if v.TotalGRNToDate.GreaterThan(v.NetAmount) {
			summary.OverReceiptCount++
			summary.OverReceiptValue = summary.OverReceiptValue.Add(v.TotalGRNToDate.Sub(v.NetAmount))
		}

		trueUps := v.PrevTrueUp.Abs().Add(v.CurrentTrueUp.Abs())
		if v.NetAmount.IsPositive() && trueUps.GreaterThan(v.NetAmount.Mul(largeTrueUpRatio)) {
			summary.LargeTrueUpCount++
			summary.LargeTrueUpValue = summary.LargeTrueUpValue.Add(trueUps)
		}

		if v.Category == CategoryPeriod && v.TotalDays == 0 {
			summary.MissingDatesCount++
			summary.MissingDatesValue = summary.MissingDatesValue.Add(v.NetAmount)
		}
		if v.GLAccount == "" || v.CostCenter == "" {
			summary.MissingReferenceCount++
		}
		if v.Category == CategoryActivity && v.Assignee == "" {
			summary.UnassignedActivityCount++
			summary.UnassignedActivityValue = summary.UnassignedActivityValue.Add(v.NetAmount)
		}

		agg, ok := vendors[v.Vendor]
		if !ok {
			agg = &VendorTotal{Vendor: v.Vendor}
			vendors[v.Vendor] = agg
		}
		agg.Lines++
		agg.FinalProvision = agg.FinalProvision.Add(v.FinalProvision)
	}

	if len(views) > 0 {
		summary.CompletionRate = float64(completed) / float64(len(views)) * 100
	}

	breakdown := make([]VendorTotal, 0, len(vendors))
	for _, agg := range vendors {
		breakdown = append(breakdown, *agg)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		a, b := breakdown[i].FinalProvision.Abs(), breakdown[j].FinalProvision.Abs()
		if a.Equal(b) {
			return breakdown[i].Vendor < breakdown[j].Vendor
		}
		return a.GreaterThan(b)
	})
	summary.VendorBreakdown = breakdown
	return summary
}
