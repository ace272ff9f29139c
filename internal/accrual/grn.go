package accrual

import "github.com/shopspring/decimal"

// GRNBuckets holds goods-receipt sums relative to a processing period. Each
// bucket is rounded to whole currency units once, after summation.
type GRNBuckets struct {
	PrevMonth    decimal.Decimal
	CurrentMonth decimal.Decimal
	ToDate       decimal.Decimal
}

// BucketGRN sums one line's GRN transactions into previous-month,
// current-month and cumulative-to-date buckets. Transactions whose posting
// date cannot be parsed are excluded from every bucket.
func BucketGRN(txns []GRNTransaction, period ProcessingPeriod) GRNBuckets {
	var prev, current, toDate decimal.Decimal
	for _, txn := range txns {
		posted, ok := ParseDate(txn.PostingDate)
		if !ok {
			continue
		}
		if period.ContainsPrev(posted) {
			prev = prev.Add(txn.Value)
		}
		if period.Contains(posted) {
			current = current.Add(txn.Value)
		}
		if !posted.After(period.MonthEnd) {
			toDate = toDate.Add(txn.Value)
		}
	}
	return GRNBuckets{
		PrevMonth:    prev.Round(0),
		CurrentMonth: current.Round(0),
		ToDate:       toDate.Round(0),
	}
}
