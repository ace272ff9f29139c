package accrual

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Accrual categories determine which calculation branch applies.
type Category string

const (
	CategoryPeriod   Category = "PERIOD"
	CategoryActivity Category = "ACTIVITY"
)

// PO line lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusPosted    Status = "POSTED"
)

// POLine is one purchase-order line item subject to accrual. Contract dates
// are kept as the raw ingested strings; a value that does not parse is treated
// as absent, which moves the line onto the date-less calculation branch.
type POLine struct {
	ID           int64
	PONumber     string
	LineNo       int
	Vendor       string
	Description  string
	NetAmount    decimal.Decimal
	GLAccount    string
	CostCenter   string
	ProfitCenter string
	Plant        string
	StartDate    string
	EndDate      string
	Category     Category
	Status       Status
}

// GRNTransaction is a goods-receipt posting against a PO line. Append-only.
// PostingDate is free text in several accepted layouts.
type GRNTransaction struct {
	ID          int64
	POLineID    int64
	PostingDate string
	Value       decimal.Decimal
}

// PeriodCalculation is the manual adjustment record for one (PO line,
// processing month) pair. At most one exists per pair; absence means zero
// true-ups and blank remarks.
type PeriodCalculation struct {
	POLineID      int64
	Month         string
	PrevTrueUp    decimal.Decimal
	CurrentTrueUp decimal.Decimal
	Remarks       string
	UpdatedBy     string
	UpdatedAt     time.Time
}

// Assignment is activity-tracking metadata joined onto Activity line views.
type Assignment struct {
	POLineID int64
	Assignee string
	Status   string
}

// TrueUpField selects which true-up column an update targets.
type TrueUpField string

const (
	TrueUpPrevMonth    TrueUpField = "prev_month"
	TrueUpCurrentMonth TrueUpField = "current_month"
)

// LineView is the computed result row for one PO line and one processing
// month. It is a pure projection: recomputed on every request, never stored.
type LineView struct {
	ID           int64           `json:"id"`
	PONumber     string          `json:"poNumber"`
	LineNo       int             `json:"lineNo"`
	Vendor       string          `json:"vendor"`
	Description  string          `json:"description"`
	NetAmount    decimal.Decimal `json:"netAmount"`
	GLAccount    string          `json:"glAccount"`
	CostCenter   string          `json:"costCenter"`
	ProfitCenter string          `json:"profitCenter"`
	Plant        string          `json:"plant"`
	Category     Category        `json:"category"`
	Status       Status          `json:"status"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`

	Month     string `json:"month"`
	PrevMonth string `json:"prevMonth"`

	TotalDays        int             `json:"totalDays"`
	DailyRate        decimal.Decimal `json:"dailyRate"`
	PrevMonthDays    int             `json:"prevMonthDays"`
	CurrentMonthDays int             `json:"currentMonthDays"`

	PrevMonthProvision decimal.Decimal `json:"prevMonthProvision"`
	SuggestedProvision decimal.Decimal `json:"suggestedProvision"`

	PrevMonthGRN    decimal.Decimal `json:"prevMonthGrn"`
	CurrentMonthGRN decimal.Decimal `json:"currentMonthGrn"`
	TotalGRNToDate  decimal.Decimal `json:"totalGrnToDate"`

	PrevTrueUp    decimal.Decimal `json:"prevTrueUp"`
	CurrentTrueUp decimal.Decimal `json:"currentTrueUp"`

	CarryForward   decimal.Decimal `json:"carryForward"`
	FinalProvision decimal.Decimal `json:"finalProvision"`

	Remarks   string `json:"remarks"`
	UpdatedBy string `json:"updatedBy,omitempty"`

	Assignee         string `json:"assignee,omitempty"`
	AssignmentStatus string `json:"assignmentStatus,omitempty"`
}

var (
	// ErrNotFound indicates a record is missing.
	ErrNotFound = errors.New("accrual: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("accrual: invalid input")
)
