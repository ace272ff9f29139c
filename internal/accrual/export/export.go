// Package export serialises computed line views for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/vasu15/record-to-report/internal/accrual"
)

var header = []string{
	"PO Number", "Line", "Vendor", "Description", "Category", "Status",
	"Net Amount", "GL Account", "Cost Center", "Start Date", "End Date",
	"Total Days", "Prev Month Days", "Current Month Days",
	"Prev Month Provision", "Suggested Provision",
	"Prev Month GRN", "Current Month GRN", "GRN To Date",
	"Prev True-Up", "Current True-Up",
	"Carry Forward", "Final Provision", "Remarks",
}

// FileName composes a unique download name for one export.
func FileName(category, ext string) string {
	return fmt.Sprintf("accruals-%s-%s.%s", category, uuid.NewString()[:8], ext)
}

// WriteLineViewsCSV emits line views as CSV.
func WriteLineViewsCSV(w io.Writer, views []accrual.LineView) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return err
	}
	for _, v := range views {
		if err := writer.Write(record(v)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// BuildWorkbook renders line views into a single-sheet XLSX workbook.
func BuildWorkbook(views []accrual.LineView, sheet string) (*excelize.File, error) {
	if sheet == "" {
		sheet = "Accruals"
	}
	book := excelize.NewFile()
	defaultSheet := book.GetSheetName(0)
	if err := book.SetSheetName(defaultSheet, sheet); err != nil {
		return nil, err
	}

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := book.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}
	for rowIdx, v := range views {
		for col, value := range record(v) {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := book.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}
	return book, nil
}

func record(v accrual.LineView) []string {
	return []string{
		v.PONumber,
		fmt.Sprintf("%d", v.LineNo),
		v.Vendor,
		v.Description,
		string(v.Category),
		string(v.Status),
		v.NetAmount.String(),
		v.GLAccount,
		v.CostCenter,
		v.StartDate,
		v.EndDate,
		fmt.Sprintf("%d", v.TotalDays),
		fmt.Sprintf("%d", v.PrevMonthDays),
		fmt.Sprintf("%d", v.CurrentMonthDays),
		v.PrevMonthProvision.String(),
		v.SuggestedProvision.String(),
		v.PrevMonthGRN.String(),
		v.CurrentMonthGRN.String(),
		v.TotalGRNToDate.String(),
		v.PrevTrueUp.String(),
		v.CurrentTrueUp.String(),
		v.CarryForward.String(),
		v.FinalProvision.String(),
		v.Remarks,
	}
}
