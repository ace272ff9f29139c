package accrual

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence for the accrual engine.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const lineColumns = `id, po_number, line_no, vendor, description, net_amount::text,
	gl_account, cost_center, profit_center, plant, start_date, end_date, category, status`

// ListPOLines returns every line of one accrual category.
func (r *Repository) ListPOLines(ctx context.Context, category Category) ([]POLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+lineColumns+` FROM po_lines WHERE category = $1 ORDER BY po_number, line_no`,
		string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []POLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetPOLine fetches one line by id.
func (r *Repository) GetPOLine(ctx context.Context, id int64) (POLine, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+lineColumns+` FROM po_lines WHERE id = $1`, id)
	line, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return POLine{}, ErrNotFound
		}
		return POLine{}, err
	}
	return line, nil
}

// ListGRNTransactions loads goods-receipt postings for the given lines,
// grouped by line id.
func (r *Repository) ListGRNTransactions(ctx context.Context, lineIDs []int64) (map[int64][]GRNTransaction, error) {
	byLine := make(map[int64][]GRNTransaction, len(lineIDs))
	if len(lineIDs) == 0 {
		return byLine, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, po_line_id, posting_date, value::text
		 FROM grn_transactions WHERE po_line_id = ANY($1) ORDER BY id`,
		lineIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var txn GRNTransaction
		var value string
		if err := rows.Scan(&txn.ID, &txn.POLineID, &txn.PostingDate, &value); err != nil {
			return nil, err
		}
		if txn.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("accrual: grn %d value: %w", txn.ID, err)
		}
		byLine[txn.POLineID] = append(byLine[txn.POLineID], txn)
	}
	return byLine, rows.Err()
}

// GetPeriodCalculation fetches the adjustment record for one line and month.
func (r *Repository) GetPeriodCalculation(ctx context.Context, lineID int64, month string) (PeriodCalculation, error) {
	var calc PeriodCalculation
	var prev, current string
	err := r.pool.QueryRow(ctx,
		`SELECT po_line_id, month, prev_true_up::text, current_true_up::text, remarks, updated_by, updated_at
		 FROM period_calculations WHERE po_line_id = $1 AND month = $2`,
		lineID, month).Scan(&calc.POLineID, &calc.Month, &prev, &current, &calc.Remarks, &calc.UpdatedBy, &calc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PeriodCalculation{}, ErrNotFound
		}
		return PeriodCalculation{}, err
	}
	if calc.PrevTrueUp, err = decimal.NewFromString(prev); err != nil {
		return PeriodCalculation{}, err
	}
	if calc.CurrentTrueUp, err = decimal.NewFromString(current); err != nil {
		return PeriodCalculation{}, err
	}
	return calc, nil
}

// UpsertTrueUp writes one true-up amount, creating the (line, month) record
// lazily on first edit. Remarks and the other true-up are left untouched.
func (r *Repository) UpsertTrueUp(ctx context.Context, lineID int64, month string, field TrueUpField, value decimal.Decimal, editor string) error {
	var column string
	switch field {
	case TrueUpPrevMonth:
		column = "prev_true_up"
	case TrueUpCurrentMonth:
		column = "current_true_up"
	default:
		return fmt.Errorf("%w: unknown true-up field %q", ErrValidation, field)
	}
	query := fmt.Sprintf(
		`INSERT INTO period_calculations (po_line_id, month, %s, updated_by, updated_at)
		 VALUES ($1, $2, $3::numeric, $4, now())
		 ON CONFLICT (po_line_id, month)
		 DO UPDATE SET %s = EXCLUDED.%s, updated_by = EXCLUDED.updated_by, updated_at = now()`,
		column, column, column)
	_, err := r.pool.Exec(ctx, query, lineID, month, value.String(), editor)
	return mapWriteError(err)
}

// UpsertRemarks writes the remarks text for one (line, month) pair.
func (r *Repository) UpsertRemarks(ctx context.Context, lineID int64, month string, remarks, editor string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO period_calculations (po_line_id, month, remarks, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (po_line_id, month)
		 DO UPDATE SET remarks = EXCLUDED.remarks, updated_by = EXCLUDED.updated_by, updated_at = now()`,
		lineID, month, remarks, editor)
	return mapWriteError(err)
}

// GetConfig reads one configuration value.
func (r *Repository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_config WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// AssignmentFor returns activity-tracking metadata for a line.
func (r *Repository) AssignmentFor(ctx context.Context, lineID int64) (Assignment, error) {
	var a Assignment
	err := r.pool.QueryRow(ctx,
		`SELECT po_line_id, assignee, status FROM activity_assignments WHERE po_line_id = $1`,
		lineID).Scan(&a.POLineID, &a.Assignee, &a.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, err
	}
	return a, nil
}

func scanLine(row pgx.Row) (POLine, error) {
	var line POLine
	var net string
	if err := row.Scan(&line.ID, &line.PONumber, &line.LineNo, &line.Vendor, &line.Description,
		&net, &line.GLAccount, &line.CostCenter, &line.ProfitCenter, &line.Plant,
		&line.StartDate, &line.EndDate, &line.Category, &line.Status); err != nil {
		return POLine{}, err
	}
	amount, err := decimal.NewFromString(net)
	if err != nil {
		return POLine{}, fmt.Errorf("accrual: line %d net amount: %w", line.ID, err)
	}
	line.NetAmount = amount
	return line, nil
}

// mapWriteError translates constraint violations into domain errors; anything
// else propagates untouched for the caller to handle.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign key: the referenced PO line is gone
			return ErrNotFound
		case "23514": // check constraint
			return fmt.Errorf("%w: %s", ErrValidation, pgErr.ConstraintName)
		}
	}
	return err
}
