package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ipecgroup/budget-portal/internal/application/port"
	"github.com/ipecgroup/budget-portal/internal/domain/entity"
	"github.com/ipecgroup/budget-portal/internal/domain/event"
	"github.com/ipecgroup/budget-portal/internal/domain/workflow"
	"github.com/ipecgroup/budget-portal/internal/infrastructure/persistence/sqlite"
)

// RequestRepository implements port.RequestRepository on sqlite.
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `
	id, serial, date_jalali, scope, title, description,
	amount, cash_amount, cash_date_jalali, credit_amount, credit_pay,
	beneficiary_name, bank_info,
	doc_id, doc_other, doc_number, doc_date_jalali,
	currency_type_id, currency_source_id, project_id, budget_code,
	attachments, status, history_json, created_by_id, version,
	created_at, updated_at`

// Create inserts a new payment request row with version 0.
func (r *RequestRepository) Create(ctx context.Context, req *entity.PaymentRequest) error {
	historyJSON, err := req.History.Marshal()
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	query := `
		INSERT INTO payment_requests (
			serial, date_jalali, scope, title, description,
			amount, cash_amount, cash_date_jalali, credit_amount, credit_pay,
			beneficiary_name, bank_info,
			doc_id, doc_other, doc_number, doc_date_jalali,
			currency_type_id, currency_source_id, project_id, budget_code,
			attachments, status, history_json, created_by_id, version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		nullString(req.Serial),
		nullString(req.DateJalali),
		req.Scope.String(),
		req.Title,
		nullString(req.Description),
		req.Amount,
		req.CashAmount,
		nullString(req.CashDateJalali),
		req.CreditAmount,
		nullString(req.CreditPay),
		nullString(req.BeneficiaryName),
		nullString(req.BankInfo),
		nullString(req.DocID),
		nullString(req.DocOther),
		nullString(req.DocNumber),
		nullString(req.DocDateJalali),
		req.CurrencyTypeID,
		req.CurrencySourceID,
		req.ProjectID,
		nullString(req.BudgetCode),
		nullString(req.Attachments),
		req.Status.String(),
		string(historyJSON),
		req.CreatedByID,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment request", zap.Error(err))
		return fmt.Errorf("failed to create payment request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	req.Version = 0
	return nil
}

// GetByID retrieves a payment request by ID, nil when absent.
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.PaymentRequest, error) {
	query := `SELECT` + requestColumns + ` FROM payment_requests WHERE id = ?`

	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id)
	req, err := scanRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payment request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}
	return req, nil
}

// Update persists history, status and descriptive fields guarded by the row
// version read earlier. A stale version loses with port.ErrVersionConflict.
func (r *RequestRepository) Update(ctx context.Context, req *entity.PaymentRequest, expectedVersion int64) error {
	historyJSON, err := req.History.Marshal()
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	query := `
		UPDATE payment_requests SET
			serial = ?, date_jalali = ?, title = ?, description = ?,
			amount = ?, cash_amount = ?, cash_date_jalali = ?,
			credit_amount = ?, credit_pay = ?,
			beneficiary_name = ?, bank_info = ?,
			doc_id = ?, doc_other = ?, doc_number = ?, doc_date_jalali = ?,
			currency_type_id = ?, currency_source_id = ?,
			project_id = ?, budget_code = ?, attachments = ?,
			status = ?, history_json = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		nullString(req.Serial),
		nullString(req.DateJalali),
		req.Title,
		nullString(req.Description),
		req.Amount,
		req.CashAmount,
		nullString(req.CashDateJalali),
		req.CreditAmount,
		nullString(req.CreditPay),
		nullString(req.BeneficiaryName),
		nullString(req.BankInfo),
		nullString(req.DocID),
		nullString(req.DocOther),
		nullString(req.DocNumber),
		nullString(req.DocDateJalali),
		req.CurrencyTypeID,
		req.CurrencySourceID,
		req.ProjectID,
		nullString(req.BudgetCode),
		nullString(req.Attachments),
		req.Status.String(),
		string(historyJSON),
		req.UpdatedAt,
		req.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update payment request", zap.Int64("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update payment request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrVersionConflict
	}

	req.Version = expectedVersion + 1
	return nil
}

// Delete removes a payment request row.
func (r *RequestRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`DELETE FROM payment_requests WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete payment request", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete payment request: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

// List retrieves payment requests newest first, narrowed by the filter.
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.PaymentRequest, error) {
	var conds []string
	var args []interface{}

	if filter.Scope != "" {
		conds = append(conds, "scope = ?")
		args = append(args, filter.Scope)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Text != "" {
		conds = append(conds, "(serial LIKE ? OR title LIKE ? OR beneficiary_name LIKE ?)")
		pattern := "%" + filter.Text + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT` + requestColumns + ` FROM payment_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list payment requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	defer rows.Close()

	var out []*entity.PaymentRequest
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// scanRequest maps one row onto the entity regardless of whether it came from
// QueryRow or Rows.
func scanRequest(scan func(dest ...interface{}) error) (*entity.PaymentRequest, error) {
	var req entity.PaymentRequest
	var (
		serial, dateJalali, description     sql.NullString
		cashDateJalali, creditPay           sql.NullString
		beneficiaryName, bankInfo           sql.NullString
		docID, docOther, docNumber, docDate sql.NullString
		budgetCode, attachments             sql.NullString
		cashAmount, creditAmount            sql.NullInt64
		currencyTypeID, currencySourceID    sql.NullInt64
		projectID                           sql.NullInt64
		scope, status, historyJSON          string
	)

	err := scan(
		&req.ID, &serial, &dateJalali, &scope, &req.Title, &description,
		&req.Amount, &cashAmount, &cashDateJalali, &creditAmount, &creditPay,
		&beneficiaryName, &bankInfo,
		&docID, &docOther, &docNumber, &docDate,
		&currencyTypeID, &currencySourceID, &projectID, &budgetCode,
		&attachments, &status, &historyJSON, &req.CreatedByID, &req.Version,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Serial = serial.String
	req.DateJalali = dateJalali.String
	req.Scope = workflow.UnitKind(scope)
	req.Description = description.String
	req.CashDateJalali = cashDateJalali.String
	req.CreditPay = creditPay.String
	req.BeneficiaryName = beneficiaryName.String
	req.BankInfo = bankInfo.String
	req.DocID = docID.String
	req.DocOther = docOther.String
	req.DocNumber = docNumber.String
	req.DocDateJalali = docDate.String
	req.BudgetCode = budgetCode.String
	req.Attachments = attachments.String
	req.Status = entity.Status(status)

	req.CashAmount = nullableInt64(cashAmount)
	req.CreditAmount = nullableInt64(creditAmount)
	req.CurrencyTypeID = nullableInt64(currencyTypeID)
	req.CurrencySourceID = nullableInt64(currencySourceID)
	req.ProjectID = nullableInt64(projectID)

	req.History, err = event.UnmarshalLog([]byte(historyJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return &req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
