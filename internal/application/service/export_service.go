package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ipecgroup/budget-portal/internal/domain/entity"
)

// ExportService renders the payment-request register an actor is allowed to
// see as an Excel workbook.
type ExportService interface {
	ExportRegister(ctx context.Context, opts ListOptions, actorID int64) ([]byte, error)
}

type exportServiceImpl struct {
	requests RequestService
	logger   Logger
}

// NewExportService creates a new ExportService.
func NewExportService(requests RequestService, logger Logger) ExportService {
	return &exportServiceImpl{requests: requests, logger: logger}
}

const registerSheet = "Requests"

var registerHeader = []string{
	"ID", "Serial", "Date", "Scope", "Title", "Beneficiary",
	"Amount", "Status", "Created By", "Created At",
}

func (s *exportServiceImpl) ExportRegister(ctx context.Context, opts ListOptions, actorID int64) ([]byte, error) {
	rows, err := s.requests.List(ctx, opts, actorID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(registerSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for col, title := range registerHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(registerSheet, cell, title); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, req := range rows {
		values := []interface{}{
			req.ID,
			req.Serial,
			req.DateJalali,
			req.Scope.String(),
			req.Title,
			req.BeneficiaryName,
			req.Amount,
			statusLabel(req.Status),
			strconv.FormatInt(req.CreatedByID, 10),
			req.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(registerSheet, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", req.ID, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}

	s.logger.Info("Exported request register", "actor_id", actorID, "rows", len(rows))
	return buf.Bytes(), nil
}

// statusLabel maps a status to the Persian-facing label the portal UI uses.
func statusLabel(status entity.Status) string {
	switch status {
	case entity.StatusPending:
		return "در جریان"
	case entity.StatusApproved:
		return "تایید شده"
	case entity.StatusRejected:
		return "رد شده"
	case entity.StatusReturned:
		return "برگشت داده شده"
	default:
		return status.String()
	}
}
