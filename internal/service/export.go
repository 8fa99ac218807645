package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/grading"
	"github.com/gradeflow/gradeflow/internal/store"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

type ExportService struct {
	store store.Store
	log   *zap.SugaredLogger
}

func NewExportService(s store.Store) *ExportService {
	return &ExportService{store: s, log: zap.S().Named("export_service")}
}

// BuildTable assembles the columnar grade table for one assignment: the
// union of canonical leaf keys across all evaluated submissions, one row
// per submission, nil cells where a submission has no score for a key.
func (s *ExportService) BuildTable(ctx context.Context, assignmentID uuid.UUID) (*api.ExportTable, error) {
	if _, err := s.store.Assignment().Get(ctx, assignmentID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrAssignmentNotFound(assignmentID)
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	submissions, err := s.store.Submission().ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return assembleTable(submissions), nil
}

func assembleTable(submissions model.SubmissionList) *api.ExportTable {
	trees := make([]*grading.ScoreTree, len(submissions))
	for i := range submissions {
		if submissions[i].ScoreTree != nil {
			trees[i] = &submissions[i].ScoreTree.Data
		}
	}

	columns := grading.BuildColumns(trees)
	table := &api.ExportTable{
		Columns: make([]api.ExportColumn, 0, len(columns)),
		Rows:    make([]api.ExportRow, 0, len(submissions)),
	}
	for _, c := range columns {
		table.Columns = append(table.Columns, api.ExportColumn{Key: string(c.Key), MaxScore: c.MaxScore})
	}

	for i := range submissions {
		sub := &submissions[i]
		row := api.ExportRow{
			SubmissionID: sub.ID,
			StudentID:    sub.StudentID,
			StudentName:  sub.StudentName,
			Feedback:     sub.Feedback,
			Cells:        make(map[string]*float64, len(columns)),
		}
		if sub.TotalScore != nil {
			row.TotalScore = *sub.TotalScore
		}
		if sub.TotalPossible != nil {
			row.TotalPossible = *sub.TotalPossible
		}

		values := grading.LeafValues(trees[i])
		for _, c := range columns {
			if v, ok := values[c.Key]; ok {
				earned := v
				row.Cells[string(c.Key)] = &earned
			} else {
				// nil cell: "no data", rendered as an explicit marker so it
				// cannot be misread as a zero score.
				row.Cells[string(c.Key)] = nil
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// WriteXLSX renders the table as a workbook: one header row, one row per
// submission, no-data cells carrying the explicit marker.
func (s *ExportService) WriteXLSX(w io.Writer, table *api.ExportTable) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Errorf("closing workbook: %v", err)
		}
	}()

	const sheet = "Grades"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := []string{"Submission ID", "Student ID", "Student Name"}
	for _, c := range table.Columns {
		headers = append(headers, fmt.Sprintf("Task %s (%g)", c.Key, c.MaxScore))
	}
	headers = append(headers, "Total", "Total Possible", "Feedback")
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for rowIdx, row := range table.Rows {
		values := []any{row.SubmissionID.String(), row.StudentID, row.StudentName}
		for _, c := range table.Columns {
			if v := row.Cells[c.Key]; v != nil {
				values = append(values, *v)
			} else {
				values = append(values, grading.NoData)
			}
		}
		values = append(values, row.TotalScore, row.TotalPossible, row.Feedback)

		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
