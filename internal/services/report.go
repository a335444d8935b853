package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const ReportSheet = "Batch"

var reportHeaders = []string{
	"#",
	"File",
	"Status",
	"Failed Stage",
	"Error Kind",
	"Error",
	"Warning",
	"Candidate",
	"Output",
}

// BuildBatchReport writes one row per document of the batch into an xlsx workbook.
func BuildBatchReport(result *BatchResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("no batch result to report")
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ReportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ReportSheet, cell, h)
	}

	row := 2
	for _, doc := range result.Documents {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(ReportSheet, cell, v)
		}

		resp := doc.Response()
		candidate := ""
		if doc.Profile != nil {
			candidate = doc.Profile.Personal.Name
		}

		write(1, doc.Position)
		write(2, resp.Filename)
		write(3, resp.Status)
		write(4, resp.FailedStage)
		write(5, resp.ErrorKind)
		write(6, resp.Error)
		write(7, resp.Warning)
		write(8, candidate)
		write(9, resp.OutputName)
		row++
	}

	summary := row + 1
	_ = f.SetCellValue(ReportSheet, fmt.Sprintf("B%d", summary), "Succeeded")
	_ = f.SetCellValue(ReportSheet, fmt.Sprintf("C%d", summary), result.Succeeded)
	_ = f.SetCellValue(ReportSheet, fmt.Sprintf("B%d", summary+1), "Failed")
	_ = f.SetCellValue(ReportSheet, fmt.Sprintf("C%d", summary+1), result.Failed)

	_ = f.SetColWidth(ReportSheet, "A", "A", 5)
	_ = f.SetColWidth(ReportSheet, "B", "B", 32)
	_ = f.SetColWidth(ReportSheet, "C", "E", 18)
	_ = f.SetColWidth(ReportSheet, "F", "G", 60)
	_ = f.SetColWidth(ReportSheet, "H", "I", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
