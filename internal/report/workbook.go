// Package report 会话结果导出为 Excel，供离线回看
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"wisefido-gait/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "Summary"
	SamplesSheet = "Samples"
)

// SamplesHeader 样本表头
var SamplesHeader = []string{"Index", "Left Pitch", "Left Event", "Right Pitch", "Right Event"}

// GenerateWorkbook 生成会话工作簿
// Summary 表为会话摘要，Samples 表每行一个样本序号，事件位置标记为 1。
func GenerateWorkbook(summary *models.SessionSummary, samples [2][]float64) ([]byte, error) {
	f := excelize.NewFile()

	summaryIndex, err := f.NewSheet(SummarySheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(SamplesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(summaryIndex)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummary(f, summary); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSamples(f, summary, samples, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, s *models.SessionSummary) error {
	bpm := "-"
	if s.BPM != nil {
		bpm = fmt.Sprintf("%.1f", *s.BPM)
	}

	rows := [][]interface{}{
		{"Session ID", s.SessionID},
		{"Exercise", s.Exercise},
		{"Sensitivity", s.Sensitivity},
		{"Started At", s.StartedAt.Format(time.RFC3339)},
		{"Ended At", s.EndedAt.Format(time.RFC3339)},
		{"Duration (s)", s.Duration().Seconds()},
		{"BPM", bpm},
		{"Left Role", s.Legs[0].Role},
		{"Left Movements", s.Legs[0].Movements},
		{"Left Samples", s.Legs[0].Samples},
		{"Right Role", s.Legs[1].Role},
		{"Right Movements", s.Legs[1].Movements},
		{"Right Samples", s.Legs[1].Samples},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return f.SetColWidth(SummarySheet, "B", "B", 40)
}

func writeSamples(f *excelize.File, s *models.SessionSummary, samples [2][]float64, headerStyle int) error {
	for col, header := range SamplesHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(SamplesSheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SamplesSheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	var events [2]map[int64]bool
	for leg := range events {
		events[leg] = make(map[int64]bool, len(s.Legs[leg].EventIndices))
		for _, idx := range s.Legs[leg].EventIndices {
			events[leg][idx] = true
		}
	}

	n := len(samples[0])
	if len(samples[1]) > n {
		n = len(samples[1])
	}
	for i := 0; i < n; i++ {
		row := []interface{}{i, nil, nil, nil, nil}
		for leg := 0; leg < 2; leg++ {
			if i < len(samples[leg]) {
				row[1+2*leg] = samples[leg][i]
			}
			if events[leg][int64(i)] {
				row[2+2*leg] = 1
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(SamplesSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write sample row %d: %w", i, err)
		}
	}

	// 冻结表头
	if err := f.SetPanes(SamplesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

// WriteWorkbook 将工作簿写入 dir/<session_id>.xlsx，返回文件路径
func WriteWorkbook(dir string, summary *models.SessionSummary, samples [2][]float64) (string, error) {
	data, err := GenerateWorkbook(summary, samples)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, summary.SessionID+".xlsx")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
