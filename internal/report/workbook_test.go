package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
	"wisefido-gait/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testSummary() *models.SessionSummary {
	bpm := 118.4
	started := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &models.SessionSummary{
		SessionID:   "3c0e6a43-3a0e-4b53-a37e-58c44b7f1f0e",
		Exercise:    "march",
		Sensitivity: 4,
		StartedAt:   started,
		EndedAt:     started.Add(12 * time.Second),
		Legs: [2]models.LegSummary{
			{Leg: "left", Role: "unknown", Samples: 4, Movements: 1, EventIndices: []int64{2}},
			{Leg: "right", Role: "unknown", Samples: 3, Movements: 1, EventIndices: []int64{0}},
		},
		BPM: &bpm,
	}
}

func TestGenerateWorkbook(t *testing.T) {
	data, err := GenerateWorkbook(testSummary(), [2][]float64{{1.5, 2.5, 3.5, 4.5}, {-1, -2, -3}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, SamplesSheet}, f.GetSheetList())

	id, err := f.GetCellValue(SummarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "3c0e6a43-3a0e-4b53-a37e-58c44b7f1f0e", id)

	bpm, err := f.GetCellValue(SummarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "118.4", bpm)

	rows, err := f.GetRows(SamplesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, SamplesHeader, rows[0])

	// 第 3 个样本（序号 2）为左腿事件
	assert.Equal(t, "2", rows[3][0])
	assert.Equal(t, "3.5", rows[3][1])
	assert.Equal(t, "1", rows[3][2])
	// 序号 0 为右腿事件
	assert.Equal(t, "-1", rows[1][3])
	assert.Equal(t, "1", rows[1][4])
	// 右腿只有 3 个样本
	assert.Len(t, rows[4], 2)
}

func TestGenerateWorkbook_IndeterminateBPM(t *testing.T) {
	summary := testSummary()
	summary.BPM = nil

	data, err := GenerateWorkbook(summary, [2][]float64{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	bpm, err := f.GetCellValue(SummarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "-", bpm)

	rows, err := f.GetRows(SamplesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteWorkbook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := WriteWorkbook(dir, testSummary(), [2][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "3c0e6a43-3a0e-4b53-a37e-58c44b7f1f0e.xlsx"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
