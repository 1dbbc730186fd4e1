package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yazinsai/cal-ai/internal/model"
)

func sampleHistory() History {
	ts := time.Date(2026, 3, 4, 8, 15, 0, 0, time.UTC)
	return History{
		Days: []model.DailyProgress{
			{Date: "2026-03-03", Entries: []model.FoodEntry{}},
			{
				Date:    "2026-03-04",
				Entries: []model.FoodEntry{{ID: "a", Name: "Oatmeal", Calories: 300, Timestamp: ts, MealType: model.MealBreakfast}},
				Totals:  model.Macros{Calories: 300},
			},
		},
		Target:         &model.DailyTarget{Calories: 2000, Protein: 150, Carbs: 200, Fat: 65, Sugar: 30},
		Location:       time.UTC,
		GeneratedAt:    ts,
		IncludeEntries: true,
	}
}

func TestWriteProducesPDF(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := Write(&buf, sampleHistory()); err != nil {
		t.Fatalf("write report: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestWriteFileWithoutTarget(t *testing.T) {
	t.Parallel()
	h := sampleHistory()
	h.Target = nil
	path := filepath.Join(t.TempDir(), "history.pdf")
	if err := WriteFile(path, h); err != nil {
		t.Fatalf("write report file: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat report: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("report file is empty")
	}
}
