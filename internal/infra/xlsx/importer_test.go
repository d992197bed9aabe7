package xlsx

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheets map[string][][]string, order ...string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		for r, row := range sheets[name] {
			for c, v := range row {
				ref, _ := excelize.CoordinatesToCellName(c+1, r+1)
				_ = f.SetCellValue(name, ref, v)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestReadSetsPerSheet(t *testing.T) {
	buf := workbook(t, map[string][][]string{
		"Packet 1": {
			{"Answer", "Question"},
			{"Paris", "Name this capital on the Seine"},
			{"", "Row without answer is skipped"},
			{"Jupiter", "Name this largest planet"},
		},
		"Packet 2": {
			{"ID", "Text", "Answer"},
			{"edison", "This inventor founded Menlo Park", "Thomas Edison"},
		},
	}, "Packet 1", "Packet 2")

	sets, err := ReadSets(buf, "")
	if err != nil {
		t.Fatalf("ReadSets: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("expected 2 sets, got %d", len(sets))
	}
	first := sets[0]
	if first.ID != "packet-1" || first.Title != "Packet 1" || len(first.Questions) != 2 {
		t.Fatalf("unexpected first set %+v", first)
	}
	if first.Questions[1].ID != "packet-1-2" || first.Questions[1].Answer != "Jupiter" {
		t.Fatalf("unexpected question %+v", first.Questions[1])
	}
	if sets[1].Questions[0].ID != "edison" || sets[1].Questions[0].Answer != "Thomas Edison" {
		t.Fatalf("unexpected second set %+v", sets[1])
	}
}

func TestReadSetsWithExplicitID(t *testing.T) {
	buf := workbook(t, map[string][][]string{
		"Sheet1": {{"question", "answer"}, {"Name this capital on the Seine", "Paris"}},
		"Sheet2": {{"question", "answer"}, {"Ignored", "x"}},
	}, "Sheet1", "Sheet2")

	sets, err := ReadSets(buf, "geo")
	if err != nil {
		t.Fatalf("ReadSets: %v", err)
	}
	if len(sets) != 1 || sets[0].ID != "geo" || sets[0].Questions[0].ID != "geo-1" {
		t.Fatalf("unexpected sets %+v", sets)
	}
}

func TestReadSetsMissingColumns(t *testing.T) {
	buf := workbook(t, map[string][][]string{
		"Sheet1": {{"prompt", "solution"}, {"a", "b"}},
	}, "Sheet1")

	if _, err := ReadSets(buf, ""); !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
}
