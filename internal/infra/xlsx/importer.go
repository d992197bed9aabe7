// Package xlsx reads question sets from spreadsheets. Every sheet is one set;
// the first row names the columns (question/text, answer, optional id).
package xlsx

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"quizbowl-practice/internal/domain"
)

var ErrMissingColumns = errors.New("sheet needs question and answer columns")

type columns struct {
	id, text, answer int
}

// ReadSets parses every sheet of the workbook in r. When setID is non-empty
// only the first sheet is read and stored under that id.
func ReadSets(r io.Reader, setID string) ([]domain.QuestionSet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if setID != "" && len(sheets) > 1 {
		sheets = sheets[:1]
	}

	var sets []domain.QuestionSet
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows of %s: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}
		cols, ok := detectColumns(rows[0])
		if !ok {
			return nil, fmt.Errorf("%s: %w", sheet, ErrMissingColumns)
		}

		id := setID
		if id == "" {
			id = slug(sheet)
		}
		set := domain.QuestionSet{ID: id, Title: sheet}
		for _, row := range rows[1:] {
			text := strings.TrimSpace(cell(row, cols.text))
			answer := strings.TrimSpace(cell(row, cols.answer))
			if text == "" || answer == "" {
				continue
			}
			qid := strings.TrimSpace(cell(row, cols.id))
			if qid == "" {
				qid = fmt.Sprintf("%s-%d", id, len(set.Questions)+1)
			}
			set.Questions = append(set.Questions, domain.Question{ID: qid, Text: text, Answer: answer})
		}
		if len(set.Questions) > 0 {
			sets = append(sets, set)
		}
	}
	return sets, nil
}

func detectColumns(header []string) (columns, bool) {
	cols := columns{id: -1, text: -1, answer: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "id":
			cols.id = i
		case "question", "text", "tossup":
			cols.text = i
		case "answer":
			cols.answer = i
		}
	}
	return cols, cols.text >= 0 && cols.answer >= 0
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
