package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quizbowl-practice/internal/domain"
)

func TestSetRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		SetLoader: NewStaticSetLoader(map[string]domain.QuestionSet{
			"set-1": sampleSet(),
		}),
	}
	repo := NewSetRepository(loader, time.Minute)

	if _, err := repo.GetSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	repo.Invalidate("set-1")
	if _, err := repo.GetSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestSetRepositoryMissing(t *testing.T) {
	repo := NewSetRepository(NewStaticSetLoader(nil), time.Minute)
	if _, err := repo.GetSet(context.Background(), "nope"); !errors.Is(err, domain.ErrSetNotFound) {
		t.Fatalf("expected ErrSetNotFound, got %v", err)
	}
}

func TestLoadSetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sets.yaml")
	content := `sets:
  - id: demo
    title: Demo packet
    questions:
      - text: Name this capital on the Seine
        answer: Paris
      - id: custom
        text: Name this largest planet
        answer: Jupiter
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	loader, err := LoadSetFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	set, err := loader.LoadSet(context.Background(), "demo")
	if err != nil {
		t.Fatalf("load set: %v", err)
	}
	if set.Title != "Demo packet" || len(set.Questions) != 2 {
		t.Fatalf("unexpected set %+v", set)
	}
	if set.Questions[0].ID != "demo-1" || set.Questions[1].ID != "custom" {
		t.Fatalf("unexpected question ids %q %q", set.Questions[0].ID, set.Questions[1].ID)
	}
	if set.Questions[0].Answer != "Paris" {
		t.Fatalf("unexpected answer %q", set.Questions[0].Answer)
	}
}

type countingLoader struct {
	SetLoader
	calls int
}

func (l *countingLoader) LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	l.calls++
	return l.SetLoader.LoadSet(ctx, setID)
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:    "set-1",
		Title: "Packet 1",
		Questions: []domain.Question{
			{ID: "q1", Text: "Name this capital on the Seine", Answer: "Paris"},
		},
	}
}
