package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"quizbowl-practice/internal/domain"
	"quizbowl-practice/internal/infra/memory"
)

func TestSetRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		SetLoader: memory.NewStaticSetLoader(map[string]domain.QuestionSet{
			"set-1": sampleSet(),
		}),
	}
	repo := NewSetRepository(client, loader, time.Minute)

	first, err := repo.GetSet(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("get set: %v", err)
	}
	if !mr.Exists("qset:set-1:ids") || !mr.Exists("qset:set-1:answers") {
		t.Fatalf("expected set cached in redis")
	}

	second, err := repo.GetSet(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("get set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if second.Title != first.Title || len(second.Questions) != 2 {
		t.Fatalf("unexpected cached set %+v", second)
	}
	for i, q := range second.Questions {
		if q != first.Questions[i] {
			t.Fatalf("question %d differs after cache: %+v vs %+v", i, q, first.Questions[i])
		}
	}

	if err := repo.Invalidate(context.Background(), "set-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := repo.GetSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestSetRepositoryExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{SetLoader: memory.NewStaticSetLoader(map[string]domain.QuestionSet{"set-1": sampleSet()})}
	repo := NewSetRepository(newClient(mr), loader, time.Minute)

	_, _ = repo.GetSet(context.Background(), "set-1")
	mr.FastForward(2 * time.Minute)
	_, _ = repo.GetSet(context.Background(), "set-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}
}

func TestSetRepositoryMissing(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewSetRepository(newClient(mr), memory.NewStaticSetLoader(nil), time.Minute)
	if _, err := repo.GetSet(context.Background(), "nope"); !errors.Is(err, domain.ErrSetNotFound) {
		t.Fatalf("expected ErrSetNotFound, got %v", err)
	}
}

func TestSetRepositoryConcurrentFillsOfDistinctSets(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	sets := make(map[string]domain.QuestionSet)
	for i := 0; i < 8; i++ {
		set := sampleSet()
		set.ID = fmt.Sprintf("set-%d", i)
		sets[set.ID] = set
	}
	repo := NewSetRepository(newClient(mr), memory.NewStaticSetLoader(sets), time.Minute)

	var wg sync.WaitGroup
	errs := make(chan error, len(sets))
	for id := range sets {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := repo.GetSet(context.Background(), id); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("get set: %v", err)
	}
	for id := range sets {
		ttl := mr.TTL("qset:" + id + ":ids")
		if ttl < time.Minute || ttl > time.Minute+6*time.Second {
			t.Fatalf("expected jittered ttl for %s, got %v", id, ttl)
		}
	}
}

type countingLoader struct {
	memory.SetLoader
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
			{ID: "q2", Text: "Name this largest planet", Answer: "Jupiter"},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
