package redis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quizbowl-practice/internal/domain"
	"quizbowl-practice/internal/infra/memory"
)

// SetRepository caches question sets in Redis and falls back to a loader on miss.
// Layout per set:
//
//	HSET  qset:{setID}:meta    title {title}
//	RPUSH qset:{setID}:ids     {questionID}...
//	HSET  qset:{setID}:text    {questionID} {text}
//	HSET  qset:{setID}:answers {questionID} {answer}
type SetRepository struct {
	client *redis.Client
	loader memory.SetLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewSetRepository(client *redis.Client, loader memory.SetLoader, ttl time.Duration) *SetRepository {
	return &SetRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SetRepository) GetSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := r.readCache(ctx, setID); ok {
		return set, nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if set, ok := r.readCache(ctx, setID); ok {
			return set, nil
		}

		set, err := r.loader.LoadSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		r.writeCache(ctx, set)
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// Invalidate removes a cached set so the next read goes to the loader.
func (r *SetRepository) Invalidate(ctx context.Context, setID string) error {
	return r.client.Del(ctx, r.keys(setID)...).Err()
}

func (r *SetRepository) readCache(ctx context.Context, setID string) (domain.QuestionSet, bool) {
	pipe := r.client.Pipeline()
	ids := pipe.LRange(ctx, r.idsKey(setID), 0, -1)
	texts := pipe.HGetAll(ctx, r.textKey(setID))
	answers := pipe.HGetAll(ctx, r.answersKey(setID))
	title := pipe.HGet(ctx, r.metaKey(setID), "title")
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.QuestionSet{}, false
	}
	if len(ids.Val()) == 0 {
		return domain.QuestionSet{}, false
	}
	return buildSetFromCache(setID, title.Val(), ids.Val(), texts.Val(), answers.Val())
}

func (r *SetRepository) writeCache(ctx context.Context, set domain.QuestionSet) {
	if len(set.Questions) == 0 {
		return
	}
	ttl := r.ttlWithJitter()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.keys(set.ID)...)
	pipe.HSet(ctx, r.metaKey(set.ID), "title", set.Title)
	for _, q := range set.Questions {
		pipe.RPush(ctx, r.idsKey(set.ID), q.ID)
		pipe.HSet(ctx, r.textKey(set.ID), q.ID, q.Text)
		pipe.HSet(ctx, r.answersKey(set.ID), q.ID, q.Answer)
	}
	if ttl > 0 {
		for _, key := range r.keys(set.ID) {
			pipe.Expire(ctx, key, ttl)
		}
	}
	_, _ = pipe.Exec(ctx)
}

func buildSetFromCache(setID, title string, ids []string, texts, answers map[string]string) (domain.QuestionSet, bool) {
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		text, ok := texts[id]
		if !ok {
			// partially expired entry; treat as a miss
			return domain.QuestionSet{}, false
		}
		questions = append(questions, domain.Question{ID: id, Text: text, Answer: answers[id]})
	}
	return domain.QuestionSet{ID: setID, Title: title, Questions: questions}, true
}

func (r *SetRepository) keys(setID string) []string {
	return []string{r.metaKey(setID), r.idsKey(setID), r.textKey(setID), r.answersKey(setID)}
}

func (r *SetRepository) metaKey(setID string) string    { return "qset:" + setID + ":meta" }
func (r *SetRepository) idsKey(setID string) string     { return "qset:" + setID + ":ids" }
func (r *SetRepository) textKey(setID string) string    { return "qset:" + setID + ":text" }
func (r *SetRepository) answersKey(setID string) string { return "qset:" + setID + ":answers" }

func (r *SetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
