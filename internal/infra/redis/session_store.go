package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"quizbowl-practice/internal/app"
	"quizbowl-practice/internal/domain"
)

// SessionStore keeps live sessions in process (their timers and subscribers
// cannot leave it) and uses Redis for liveness markers and resume points:
//
//	SET  practice:session:{userID}  {setID} EX ttl
//	HSET practice:progress:{userID} {setID} {index}
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *SessionStore) Put(userID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.sessionKey(userID), session.SetID(), s.ttl).Err()
}

func (s *SessionStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	_ = s.client.Del(context.Background(), s.sessionKey(userID)).Err()
}

func (s *SessionStore) SaveProgress(ctx context.Context, userID string, p domain.Progress) error {
	return s.client.HSet(ctx, s.progressKey(userID), p.SetID, p.Index).Err()
}

func (s *SessionStore) LoadProgress(ctx context.Context, userID, setID string) (domain.Progress, bool, error) {
	raw, err := s.client.HGet(ctx, s.progressKey(userID), setID).Result()
	if err == redis.Nil {
		return domain.Progress{}, false, nil
	}
	if err != nil {
		return domain.Progress{}, false, err
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return domain.Progress{}, false, nil
	}
	return domain.Progress{SetID: setID, Index: index}, true, nil
}

func (s *SessionStore) sessionKey(userID string) string {
	return "practice:session:" + userID
}

func (s *SessionStore) progressKey(userID string) string {
	return "practice:progress:" + userID
}
