package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"quizbowl-practice/internal/speech"
)

// AudioCache wraps a Synthesizer and keeps synthesized clips in Redis:
//
//	HSET tts:audio:{sha256(voice|rate|text)} encoding {enc} content {base64}
//
// Clips for on-device playback carry no audio and are never cached.
type AudioCache struct {
	client *redis.Client
	next   speech.Synthesizer
	ttl    time.Duration
}

func NewAudioCache(client *redis.Client, next speech.Synthesizer, ttl time.Duration) *AudioCache {
	return &AudioCache{client: client, next: next, ttl: ttl}
}

func (c *AudioCache) Synthesize(ctx context.Context, req speech.Request) (speech.Audio, error) {
	key := c.key(req)
	cached, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && cached["content"] != "" {
		return speech.Audio{Content: cached["content"], Encoding: cached["encoding"]}, nil
	}

	audio, err := c.next.Synthesize(ctx, req)
	if err != nil {
		return speech.Audio{}, err
	}
	if audio.Content == "" || audio.Encoding == speech.EncodingDevice {
		return audio, nil
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, "encoding", audio.Encoding, "content", audio.Content)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("audio cache write failed: %v", err)
	}
	return audio, nil
}

func (c *AudioCache) key(req speech.Request) string {
	voice := ""
	if req.Voice != nil {
		voice = req.Voice.Name
	}
	sum := sha256.Sum256([]byte(voice + "|" + strconv.FormatFloat(req.Rate, 'f', -1, 64) + "|" + req.Text))
	return "tts:audio:" + hex.EncodeToString(sum[:])
}
