package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestMemorySignInLimiter(t *testing.T) {
	l := NewMemorySignInLimiter(10*time.Minute, 2).(*memorySignInLimiter)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("Ana@Example.com") || !l.Allow("ana@example.com ") {
		t.Fatalf("expected first two attempts to pass")
	}
	if l.Allow("ana@example.com") {
		t.Fatalf("expected third attempt to be limited")
	}
	if !l.Allow("other@example.com") {
		t.Fatalf("expected independent key to pass")
	}

	now = now.Add(6 * time.Minute)
	if !l.Allow("ana@example.com") {
		t.Fatalf("expected one token to be refilled after the refill interval")
	}

	now = now.Add(time.Hour)
	l.Allow("fresh@example.com")
	if _, ok := l.entries["ana@example.com"]; ok {
		t.Fatalf("expected idle key to be pruned")
	}

	if l.Allow("   ") {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestRedisSignInLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisSignInLimiter
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := &redisSignInLimiter{client: &mockRedisEvaler{result: 1}, window: time.Minute, max: 3, prefix: "artmarket:signin:"}
		if l.Allow("   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 3}
		l := &redisSignInLimiter{client: mock, window: 2 * time.Minute, max: 3, prefix: "artmarket:signin:"}
		if !l.Allow(" User@Example.com ") {
			t.Fatalf("expected allow when count equals max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "artmarket:signin:user@example.com" {
			t.Fatalf("unexpected key %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("unexpected window arg %+v", mock.lastArgs)
		}
	})

	t.Run("count above max", func(t *testing.T) {
		l := &redisSignInLimiter{client: &mockRedisEvaler{result: 4}, window: time.Minute, max: 3, prefix: "artmarket:signin:"}
		if l.Allow("user@example.com") {
			t.Fatalf("expected limited when count exceeds max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisSignInLimiter{client: &mockRedisEvaler{err: errors.New("down")}, window: time.Minute, max: 3, prefix: "artmarket:signin:"}
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open on redis error")
		}
	})
}
