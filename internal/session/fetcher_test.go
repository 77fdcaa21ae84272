package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"artmarket/internal/domain"
)

type countingObserver struct {
	attempts int
	err      error
	calls    int
}

func (o *countingObserver) ObserveProfileFetch(attempts int, err error) {
	o.calls++
	o.attempts = attempts
	o.err = err
}

func TestProfileFetcherSingleRetryGivesUpAfterOneRetry(t *testing.T) {
	profiles := newMockProfiles()
	sleeper := &recordingSleeper{}
	fetcher := NewProfileFetcher(zap.NewNop(), profiles, SingleRetryPolicy(time.Second), sleeper.sleep)

	_, err := fetcher.Fetch(context.Background(), "u1")
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if profiles.getCount() != 2 {
		t.Fatalf("expected exactly 2 lookups, got %d", profiles.getCount())
	}
	delays := sleeper.calls()
	if len(delays) != 1 || delays[0] != time.Second {
		t.Fatalf("expected one fixed delay of 1s, got %v", delays)
	}
}

func TestProfileFetcherRetrySucceedsOnSecondLookup(t *testing.T) {
	profiles := newMockProfiles()
	profiles.put(domain.Profile{ID: "u1", Role: domain.RoleGallery})
	profiles.missesLeft = 1
	fetcher := NewProfileFetcher(zap.NewNop(), profiles, SingleRetryPolicy(time.Second), noSleep)

	p, err := fetcher.Fetch(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected profile, got %v", err)
	}
	if p.Role != domain.RoleGallery {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestProfileFetcherDefaultPolicyBacksOff(t *testing.T) {
	profiles := newMockProfiles()
	sleeper := &recordingSleeper{}
	obs := &countingObserver{}
	fetcher := NewProfileFetcher(zap.NewNop(), profiles, DefaultRetryPolicy(), sleeper.sleep).WithObserver(obs)

	_, err := fetcher.Fetch(context.Background(), "u1")
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if profiles.getCount() != 3 {
		t.Fatalf("expected 3 lookups, got %d", profiles.getCount())
	}
	delays := sleeper.calls()
	if len(delays) != 2 || delays[0] != 250*time.Millisecond || delays[1] != 500*time.Millisecond {
		t.Fatalf("unexpected delays %v", delays)
	}
	if obs.calls != 1 || obs.attempts != 3 || !errors.Is(obs.err, domain.ErrProfileNotFound) {
		t.Fatalf("unexpected observer state %+v", obs)
	}
}

func TestProfileFetcherDoesNotRetryOtherErrors(t *testing.T) {
	profiles := newMockProfiles()
	profiles.getErr = errBoom
	sleeper := &recordingSleeper{}
	fetcher := NewProfileFetcher(zap.NewNop(), profiles, DefaultRetryPolicy(), sleeper.sleep)

	_, err := fetcher.Fetch(context.Background(), "u1")
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if profiles.getCount() != 1 || len(sleeper.calls()) != 0 {
		t.Fatalf("expected a single lookup without sleeping")
	}
}

func TestProfileFetcherStopsWhenSleepCancelled(t *testing.T) {
	profiles := newMockProfiles()
	sleeper := &recordingSleeper{err: context.Canceled}
	fetcher := NewProfileFetcher(zap.NewNop(), profiles, DefaultRetryPolicy(), sleeper.sleep)

	_, err := fetcher.Fetch(context.Background(), "u1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if profiles.getCount() != 1 {
		t.Fatalf("expected one lookup, got %d", profiles.getCount())
	}
}

func TestProfileFetcherNoRetryPolicyLooksUpOnce(t *testing.T) {
	profiles := newMockProfiles()
	sleeper := &recordingSleeper{}
	fetcher := NewProfileFetcher(zap.NewNop(), profiles, NoRetryPolicy(), sleeper.sleep)

	if _, err := fetcher.Fetch(context.Background(), "u1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if profiles.getCount() != 1 {
		t.Fatalf("expected one lookup, got %d", profiles.getCount())
	}
	if delays := sleeper.calls(); len(delays) != 0 {
		t.Fatalf("expected no backoff, got %v", delays)
	}
}

func TestProfileFetcherEmptyID(t *testing.T) {
	profiles := newMockProfiles()
	fetcher := NewProfileFetcher(zap.NewNop(), profiles, DefaultRetryPolicy(), noSleep)
	if _, err := fetcher.Fetch(context.Background(), "  "); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found for empty id, got %v", err)
	}
	if profiles.getCount() != 0 {
		t.Fatalf("expected no lookup")
	}
}

func TestRetryPolicyDelayCapsAtMax(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, InitialDelay: time.Second, Multiplier: 3, MaxDelay: 5 * time.Second}
	want := []time.Duration{0, time.Second, 3 * time.Second, 5 * time.Second, 5 * time.Second}
	for retry, w := range want {
		if got := p.Delay(retry); got != w {
			t.Fatalf("retry %d: expected %v, got %v", retry, w, got)
		}
	}
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
