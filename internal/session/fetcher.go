package session

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"artmarket/internal/domain"
)

// ProfileLookup es la búsqueda puntual de perfil por id.
// Debe devolver domain.ErrProfileNotFound cuando no hay fila.
type ProfileLookup interface {
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
}

// FetchObserver recibe el resultado de cada Fetch (métricas).
type FetchObserver interface {
	ObserveProfileFetch(attempts int, err error)
}

// ProfileFetcher resuelve el perfil tolerando el alta asíncrona tras el signup.
type ProfileFetcher struct {
	lookup   ProfileLookup
	policy   RetryPolicy
	sleep    Sleeper
	logger   *zap.Logger
	observer FetchObserver
}

func NewProfileFetcher(logger *zap.Logger, lookup ProfileLookup, policy RetryPolicy, sleep Sleeper) *ProfileFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sleep == nil {
		sleep = SleepContext
	}
	return &ProfileFetcher{
		lookup: lookup,
		policy: policy,
		sleep:  sleep,
		logger: logger,
	}
}

// WithObserver registra un observador y devuelve el mismo fetcher.
func (f *ProfileFetcher) WithObserver(observer FetchObserver) *ProfileFetcher {
	f.observer = observer
	return f
}

// Fetch busca el perfil. Solo reintenta ante ErrProfileNotFound; cualquier
// otro error se devuelve de inmediato.
func (f *ProfileFetcher) Fetch(ctx context.Context, id string) (domain.Profile, error) {
	if f.lookup == nil {
		return domain.Profile{}, errors.New("profile fetcher not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Profile{}, domain.ErrProfileNotFound
	}

	maxAttempts := f.policy.attempts()
	var (
		profile  domain.Profile
		err      error
		attempts int
	)
	for attempts = 1; attempts <= maxAttempts; attempts++ {
		if attempts > 1 {
			delay := f.policy.Delay(attempts - 1)
			f.logger.Debug("profile not found, retrying",
				zap.String("profile_id", id),
				zap.Int("attempt", attempts),
				zap.Duration("delay", delay),
			)
			if sleepErr := f.sleep(ctx, delay); sleepErr != nil {
				err = sleepErr
				break
			}
		}
		profile, err = f.lookup.GetProfile(ctx, id)
		if err == nil || !errors.Is(err, domain.ErrProfileNotFound) {
			break
		}
	}
	if attempts > maxAttempts {
		attempts = maxAttempts
	}
	if f.observer != nil {
		f.observer.ObserveProfileFetch(attempts, err)
	}
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}
