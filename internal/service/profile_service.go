package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"artmarket/internal/domain"
	"artmarket/internal/repository"
)

var (
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidProfile = errors.New("invalid profile")
)

// ProfilePatch son los campos editables por PATCH; nil significa sin cambio.
type ProfilePatch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Telephone *string `json:"telephone"`
	Country   *string `json:"country"`
	AvatarURL *string `json:"avatar_url"`
	Role      *string `json:"role"`
}

// ProfileService aplica la política de escritura sobre perfiles.
type ProfileService struct {
	logger   *zap.Logger
	profiles repository.ProfileRepository
	now      func() time.Time
}

func NewProfileService(logger *zap.Logger, profiles repository.ProfileRepository) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		logger:   logger,
		profiles: profiles,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProfileService) Get(ctx context.Context, id string) (domain.Profile, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return s.profiles.GetProfile(ctx, id)
}

// Upsert crea o reemplaza el perfil p en nombre de actor.
func (s *ProfileService) Upsert(ctx context.Context, actor domain.Identity, p domain.Profile) (domain.Profile, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" || !p.Role.Valid() {
		return domain.Profile{}, ErrInvalidProfile
	}
	isAdmin, err := s.isAdmin(ctx, actor)
	if err != nil {
		return domain.Profile{}, err
	}
	if p.ID != actor.ID && !isAdmin {
		return domain.Profile{}, ErrForbidden
	}

	existing, err := s.profiles.GetProfile(ctx, p.ID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		if p.Role == domain.RoleAdmin && !isAdmin {
			return domain.Profile{}, ErrForbidden
		}
		p.CreatedAt = s.now()
	case err != nil:
		return domain.Profile{}, err
	default:
		if p.Role != existing.Role && !isAdmin {
			return domain.Profile{}, ErrForbidden
		}
		p.CreatedAt = existing.CreatedAt
	}

	if strings.TrimSpace(p.Email) == "" && p.ID == actor.ID {
		p.Email = actor.Email
	}
	p.UpdatedAt = s.now()
	saved, err := s.profiles.UpsertProfile(ctx, p)
	if err != nil {
		return domain.Profile{}, err
	}
	s.logger.Info("profile saved",
		zap.String("profile_id", saved.ID),
		zap.String("role", saved.Role.String()),
	)
	return saved, nil
}

// Update aplica un patch sobre un perfil existente.
func (s *ProfileService) Update(ctx context.Context, actor domain.Identity, id string, patch ProfilePatch) (domain.Profile, error) {
	isAdmin, err := s.isAdmin(ctx, actor)
	if err != nil {
		return domain.Profile{}, err
	}
	if id != actor.ID && !isAdmin {
		return domain.Profile{}, ErrForbidden
	}
	current, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}

	applyString(&current.FirstName, patch.FirstName)
	applyString(&current.LastName, patch.LastName)
	applyString(&current.Telephone, patch.Telephone)
	applyString(&current.Country, patch.Country)
	applyString(&current.AvatarURL, patch.AvatarURL)
	if patch.Role != nil {
		role := domain.ParseRole(*patch.Role)
		if !role.Valid() {
			return domain.Profile{}, ErrInvalidProfile
		}
		if role != current.Role && !isAdmin {
			return domain.Profile{}, ErrForbidden
		}
		current.Role = role
	}
	current.UpdatedAt = s.now()
	return s.profiles.UpdateProfile(ctx, current)
}

func (s *ProfileService) isAdmin(ctx context.Context, actor domain.Identity) (bool, error) {
	if actor.ID == "" {
		return false, ErrForbidden
	}
	p, err := s.profiles.GetProfile(ctx, actor.ID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Role == domain.RoleAdmin, nil
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
