// Package profile stores the single user profile of a store.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"animind/internal/domain"
	"animind/internal/storage"
)

// ErrEmptyName is returned when saving a profile without a display name.
var ErrEmptyName = errors.New("profile name must not be empty")

type Service struct {
	store storage.Store
	log   logrus.FieldLogger
}

func NewService(store storage.Store, logger logrus.FieldLogger) *Service {
	return &Service{
		store: store,
		log:   logger.WithField("component", "profile"),
	}
}

// Get returns the stored profile. The default guest profile is persisted
// and returned the first time a store is read.
func (s *Service) Get(ctx context.Context) (domain.Profile, error) {
	p, found, err := storage.Load[domain.Profile](ctx, s.store, storage.KeyProfile)
	if err != nil {
		s.log.WithError(err).Error("Failed to load profile")
		return domain.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	if found {
		return p, nil
	}

	err = storage.Mutate(ctx, s.store, storage.KeyProfile, func(cur domain.Profile, found bool) (domain.Profile, error) {
		if found {
			p = cur
			return cur, storage.ErrNoChange
		}
		p = domain.DefaultProfile()
		return p, nil
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to create default profile")
		return domain.Profile{}, fmt.Errorf("failed to create default profile: %w", err)
	}
	s.log.Debug("Default profile created")
	return p, nil
}

// Set replaces the profile wholesale. Handles are stored with a leading "@".
func (s *Service) Set(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	p, err := normalize(p)
	if err != nil {
		return domain.Profile{}, err
	}
	if err := storage.Save(ctx, s.store, storage.KeyProfile, p); err != nil {
		s.log.WithError(err).Error("Failed to save profile")
		return domain.Profile{}, fmt.Errorf("failed to save profile: %w", err)
	}
	s.log.WithField("handle", p.Handle).Info("Profile updated")
	return p, nil
}

// Update applies fn to the stored profile, or to the default one when none
// is stored, and saves the result in a single atomic write.
func (s *Service) Update(ctx context.Context, fn func(*domain.Profile)) (domain.Profile, error) {
	var updated domain.Profile
	err := storage.Mutate(ctx, s.store, storage.KeyProfile, func(cur domain.Profile, found bool) (domain.Profile, error) {
		if !found {
			cur = domain.DefaultProfile()
		}
		fn(&cur)
		next, err := normalize(cur)
		if err != nil {
			return domain.Profile{}, err
		}
		updated = next
		return next, nil
	})
	if errors.Is(err, ErrEmptyName) {
		return domain.Profile{}, ErrEmptyName
	}
	if err != nil {
		s.log.WithError(err).Error("Failed to update profile")
		return domain.Profile{}, fmt.Errorf("failed to update profile: %w", err)
	}
	s.log.WithField("handle", updated.Handle).Info("Profile updated")
	return updated, nil
}

// normalize trims every field, requires a name and prefixes the handle with @.
func normalize(p domain.Profile) (domain.Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return domain.Profile{}, ErrEmptyName
	}
	p.Handle = strings.TrimSpace(p.Handle)
	if p.Handle != "" && !strings.HasPrefix(p.Handle, "@") {
		p.Handle = "@" + p.Handle
	}
	p.AvatarURL = strings.TrimSpace(p.AvatarURL)
	return p, nil
}
