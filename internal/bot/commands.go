package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"animind/internal/anilist"
	"animind/internal/domain"
	"animind/internal/profile"
	"animind/internal/storage"
)

func (h *Handler) start(ctx context.Context, userID int64, _ string) string {
	s := h.session(userID)
	p, err := s.profile.Get(ctx)
	if err != nil {
		return h.failure(userID, err, "load your profile")
	}
	if _, err := s.feed.List(ctx); err != nil {
		return h.failure(userID, err, "load your notifications")
	}
	return fmt.Sprintf("Welcome to AniMind, %s! Discover anime, check the vibe of a picture and keep track of what you watch.\n\n%s", p.Name, helpText)
}

func (h *Handler) help(context.Context, int64, string) string {
	return helpText
}

func (h *Handler) library(ctx context.Context, userID int64, args string) string {
	s := h.session(userID)
	if args == "" || strings.EqualFold(args, "all") {
		entries, err := s.library.List(ctx)
		if err != nil {
			return h.failure(userID, err, "load your library")
		}
		return formatLibrary(entries, "")
	}

	status, err := domain.ParseStatus(args)
	if err != nil {
		return statusUsage(args)
	}
	entries, err := s.library.ListByStatus(ctx, status)
	if err != nil {
		return h.failure(userID, err, "load your library")
	}
	return formatLibrary(entries, status)
}

func (h *Handler) add(ctx context.Context, userID int64, args string) string {
	ref, rawStatus := firstArg(args)
	if ref == "" {
		return "Usage: /add <id|anilist link> [status]"
	}
	id, err := anilist.ParseRef(ref)
	if err != nil {
		return fmt.Sprintf("%q is not an anime id or AniList link.", ref)
	}
	status := domain.StatusWatching
	if rawStatus != "" {
		if status, err = domain.ParseStatus(rawStatus); err != nil {
			return statusUsage(rawStatus)
		}
	}

	anime, found := h.catalog.Details(ctx, id)
	if !found {
		return fmt.Sprintf("I could not find anime #%d.", id)
	}

	s := h.session(userID)
	added, err := s.tracker.Add(ctx, anime, status)
	if err != nil {
		return h.failure(userID, err, "update your library")
	}
	if !added {
		current, err := s.library.SavedStatus(ctx, id)
		if err != nil {
			return h.failure(userID, err, "load your library")
		}
		return fmt.Sprintf("%s is already in your library (%s). Use /status %d <status> to change it.", anime.DisplayTitle(), current, id)
	}
	return fmt.Sprintf("Added %s as %s.", anime.DisplayTitle(), status)
}

func (h *Handler) status(ctx context.Context, userID int64, args string) string {
	rawID, rawStatus := firstArg(args)
	if rawID == "" || rawStatus == "" {
		return "Usage: /status <id> <status>"
	}
	id, err := domain.ParseID(rawID)
	if err != nil {
		return fmt.Sprintf("%q is not an anime id.", rawID)
	}
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return statusUsage(rawStatus)
	}

	change, found, err := h.session(userID).tracker.UpdateStatus(ctx, id, status)
	if err != nil {
		return h.failure(userID, err, "update your library")
	}
	switch {
	case !found:
		return fmt.Sprintf("#%d is not in your library. Save it first with /add %d.", id, id)
	case !change.Changed():
		return fmt.Sprintf("%s is already marked as %s.", change.Entry.Title, status)
	default:
		return fmt.Sprintf("%s: %s → %s.", change.Entry.Title, change.Previous, change.Entry.Status)
	}
}

func (h *Handler) remove(ctx context.Context, userID int64, args string) string {
	id, err := domain.ParseID(args)
	if err != nil {
		return "Usage: /remove <id>"
	}
	removed, found, err := h.session(userID).tracker.Remove(ctx, id)
	if err != nil {
		return h.failure(userID, err, "update your library")
	}
	if !found {
		return fmt.Sprintf("#%d is not in your library.", id)
	}
	return fmt.Sprintf("Removed %s from your library.", removed.Title)
}

func (h *Handler) stats(ctx context.Context, userID int64, _ string) string {
	st, err := h.session(userID).library.Stats(ctx)
	if err != nil {
		return h.failure(userID, err, "load your library")
	}
	return formatStats(st)
}

func (h *Handler) notifications(ctx context.Context, userID int64, _ string) string {
	feed, err := h.session(userID).feed.List(ctx)
	if err != nil {
		return h.failure(userID, err, "load your notifications")
	}
	return formatFeed(feed)
}

func (h *Handler) markRead(ctx context.Context, userID int64, _ string) string {
	feed, err := h.session(userID).feed.MarkAllRead(ctx)
	if err != nil {
		return h.failure(userID, err, "update your notifications")
	}
	return fmt.Sprintf("All caught up! %d notifications marked as read.", len(feed))
}

func (h *Handler) profile(ctx context.Context, userID int64, _ string) string {
	s := h.session(userID)
	p, err := s.profile.Get(ctx)
	if err != nil {
		return h.failure(userID, err, "load your profile")
	}
	st, err := s.library.Stats(ctx)
	if err != nil {
		return h.failure(userID, err, "load your library")
	}
	return formatProfile(p, st)
}

func (h *Handler) setName(ctx context.Context, userID int64, args string) string {
	return h.editProfile(ctx, userID, "Usage: /setname <name>", args, func(p *domain.Profile) { p.Name = args })
}

func (h *Handler) setHandle(ctx context.Context, userID int64, args string) string {
	return h.editProfile(ctx, userID, "Usage: /sethandle <handle>", args, func(p *domain.Profile) { p.Handle = args })
}

func (h *Handler) setAvatar(ctx context.Context, userID int64, args string) string {
	return h.editProfile(ctx, userID, "Usage: /setavatar <image url>", args, func(p *domain.Profile) { p.AvatarURL = args })
}

func (h *Handler) editProfile(ctx context.Context, userID int64, usage, args string, edit func(*domain.Profile)) string {
	if strings.TrimSpace(args) == "" {
		return usage
	}
	p, err := h.session(userID).profile.Update(ctx, edit)
	if errors.Is(err, profile.ErrEmptyName) {
		return usage
	}
	if err != nil {
		return h.failure(userID, err, "save your profile")
	}
	return fmt.Sprintf("Profile saved: %s %s", p.Name, p.Handle)
}

func (h *Handler) reset(ctx context.Context, userID int64, args string) string {
	if !strings.EqualFold(args, "confirm") {
		return "This deletes your library, notifications and profile. Send /reset confirm to continue."
	}
	if err := storage.Reset(ctx, h.session(userID).store); err != nil {
		return h.failure(userID, err, "reset your data")
	}
	h.log.WithField("user_id", userID).Warn("User data reset")
	return "Your data has been reset."
}

func statusUsage(raw string) string {
	names := make([]string, len(domain.Statuses))
	for i, st := range domain.Statuses {
		names[i] = string(st)
	}
	return fmt.Sprintf("%q is not a status. Use one of: %s.", raw, strings.Join(names, ", "))
}
