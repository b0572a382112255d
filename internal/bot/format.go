package bot

import (
	"fmt"
	"strings"

	"animind/internal/domain"
	"animind/internal/library"
)

const helpText = `Library
/library [status] - your saved anime, optionally filtered
/add <id|anilist link> [status] - save a title (default: Watching)
/status <id> <status> - change a title's status
/remove <id> - drop a title from your library
/stats - library statistics

Discover
/trending - what everyone is watching
/search <text> - search by title
/anime <id> - details of one title
/genres - list genres
/genre <name> - popular titles of a genre
/vibe <mood> - AI picks for a mood
Send a photo for an image vibe check, or a link to any anime page.

You
/notifications - your activity feed
/read - mark the feed as read
/profile - your profile
/setname, /sethandle, /setavatar - edit your profile
/reset confirm - wipe your saved data

Statuses: Watching, Completed, Plan to Watch, Dropped`

const corruptMessage = "Your saved data could not be read and may be corrupted. " +
	"Send /reset confirm to start over with an empty library."

// splitCommand splits "/add@AniMindBot 101 plan to watch" into "add" and
// "101 plan to watch".
func splitCommand(text string) (name, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest)
}

// firstArg splits off the first whitespace-separated word of args.
func firstArg(args string) (first, rest string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func formatEntry(e domain.LibraryEntry) string {
	line := fmt.Sprintf("#%d %s · %s", e.ID, e.Title, e.Status)
	if e.Studio != nil {
		line += fmt.Sprintf(" (%s)", *e.Studio)
	}
	return line
}

func formatLibrary(entries []domain.LibraryEntry, filter domain.Status) string {
	if len(entries) == 0 {
		if filter == "" {
			return "Your library is empty. Find something with /trending or /search and save it with /add <id>."
		}
		return fmt.Sprintf("No anime found in '%s'.", filter)
	}

	var sb strings.Builder
	if filter == "" {
		fmt.Fprintf(&sb, "Your library (%d)\n", len(entries))
	} else {
		fmt.Fprintf(&sb, "%s (%d)\n", filter, len(entries))
	}
	for _, e := range entries {
		sb.WriteString("\n")
		sb.WriteString(formatEntry(e))
	}
	return sb.String()
}

// formatAnimeList renders search results. saved maps ids already in the
// library to their status.
func formatAnimeList(heading string, media []domain.AnimeSummary, saved map[int]domain.Status) string {
	if len(media) == 0 {
		return "Nothing found."
	}
	var sb strings.Builder
	sb.WriteString(heading)
	sb.WriteString("\n")
	for _, m := range media {
		fmt.Fprintf(&sb, "\n#%d %s", m.ID, m.DisplayTitle())
		if m.AverageScore > 0 {
			fmt.Fprintf(&sb, " · %d%%", m.AverageScore)
		}
		if st, ok := saved[m.ID]; ok {
			fmt.Fprintf(&sb, " · in library: %s", st)
		}
	}
	sb.WriteString("\n\nSave one with /add <id>.")
	return sb.String()
}

func formatAnime(a domain.AnimeSummary, status domain.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (#%d)", a.DisplayTitle(), a.ID)
	if a.Title.Romaji != "" && a.Title.Romaji != a.DisplayTitle() {
		fmt.Fprintf(&sb, "\n%s", a.Title.Romaji)
	}
	if a.AverageScore > 0 {
		fmt.Fprintf(&sb, "\nScore: %d%%", a.AverageScore)
	}
	if a.Episodes > 0 {
		fmt.Fprintf(&sb, "\nEpisodes: %d", a.Episodes)
	}
	if studio := a.PrimaryStudio(); studio != "" {
		fmt.Fprintf(&sb, "\nStudio: %s", studio)
	}
	if len(a.Genres) > 0 {
		fmt.Fprintf(&sb, "\nGenres: %s", strings.Join(a.Genres, ", "))
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n\n%s", truncate(a.Description, 600))
	}
	if status != "" {
		fmt.Fprintf(&sb, "\n\nIn your library: %s", status)
	} else {
		fmt.Fprintf(&sb, "\n\nSave it with /add %d", a.ID)
	}
	if img := a.Image(); img != "" {
		fmt.Fprintf(&sb, "\n%s", img)
	}
	return sb.String()
}

func formatFeed(feed []domain.Notification) string {
	unread := 0
	for _, n := range feed {
		if !n.Read {
			unread++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Notifications (%d unread)\n", unread)
	for _, n := range feed {
		marker := " "
		if !n.Read {
			marker = "•"
		}
		fmt.Fprintf(&sb, "\n%s %s (%s)", marker, n.Text, n.DisplayTime)
	}
	if unread > 0 {
		sb.WriteString("\n\nSend /read to mark all as read.")
	}
	return sb.String()
}

func formatStats(s library.Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Saved anime: %d", s.Total)
	for _, st := range domain.Statuses {
		fmt.Fprintf(&sb, "\n%s: %d", st, s.ByStatus[st])
	}
	return sb.String()
}

func formatProfile(p domain.Profile, s library.Stats) string {
	return fmt.Sprintf("%s %s\n%s\n\n%s", p.Name, p.Handle, p.AvatarURL, formatStats(s))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
