package dashboard

import (
	"sort"
	"time"

	"pilgrimsafe/models"
)

const (
	FeedSize       = 10
	RecentPerKind  = 5
	KindAlert      = "alert"
	KindLostPerson = "lost_person"
)

// Entry is one line of the recent-activity feed.
type Entry struct {
	Kind        string    `json:"kind"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
}

// mergeFeed replaces every entry of kind with fresh, keeps the other
// entries, and returns the newest FeedSize entries, newest first.
func mergeFeed(feed []Entry, kind string, fresh []Entry) []Entry {
	out := make([]Entry, 0, len(feed)+len(fresh))
	for _, e := range feed {
		if e.Kind != kind {
			out = append(out, e)
		}
	}
	out = append(out, fresh...)
	sortNewestFirst(out)
	if len(out) > FeedSize {
		out = out[:FeedSize]
	}
	return out
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

func alertEntries(alerts []models.Alert) []Entry {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	if len(alerts) > RecentPerKind {
		alerts = alerts[:RecentPerKind]
	}
	out := make([]Entry, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, Entry{
			Kind:        KindAlert,
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Timestamp:   a.CreatedAt,
			Status:      a.Status,
		})
	}
	return out
}

func lostPersonEntries(people []models.LostPerson) []Entry {
	sort.SliceStable(people, func(i, j int) bool {
		return people[i].ReportedAt.After(people[j].ReportedAt)
	})
	if len(people) > RecentPerKind {
		people = people[:RecentPerKind]
	}
	out := make([]Entry, 0, len(people))
	for _, p := range people {
		title := "Missing: " + p.Name
		if p.Status == models.PersonFound {
			title = "Found: " + p.Name
		}
		out = append(out, Entry{
			Kind:        KindLostPerson,
			ID:          p.ID,
			Title:       title,
			Description: p.Description,
			Timestamp:   p.ReportedAt,
			Status:      p.Status,
		})
	}
	return out
}
