package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const DefaultRecentLimit = 6

// JobFilters narrows a job list. Empty lists and a blank query impose no
// constraint.
type JobFilters struct {
	Dept       []string `json:"dept,omitempty"`
	WorkType   []string `json:"workType,omitempty"`
	Experience []string `json:"experience,omitempty"`
	Query      string   `json:"query,omitempty"`
}

// FilterJobs returns the jobs matching every active filter, in input order.
func FilterJobs(jobs []Job, filters JobFilters) []Job {
	m := newMatcher(filters)
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if m.matches(job) {
			out = append(out, job)
		}
	}
	return out
}

// MatchesQuery reports whether query occurs, ignoring case, in the job's
// title, pitch, location or any tag. A blank query matches everything.
func MatchesQuery(job Job, query string) bool {
	return newMatcher(JobFilters{Query: query}).matchesQuery(job)
}

type matcher struct {
	filters JobFilters
	folder  cases.Caser
	needle  string
}

func newMatcher(filters JobFilters) *matcher {
	m := &matcher{filters: filters, folder: cases.Fold()}
	if strings.TrimSpace(filters.Query) != "" {
		m.needle = m.folder.String(filters.Query)
	}
	return m
}

func (m *matcher) matches(job Job) bool {
	return m.matchesQuery(job) &&
		inOrEmpty(m.filters.Dept, job.Dept) &&
		inOrEmpty(m.filters.WorkType, job.WorkType) &&
		inOrEmpty(m.filters.Experience, job.Experience)
}

func (m *matcher) matchesQuery(job Job) bool {
	if m.needle == "" {
		return true
	}
	if m.contains(job.Title) || m.contains(job.Pitch) || m.contains(job.Location) {
		return true
	}
	for _, tag := range job.Tags {
		if m.contains(tag) {
			return true
		}
	}
	return false
}

func (m *matcher) contains(field string) bool {
	return strings.Contains(m.folder.String(field), m.needle)
}

func inOrEmpty(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	return contains(allowed, v)
}

// FindBySlug returns the job with the given slug.
func FindBySlug(jobs []Job, slug string) (Job, bool) {
	for _, job := range jobs {
		if job.Slug == slug {
			return job, true
		}
	}
	return Job{}, false
}

// RecentJobs returns at most limit jobs, newest first. Jobs posted at the same
// instant keep their input order. The input slice is not modified.
func RecentJobs(jobs []Job, limit int) []Job {
	if limit <= 0 {
		return []Job{}
	}
	sorted := append([]Job(nil), jobs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PostedAt.After(sorted[j].PostedAt.Time)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// AllTags returns the distinct tags across jobs, sorted.
func AllTags(jobs []Job) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, job := range jobs {
		for _, tag := range job.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// FormatPostedAt renders a short relative label for when a job was posted.
func FormatPostedAt(postedAt, now time.Time) string {
	days := int(now.Sub(postedAt).Hours() / 24)
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return strconv.Itoa(days) + " days ago"
	case days < 30:
		return strconv.Itoa(days/7) + " weeks ago"
	default:
		return postedAt.Format("Jan 2, 2006")
	}
}
