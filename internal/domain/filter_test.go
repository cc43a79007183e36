package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleJobs() []Job {
	return []Job{
		{
			Slug:       "data-analyst",
			Title:      "Data Analyst",
			Pitch:      "Turn numbers into decisions",
			Location:   "London",
			Dept:       DeptData,
			WorkType:   WorkTypeFullTime,
			Experience: ExperienceGraduate,
			Tags:       []string{"SQL", "Tableau"},
			PostedAt:   Timestamp{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			Slug:       "backend-engineer",
			Title:      "Backend Engineer",
			Pitch:      "Build our APIs",
			Location:   "Remote",
			Dept:       DeptEngineering,
			WorkType:   WorkTypeFullTime,
			Experience: ExperienceSenior,
			Tags:       []string{"Go", "Postgres"},
			PostedAt:   Timestamp{Time: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			Slug:       "product-designer",
			Title:      "Product Designer",
			Pitch:      "Shape the experience",
			Location:   "Berlin",
			Dept:       DeptDesign,
			WorkType:   WorkTypeContract,
			Experience: ExperienceMidLevel,
			Tags:       []string{"Figma"},
			PostedAt:   Timestamp{Time: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func slugs(jobs []Job) []string {
	out := make([]string, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Slug)
	}
	return out
}

func TestFilterJobsExample(t *testing.T) {
	jobs := sampleJobs()[:2]

	assert.Equal(t, []string{"backend-engineer"}, slugs(FilterJobs(jobs, JobFilters{Dept: []string{DeptEngineering}})))
	assert.Equal(t, []string{"data-analyst"}, slugs(FilterJobs(jobs, JobFilters{Query: "data"})))
	assert.Equal(t, []string{"backend-engineer"}, slugs(RecentJobs(jobs, 1)))
}

func TestFilterJobsQueryFields(t *testing.T) {
	jobs := sampleJobs()

	tests := []struct {
		query string
		want  []string
	}{
		{"ANALYST", []string{"data-analyst"}},
		{"apis", []string{"backend-engineer"}},
		{"figma", []string{"product-designer"}},
		{"berl", []string{"product-designer"}},
		{"e", []string{"data-analyst", "backend-engineer", "product-designer"}},
		{"kotlin", []string{}},
		{"", []string{"data-analyst", "backend-engineer", "product-designer"}},
		{"   ", []string{"data-analyst", "backend-engineer", "product-designer"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, slugs(FilterJobs(jobs, JobFilters{Query: tt.query})))
		})
	}
}

func TestFilterJobsCombinesWithAnd(t *testing.T) {
	jobs := sampleJobs()

	got := FilterJobs(jobs, JobFilters{
		WorkType: []string{WorkTypeFullTime},
		Query:    "e",
	})
	assert.Equal(t, []string{"data-analyst", "backend-engineer"}, slugs(got))

	got = FilterJobs(jobs, JobFilters{
		Dept:       []string{DeptEngineering, DeptDesign},
		Experience: []string{ExperienceMidLevel},
	})
	assert.Equal(t, []string{"product-designer"}, slugs(got))

	got = FilterJobs(jobs, JobFilters{Dept: []string{DeptData}, WorkType: []string{WorkTypeContract}})
	assert.Empty(t, got)
}

func TestFilterJobsEmptyListsEqualOmitted(t *testing.T) {
	jobs := sampleJobs()

	omitted := FilterJobs(jobs, JobFilters{Query: "e"})
	empty := FilterJobs(jobs, JobFilters{Query: "e", Dept: []string{}, WorkType: []string{}, Experience: []string{}})
	assert.Equal(t, omitted, empty)
}

func TestFilterJobsResultIsOrderedSubset(t *testing.T) {
	jobs := sampleJobs()
	filters := []JobFilters{
		{},
		{Query: "o"},
		{Dept: []string{DeptDesign, DeptData}},
		{WorkType: []string{WorkTypeFullTime}, Experience: []string{ExperienceSenior, ExperienceGraduate}},
	}

	for _, f := range filters {
		got := FilterJobs(jobs, f)
		next := 0
		for _, job := range got {
			for next < len(jobs) && jobs[next].Slug != job.Slug {
				next++
			}
			if next == len(jobs) {
				t.Fatalf("filter %+v returned %q out of order or not in input", f, job.Slug)
			}
			next++
		}
	}
}

func TestMatchesQueryCaseFolding(t *testing.T) {
	job := Job{Title: "Straße Planner", Tags: []string{"ÉQUIPE"}}

	assert.True(t, MatchesQuery(job, "STRASSE"))
	assert.True(t, MatchesQuery(job, "équipe"))
	assert.False(t, MatchesQuery(job, "manager"))
}

func TestRecentJobsStableAndBounded(t *testing.T) {
	jobs := sampleJobs()

	got := RecentJobs(jobs, 10)
	assert.Equal(t, []string{"backend-engineer", "product-designer", "data-analyst"}, slugs(got))
	assert.Len(t, RecentJobs(jobs, 2), 2)
	assert.Empty(t, RecentJobs(jobs, 0))
	assert.Equal(t, "data-analyst", jobs[0].Slug, "input must not be reordered")
}

func TestFindBySlug(t *testing.T) {
	job, ok := FindBySlug(sampleJobs(), "product-designer")
	assert.True(t, ok)
	assert.Equal(t, "Product Designer", job.Title)

	_, ok = FindBySlug(sampleJobs(), "missing")
	assert.False(t, ok)
}

func TestAllTags(t *testing.T) {
	jobs := append(sampleJobs(), Job{Tags: []string{"Go", "AWS"}})
	assert.Equal(t, []string{"AWS", "Figma", "Go", "Postgres", "SQL", "Tableau"}, AllTags(jobs))
	assert.Empty(t, AllTags(nil))
}

func TestFormatPostedAt(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Today", FormatPostedAt(now.Add(-2*time.Hour), now))
	assert.Equal(t, "Yesterday", FormatPostedAt(now.Add(-30*time.Hour), now))
	assert.Equal(t, "3 days ago", FormatPostedAt(now.AddDate(0, 0, -3), now))
	assert.Equal(t, "2 weeks ago", FormatPostedAt(now.AddDate(0, 0, -15), now))
	assert.Equal(t, "Jan 2, 2024", FormatPostedAt(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), now))
}
