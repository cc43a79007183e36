package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/jobboard/internal/apperr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DeptEngineering = "Engineering"
	DeptData        = "Data"
	DeptDesign      = "Design"
	DeptProduct     = "Product"
	DeptMarketing   = "Marketing"
	DeptOperations  = "Operations"
	DeptOther       = "Other"

	WorkTypeFullTime   = "Full-time"
	WorkTypePartTime   = "Part-time"
	WorkTypeContract   = "Contract"
	WorkTypeInternship = "Internship"

	ExperienceGraduate  = "Graduate"
	ExperienceMidLevel  = "Mid-level"
	ExperienceSenior    = "Senior"
	ExperienceExecutive = "Executive"
)

var (
	departments      = []string{DeptEngineering, DeptData, DeptDesign, DeptProduct, DeptMarketing, DeptOperations, DeptOther}
	workTypes        = []string{WorkTypeFullTime, WorkTypePartTime, WorkTypeContract, WorkTypeInternship}
	experienceLevels = []string{ExperienceGraduate, ExperienceMidLevel, ExperienceSenior, ExperienceExecutive}
)

func Departments() []string {
	return append([]string(nil), departments...)
}

func WorkTypes() []string {
	return append([]string(nil), workTypes...)
}

func ExperienceLevels() []string {
	return append([]string(nil), experienceLevels...)
}

func IsDepartment(v string) bool      { return contains(departments, v) }
func IsWorkType(v string) bool        { return contains(workTypes, v) }
func IsExperienceLevel(v string) bool { return contains(experienceLevels, v) }

type Job struct {
	Slug             string    `json:"slug"`
	Title            string    `json:"title"`
	Pitch            string    `json:"pitch"`
	Location         string    `json:"location"`
	Dept             string    `json:"dept"`
	WorkType         string    `json:"workType"`
	Experience       string    `json:"experience"`
	Tags             []string  `json:"tags"`
	PostedAt         Timestamp `json:"postedAt"`
	Description      string    `json:"description"`
	ApplyExternalURL string    `json:"applyExternalUrl,omitempty"`
}

// JobInput is the admin create/update payload. Slug and PostedAt are accepted
// so clients can round-trip a fetched job, but they are never applied.
type JobInput struct {
	Title            string   `json:"title" validate:"required"`
	Pitch            string   `json:"pitch"`
	Location         string   `json:"location"`
	Dept             string   `json:"dept" validate:"required,department"`
	WorkType         string   `json:"workType" validate:"required,work_type"`
	Experience       string   `json:"experience" validate:"required,experience_level"`
	Tags             []string `json:"tags"`
	Description      string   `json:"description"`
	ApplyExternalURL string   `json:"applyExternalUrl" validate:"omitempty,http_url"`

	Slug     string          `json:"slug,omitempty" validate:"-"`
	PostedAt json.RawMessage `json:"postedAt,omitempty" validate:"-"`
}

func (in JobInput) Normalize() JobInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Pitch = strings.TrimSpace(in.Pitch)
	in.Location = strings.TrimSpace(in.Location)
	in.Dept = strings.TrimSpace(in.Dept)
	in.WorkType = strings.TrimSpace(in.WorkType)
	in.Experience = strings.TrimSpace(in.Experience)
	in.ApplyExternalURL = strings.TrimSpace(in.ApplyExternalURL)

	tags := make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	in.Tags = tags
	return in
}

func (in JobInput) Validate() error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if Slugify(in.Title) == "" {
		return apperr.Validation([]apperr.FieldError{{
			Field:   "title",
			Message: "title must contain at least one letter or digit",
		}})
	}
	return nil
}

// NewJob builds a job from validated input. The slug and posting time are
// fixed here and never change afterwards.
func NewJob(in JobInput, now time.Time) Job {
	in = in.Normalize()
	return Job{
		Slug:             Slugify(in.Title),
		Title:            in.Title,
		Pitch:            in.Pitch,
		Location:         in.Location,
		Dept:             in.Dept,
		WorkType:         in.WorkType,
		Experience:       in.Experience,
		Tags:             in.Tags,
		PostedAt:         Timestamp{Time: now.UTC()},
		Description:      in.Description,
		ApplyExternalURL: in.ApplyExternalURL,
	}
}

// Updated returns existing with every editable field replaced from in.
func (j Job) Updated(in JobInput) Job {
	updated := NewJob(in, j.PostedAt.Time)
	updated.Slug = j.Slug
	updated.PostedAt = j.PostedAt
	return updated
}

// Slugify lowercases title, collapses every run of characters outside [a-z0-9]
// into a single hyphen and trims hyphens from both ends.
func Slugify(title string) string {
	lowered := cases.Lower(language.Und).String(title)

	var b strings.Builder
	b.Grow(len(lowered))
	pendingHyphen := false
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Timestamp marshals as RFC 3339 and also accepts plain dates (2006-01-02),
// which older job files use for postedAt. A decoded value marshals back to the
// exact text it was read from until the time is changed.
type Timestamp struct {
	time.Time
	raw string
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.raw != "" {
		if parsed, err := parseTimestamp(t.raw); err == nil && parsed.Equal(t.Time) {
			return json.Marshal(t.raw)
		}
	}
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := parseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = Timestamp{Time: parsed, raw: raw}
	return nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", raw)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
