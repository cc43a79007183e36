package domain

import (
	"strings"
	"time"
)

const (
	LeadKindApplication = "application"
	LeadKindConnect     = "connect"

	LeadStatusSubmitted = "submitted"
	LeadStatusLogged    = "logged"
	LeadStatusFailed    = "failed"
	LeadStatusNotified  = "notified"
)

type ApplicationRequest struct {
	JobSlug string `json:"jobSlug" validate:"required"`
	Name    string `json:"name" validate:"required,min=2"`
	Email   string `json:"email" validate:"required,email"`
	CVURL   string `json:"cvUrl,omitempty" validate:"omitempty,url"`
}

func (r ApplicationRequest) Normalize() ApplicationRequest {
	r.JobSlug = strings.TrimSpace(r.JobSlug)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.CVURL = strings.TrimSpace(r.CVURL)
	return r
}

func (r ApplicationRequest) Validate() error {
	return validateStruct(r)
}

type ConnectRequest struct {
	Name      string   `json:"name" validate:"required,min=2"`
	Email     string   `json:"email" validate:"required,email"`
	Interests []string `json:"interests" validate:"min=1,dive,required"`
	Goals     string   `json:"goals" validate:"required,min=10"`
	CVURL     string   `json:"cvUrl,omitempty" validate:"omitempty,url"`
}

func (r ConnectRequest) Normalize() ConnectRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Goals = strings.TrimSpace(r.Goals)
	r.CVURL = strings.TrimSpace(r.CVURL)

	interests := make([]string, 0, len(r.Interests))
	for _, interest := range r.Interests {
		interest = strings.TrimSpace(interest)
		if interest != "" {
			interests = append(interests, interest)
		}
	}
	r.Interests = interests
	return r
}

func (r ConnectRequest) Validate() error {
	return validateStruct(r)
}

type UploadRequest struct {
	Filename string `json:"filename" validate:"required"`
	FileType string `json:"fileType" validate:"required"`
}

func (r UploadRequest) Validate() error {
	return validateStruct(r)
}

// Lead is the local record of one lead-capture submission.
type Lead struct {
	ID            string
	Kind          string
	Name          string
	Email         string
	JobSlug       string
	Interests     []string
	Goals         string
	CVURL         string
	ContactID     string
	OpportunityID string
	Status        string
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
