package store

import (
	"context"

	"github.com/dunamismax/jobboard/internal/domain"
)

type JobStore interface {
	List(ctx context.Context) ([]domain.Job, error)
	Get(ctx context.Context, slug string) (domain.Job, bool, error)
	Create(ctx context.Context, in domain.JobInput) (domain.Job, error)
	Update(ctx context.Context, slug string, in domain.JobInput) (domain.Job, error)
	Delete(ctx context.Context, slug string) error
}

type LeadStore interface {
	CreateLead(ctx context.Context, lead domain.Lead) error
	GetLead(ctx context.Context, id string) (domain.Lead, bool, error)
	UpdateLeadStatus(ctx context.Context, id, status, errText string) (domain.Lead, error)
}
