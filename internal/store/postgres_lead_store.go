package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/jobboard/internal/domain"
	_ "github.com/lib/pq"
)

const leadSchemaSQL = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	job_slug TEXT NOT NULL DEFAULT '',
	interests JSONB NOT NULL DEFAULT '[]'::jsonb,
	goals TEXT NOT NULL DEFAULT '',
	cv_url TEXT NOT NULL DEFAULT '',
	contact_id TEXT NOT NULL DEFAULT '',
	opportunity_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS leads_email_idx ON leads (email);
`

const leadColumns = `id, kind, name, email, job_slug, interests, goals, cv_url, contact_id, opportunity_id, status, error, created_at, updated_at`

type PostgresLeadStore struct {
	db *sql.DB
}

func NewPostgresLeadStore(ctx context.Context, dsn string) (*PostgresLeadStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresLeadStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresLeadStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, leadSchemaSQL); err != nil {
		return fmt.Errorf("ensure leads schema: %w", err)
	}
	return nil
}

func (s *PostgresLeadStore) Close() error {
	return s.db.Close()
}

func (s *PostgresLeadStore) CreateLead(ctx context.Context, lead domain.Lead) error {
	interests := lead.Interests
	if interests == nil {
		interests = []string{}
	}
	interestsJSON, err := json.Marshal(interests)
	if err != nil {
		return fmt.Errorf("marshal lead interests: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO leads (`+leadColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		lead.ID,
		lead.Kind,
		lead.Name,
		lead.Email,
		lead.JobSlug,
		interestsJSON,
		lead.Goals,
		lead.CVURL,
		lead.ContactID,
		lead.OpportunityID,
		lead.Status,
		lead.Error,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}

	return nil
}

func (s *PostgresLeadStore) GetLead(ctx context.Context, id string) (domain.Lead, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+leadColumns+`
		 FROM leads
		 WHERE id = $1`,
		id,
	)

	var (
		lead          domain.Lead
		interestsJSON []byte
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Kind,
		&lead.Name,
		&lead.Email,
		&lead.JobSlug,
		&interestsJSON,
		&lead.Goals,
		&lead.CVURL,
		&lead.ContactID,
		&lead.OpportunityID,
		&lead.Status,
		&lead.Error,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Lead{}, false, nil
		}
		return domain.Lead{}, false, fmt.Errorf("query lead: %w", err)
	}

	if err := json.Unmarshal(interestsJSON, &lead.Interests); err != nil {
		return domain.Lead{}, false, fmt.Errorf("unmarshal lead interests: %w", err)
	}

	return lead, true, nil
}

func (s *PostgresLeadStore) UpdateLeadStatus(ctx context.Context, id, status, errText string) (domain.Lead, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE leads
		 SET status = $1, error = $2, updated_at = $3
		 WHERE id = $4`,
		status,
		errText,
		now,
		id,
	)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("update lead status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Lead{}, ErrLeadNotFound
	}

	lead, ok, err := s.GetLead(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	if !ok {
		return domain.Lead{}, ErrLeadNotFound
	}

	return lead, nil
}
