package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dunamismax/jobboard/internal/apperr"
	"github.com/dunamismax/jobboard/internal/domain"
)

// FileJobStore keeps every job in one JSON array on disk. Each call re-reads
// the file; mutations rewrite it whole. Writers in this process are
// serialised, but separate processes sharing the file still race and the last
// writer wins. Records a mutation does not touch are written back exactly as
// read, and an edited record keeps any keys the Job type does not model.
type FileJobStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// jobRecord pairs a decoded job with the bytes it was decoded from. raw is
// nil for jobs created in this process.
type jobRecord struct {
	job     domain.Job
	raw     json.RawMessage
	changed bool
}

// jobKeys are the object keys domain.Job owns; they are dropped from the
// stored object before an edited job is spread over it.
var jobKeys = []string{
	"slug", "title", "pitch", "location", "dept", "workType", "experience",
	"tags", "postedAt", "description", "applyExternalUrl",
}

func NewFileJobStore(path string) *FileJobStore {
	return &FileJobStore{
		path: path,
		now:  time.Now,
	}
}

func (s *FileJobStore) Path() string {
	return s.path
}

func (s *FileJobStore) List(ctx context.Context) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.read()
	if err != nil {
		return nil, err
	}
	jobs := make([]domain.Job, len(records))
	for i, rec := range records {
		jobs[i] = rec.job
	}
	return jobs, nil
}

func (s *FileJobStore) Get(ctx context.Context, slug string) (domain.Job, bool, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return domain.Job{}, false, err
	}
	job, ok := domain.FindBySlug(jobs, slug)
	return job, ok, nil
}

func (s *FileJobStore) Create(ctx context.Context, in domain.JobInput) (domain.Job, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Job{}, err
	}
	job := domain.NewJob(in, s.now())

	err := s.mutate(ctx, func(records []jobRecord) ([]jobRecord, error) {
		if indexOf(records, job.Slug) >= 0 {
			return nil, apperr.Conflict("a job with this title already exists", nil)
		}
		return append(records, jobRecord{job: job, changed: true}), nil
	})
	if err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (s *FileJobStore) Update(ctx context.Context, slug string, in domain.JobInput) (domain.Job, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Job{}, err
	}

	var updated domain.Job
	err := s.mutate(ctx, func(records []jobRecord) ([]jobRecord, error) {
		idx := indexOf(records, slug)
		if idx < 0 {
			return nil, apperr.NotFound("job not found", nil)
		}
		updated = records[idx].job.Updated(in)
		records[idx].job = updated
		records[idx].changed = true
		return records, nil
	})
	if err != nil {
		return domain.Job{}, err
	}
	return updated, nil
}

func (s *FileJobStore) Delete(ctx context.Context, slug string) error {
	return s.mutate(ctx, func(records []jobRecord) ([]jobRecord, error) {
		idx := indexOf(records, slug)
		if idx < 0 {
			return nil, apperr.NotFound("job not found", nil)
		}
		return append(records[:idx], records[idx+1:]...), nil
	})
}

func (s *FileJobStore) mutate(ctx context.Context, fn func([]jobRecord) ([]jobRecord, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := s.read()
	if err != nil {
		return err
	}
	next, err := fn(records)
	if err != nil {
		return err
	}
	return s.write(next)
}

func (s *FileJobStore) read() ([]jobRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []jobRecord{}, nil
		}
		return nil, apperr.Internal("read jobs file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []jobRecord{}, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, apperr.Internal("parse jobs file", err)
	}
	records := make([]jobRecord, len(raws))
	for i, raw := range raws {
		var job domain.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("parse job %d", i), err)
		}
		if job.Tags == nil {
			job.Tags = []string{}
		}
		records[i] = jobRecord{job: job, raw: raw}
	}
	return records, nil
}

func (s *FileJobStore) write(records []jobRecord) error {
	out := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		encoded, err := rec.encode()
		if err != nil {
			return apperr.Internal(fmt.Sprintf("encode job %s", rec.job.Slug), err)
		}
		out = append(out, encoded)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return apperr.Internal("encode jobs file", err)
	}
	data := buf.Bytes()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Internal("create jobs directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".jobs-*.json")
	if err != nil {
		return apperr.Internal("create temp jobs file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return apperr.Internal("write jobs file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return apperr.Internal("sync jobs file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Internal("close jobs file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return apperr.Internal(fmt.Sprintf("replace %s", s.path), err)
	}
	return nil
}

func (r jobRecord) encode() (json.RawMessage, error) {
	if r.raw != nil && !r.changed {
		return r.raw, nil
	}
	data, err := marshalNoEscape(r.job)
	if err != nil || r.raw == nil {
		return data, err
	}

	var base map[string]json.RawMessage
	if err := json.Unmarshal(r.raw, &base); err != nil {
		return nil, err
	}
	if base == nil {
		base = make(map[string]json.RawMessage)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for _, key := range jobKeys {
		delete(base, key)
	}
	for key, value := range fields {
		base[key] = value
	}
	return marshalNoEscape(base)
}

func marshalNoEscape(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func indexOf(records []jobRecord, slug string) int {
	for i, rec := range records {
		if rec.job.Slug == slug {
			return i
		}
	}
	return -1
}
