package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHighLevel struct {
	mu            sync.Mutex
	existingID    string
	contactPosts  []map[string]any
	contactPuts   []map[string]any
	opportunities []map[string]any
	authHeaders   []string
	versions      []string
	failOpps      bool
}

func (f *fakeHighLevel) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		f.versions = append(f.versions, r.Header.Get("Version"))
	}
	decode := func(r *http.Request) map[string]any {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		return body
	}

	mux.HandleFunc("GET /contacts/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		assert.Equal(t, "loc-1", r.URL.Query().Get("locationId"))
		contacts := []map[string]any{}
		if f.existingID != "" {
			contacts = append(contacts, map[string]any{
				"id":           f.existingID,
				"email":        r.URL.Query().Get("query"),
				"firstName":    "Ada",
				"lastName":     "Lovelace",
				"customFields": []map[string]any{{"id": "cf-cv", "value": "https://old/cv.pdf"}},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"contacts": contacts})
	})
	mux.HandleFunc("POST /contacts/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		body := decode(r)
		f.mu.Lock()
		f.contactPosts = append(f.contactPosts, body)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"contact": map[string]any{"id": "contact-new"}})
	})
	mux.HandleFunc("PUT /contacts/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		body := decode(r)
		body["_id"] = r.PathValue("id")
		f.mu.Lock()
		f.contactPuts = append(f.contactPuts, body)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"succeded": true})
	})
	mux.HandleFunc("POST /opportunities/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if f.failOpps {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"bad pipeline"}`))
			return
		}
		body := decode(r)
		f.mu.Lock()
		f.opportunities = append(f.opportunities, body)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "opp-1"})
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeHighLevel) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:    srv.URL,
		Token:      "secret-token",
		LocationID: "loc-1",
		PipelineID: "pipe-1",
		StageID:    "stage-1",
		CVFieldID:  "cf-cv",
	}, zap.NewNop())
}

func TestConfigured(t *testing.T) {
	assert.False(t, NewClient(Config{}, nil).Configured())
	assert.False(t, NewClient(Config{Token: "t", LocationID: "l"}, nil).Configured())
	assert.True(t, NewClient(Config{Token: "t", LocationID: "l", PipelineID: "p", StageID: "s"}, nil).Configured())
}

func TestCreateJobApplicationCreatesContactAndOpportunity(t *testing.T) {
	fake := &fakeHighLevel{}
	client := newTestClient(t, fake)

	sub, err := client.CreateJobApplication(context.Background(), "backend-engineer", "Ada King Lovelace", "ada@example.com", "https://cdn/cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, Submission{ContactID: "contact-new", OpportunityID: "opp-1"}, sub)

	require.Len(t, fake.contactPosts, 1)
	contact := fake.contactPosts[0]
	assert.Equal(t, "loc-1", contact["locationId"])
	assert.Equal(t, "Ada", contact["firstName"])
	assert.Equal(t, "King Lovelace", contact["lastName"])
	assert.Equal(t, SourceJobApplication, contact["source"])
	assert.Equal(t, []any{"Job Applicant"}, contact["tags"])
	assert.Equal(t, []any{map[string]any{"id": "cf-cv", "field_value": "https://cdn/cv.pdf"}}, contact["customFields"])

	require.Len(t, fake.opportunities, 1)
	opp := fake.opportunities[0]
	assert.Equal(t, "contact-new", opp["contactId"])
	assert.Equal(t, "pipe-1", opp["pipelineId"])
	assert.Equal(t, "stage-1", opp["pipelineStageId"])
	assert.Equal(t, "open", opp["status"])
	assert.Equal(t, "backend-engineer - Ada King Lovelace", opp["name"])
	assert.Equal(t, "Applied for position: backend-engineer\nCV: https://cdn/cv.pdf", opp["notes"])

	for _, h := range fake.authHeaders {
		assert.Equal(t, "Bearer secret-token", h)
	}
	for _, v := range fake.versions {
		assert.Equal(t, DefaultAPIVersion, v)
	}
}

func TestUpsertContactUpdatesExisting(t *testing.T) {
	fake := &fakeHighLevel{existingID: "contact-7"}
	client := newTestClient(t, fake)

	existing, err := client.SearchContactByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, "Ada Lovelace", existing.Name)
	assert.Equal(t, "https://old/cv.pdf", existing.CVURL)

	id, err := client.UpsertContact(context.Background(), Contact{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "contact-7", id)
	assert.Empty(t, fake.contactPosts)
	require.Len(t, fake.contactPuts, 1)
	assert.Equal(t, "contact-7", fake.contactPuts[0]["_id"])
	assert.Equal(t, "Website", fake.contactPuts[0]["source"])
	_, hasLocation := fake.contactPuts[0]["locationId"]
	assert.False(t, hasLocation)
}

func TestCreateTalentPoolEntryNotes(t *testing.T) {
	fake := &fakeHighLevel{}
	client := newTestClient(t, fake)

	_, err := client.CreateTalentPoolEntry(context.Background(), "Grace Hopper", "grace@example.com",
		[]string{"Engineering", "Data"}, "Build compilers", "")
	require.NoError(t, err)

	require.Len(t, fake.contactPosts, 1)
	assert.Equal(t, []any{"Talent Pool", "Engineering", "Data"}, fake.contactPosts[0]["tags"])
	_, hasCustomFields := fake.contactPosts[0]["customFields"]
	assert.False(t, hasCustomFields)

	require.Len(t, fake.opportunities, 1)
	assert.Equal(t, "Talent Pool - Grace Hopper", fake.opportunities[0]["name"])
	assert.Equal(t, "Interests: Engineering, Data\nGoals: Build compilers", fake.opportunities[0]["notes"])
}

func TestAPIErrorSurfaces(t *testing.T) {
	fake := &fakeHighLevel{failOpps: true}
	client := newTestClient(t, fake)

	_, err := client.CreateJobApplication(context.Background(), "backend-engineer", "Ada", "ada@example.com", "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad pipeline")
}

func TestNotConfigured(t *testing.T) {
	client := NewClient(Config{}, zap.NewNop())

	_, err := client.CreateJobApplication(context.Background(), "x", "Ada", "ada@example.com", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = client.CreateTalentPoolEntry(context.Background(), "Ada", "ada@example.com", []string{"x"}, "goals here", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
