package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "https://services.leadconnectorhq.com"
	DefaultAPIVersion = "2021-07-28"

	OpportunityStatusOpen = "open"

	SourceJobApplication = "Job Application"
	SourceTalentPool     = "Talent Pool"

	maxErrorBodyBytes = 4 << 10
)

var ErrNotConfigured = errors.New("crm is not configured")

type Config struct {
	BaseURL    string
	APIVersion string
	Token      string
	LocationID string
	PipelineID string
	StageID    string
	// CVFieldID is the custom field that receives résumé URLs. Optional.
	CVFieldID string
	Timeout   time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	token      string
	locationID string
	pipelineID string
	stageID    string
	cvFieldID  string
	logger     *zap.Logger
}

type Contact struct {
	ID     string
	Email  string
	Name   string
	Phone  string
	CVURL  string
	Source string
	Tags   []string
}

type Opportunity struct {
	ID            string
	ContactID     string
	Name          string
	PipelineID    string
	StageID       string
	Status        string
	MonetaryValue float64
	AssignedTo    string
	Source        string
	Notes         string
}

// Submission identifies the records a lead produced in the CRM.
type Submission struct {
	ContactID     string `json:"contactId"`
	OpportunityID string `json:"opportunityId"`
}

type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm %s %s returned status=%d", e.Method, e.Path, e.StatusCode)
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    baseURL,
		apiVersion: apiVersion,
		token:      strings.TrimSpace(cfg.Token),
		locationID: strings.TrimSpace(cfg.LocationID),
		pipelineID: strings.TrimSpace(cfg.PipelineID),
		stageID:    strings.TrimSpace(cfg.StageID),
		cvFieldID:  strings.TrimSpace(cfg.CVFieldID),
		logger:     logger,
	}
}

// Configured reports whether every setting needed to file leads is present.
func (c *Client) Configured() bool {
	return c.token != "" && c.locationID != "" && c.pipelineID != "" && c.stageID != ""
}

type contactRecord struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Phone        string        `json:"phone"`
	Source       string        `json:"source"`
	Tags         []string      `json:"tags"`
	CustomFields []customField `json:"customFields"`
}

type customField struct {
	ID         string `json:"id"`
	Value      any    `json:"value,omitempty"`
	FieldValue any    `json:"field_value,omitempty"`
}

func (c *Client) SearchContactByEmail(ctx context.Context, email string) (*Contact, error) {
	query := url.Values{}
	query.Set("locationId", c.locationID)
	query.Set("query", email)

	var resp struct {
		Contacts []contactRecord `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, "/contacts/", query, nil, &resp); err != nil {
		c.logger.Error("search contact by email failed", zap.Error(err))
		return nil, err
	}
	if len(resp.Contacts) == 0 {
		return nil, nil
	}

	record := resp.Contacts[0]
	contact := &Contact{
		ID:     record.ID,
		Email:  record.Email,
		Name:   strings.TrimSpace(record.FirstName + " " + record.LastName),
		Phone:  record.Phone,
		Source: record.Source,
		Tags:   record.Tags,
	}
	if c.cvFieldID != "" {
		for _, field := range record.CustomFields {
			if field.ID != c.cvFieldID {
				continue
			}
			if s, ok := field.Value.(string); ok {
				contact.CVURL = s
			}
		}
	}
	return contact, nil
}

type contactPayload struct {
	LocationID   string        `json:"locationId,omitempty"`
	Email        string        `json:"email"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Phone        string        `json:"phone"`
	Source       string        `json:"source"`
	Tags         []string      `json:"tags"`
	CustomFields []customField `json:"customFields,omitempty"`
}

// UpsertContact updates the contact registered under contact.Email, creating
// it when none exists, and returns its id.
func (c *Client) UpsertContact(ctx context.Context, contact Contact) (string, error) {
	existing, err := c.SearchContactByEmail(ctx, contact.Email)
	if err != nil {
		return "", err
	}

	firstName, lastName := splitName(contact.Name)
	source := contact.Source
	if source == "" {
		source = "Website"
	}
	tags := contact.Tags
	if tags == nil {
		tags = []string{}
	}

	payload := contactPayload{
		Email:     contact.Email,
		FirstName: firstName,
		LastName:  lastName,
		Phone:     contact.Phone,
		Source:    source,
		Tags:      tags,
	}
	if contact.CVURL != "" && c.cvFieldID != "" {
		payload.CustomFields = []customField{{ID: c.cvFieldID, FieldValue: contact.CVURL}}
	}

	if existing != nil && existing.ID != "" {
		if err := c.do(ctx, http.MethodPut, "/contacts/"+url.PathEscape(existing.ID), nil, payload, nil); err != nil {
			c.logger.Error("update contact failed", zap.String("contact_id", existing.ID), zap.Error(err))
			return "", err
		}
		return existing.ID, nil
	}

	payload.LocationID = c.locationID
	var resp idEnvelope
	if err := c.do(ctx, http.MethodPost, "/contacts/", nil, payload, &resp); err != nil {
		c.logger.Error("create contact failed", zap.Error(err))
		return "", err
	}
	id := resp.id("contact")
	if id == "" {
		return "", errors.New("crm create contact response has no id")
	}
	return id, nil
}

type opportunityPayload struct {
	LocationID    string  `json:"locationId"`
	PipelineID    string  `json:"pipelineId"`
	StageID       string  `json:"pipelineStageId"`
	ContactID     string  `json:"contactId"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	MonetaryValue float64 `json:"monetaryValue"`
	AssignedTo    string  `json:"assignedTo,omitempty"`
	Source        string  `json:"source"`
	Notes         string  `json:"notes"`
}

func (c *Client) CreateOpportunity(ctx context.Context, opp Opportunity) (string, error) {
	source := opp.Source
	if source == "" {
		source = "Website"
	}
	status := opp.Status
	if status == "" {
		status = OpportunityStatusOpen
	}

	payload := opportunityPayload{
		LocationID:    c.locationID,
		PipelineID:    opp.PipelineID,
		StageID:       opp.StageID,
		ContactID:     opp.ContactID,
		Name:          opp.Name,
		Status:        status,
		MonetaryValue: opp.MonetaryValue,
		AssignedTo:    opp.AssignedTo,
		Source:        source,
		Notes:         opp.Notes,
	}

	var resp idEnvelope
	if err := c.do(ctx, http.MethodPost, "/opportunities/", nil, payload, &resp); err != nil {
		c.logger.Error("create opportunity failed", zap.String("contact_id", opp.ContactID), zap.Error(err))
		return "", err
	}
	id := resp.id("opportunity")
	if id == "" {
		return "", errors.New("crm create opportunity response has no id")
	}
	return id, nil
}

// CreateJobApplication files an applicant for the job identified by jobSlug.
func (c *Client) CreateJobApplication(ctx context.Context, jobSlug, name, email, cvURL string) (Submission, error) {
	if !c.Configured() {
		return Submission{}, ErrNotConfigured
	}

	contactID, err := c.UpsertContact(ctx, Contact{
		Email:  email,
		Name:   name,
		CVURL:  cvURL,
		Source: SourceJobApplication,
		Tags:   []string{"Job Applicant"},
	})
	if err != nil {
		return Submission{}, fmt.Errorf("upsert contact: %w", err)
	}

	notes := "Applied for position: " + jobSlug
	if cvURL != "" {
		notes += "\nCV: " + cvURL
	}
	opportunityID, err := c.CreateOpportunity(ctx, Opportunity{
		ContactID:  contactID,
		Name:       jobSlug + " - " + name,
		PipelineID: c.pipelineID,
		StageID:    c.stageID,
		Status:     OpportunityStatusOpen,
		Source:     SourceJobApplication,
		Notes:      notes,
	})
	if err != nil {
		return Submission{}, fmt.Errorf("create opportunity: %w", err)
	}

	return Submission{ContactID: contactID, OpportunityID: opportunityID}, nil
}

// CreateTalentPoolEntry files a "connect with us" lead.
func (c *Client) CreateTalentPoolEntry(ctx context.Context, name, email string, interests []string, goals, cvURL string) (Submission, error) {
	if !c.Configured() {
		return Submission{}, ErrNotConfigured
	}

	tags := append([]string{"Talent Pool"}, interests...)
	contactID, err := c.UpsertContact(ctx, Contact{
		Email:  email,
		Name:   name,
		CVURL:  cvURL,
		Source: SourceTalentPool,
		Tags:   tags,
	})
	if err != nil {
		return Submission{}, fmt.Errorf("upsert contact: %w", err)
	}

	notes := fmt.Sprintf("Interests: %s\nGoals: %s", strings.Join(interests, ", "), goals)
	if cvURL != "" {
		notes += "\nCV: " + cvURL
	}
	opportunityID, err := c.CreateOpportunity(ctx, Opportunity{
		ContactID:  contactID,
		Name:       "Talent Pool - " + name,
		PipelineID: c.pipelineID,
		StageID:    c.stageID,
		Status:     OpportunityStatusOpen,
		Source:     SourceTalentPool,
		Notes:      notes,
	})
	if err != nil {
		return Submission{}, fmt.Errorf("create opportunity: %w", err)
	}

	return Submission{ContactID: contactID, OpportunityID: opportunityID}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal crm request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build crm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode crm %s %s response: %w", method, path, err)
	}
	return nil
}

// idEnvelope accepts both {"id": ...} and {"<resource>": {"id": ...}} bodies.
type idEnvelope map[string]json.RawMessage

func (e idEnvelope) id(resource string) string {
	if raw, ok := e[resource]; ok {
		var nested struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &nested); err == nil && nested.ID != "" {
			return nested.ID
		}
	}
	if raw, ok := e["id"]; ok {
		var id string
		if err := json.Unmarshal(raw, &id); err == nil {
			return id
		}
	}
	return ""
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
