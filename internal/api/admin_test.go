package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunamismax/jobboard/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobPayload(title string) map[string]any {
	return map[string]any{
		"title":      title,
		"pitch":      "Ship reliable services",
		"location":   "Remote",
		"dept":       "Engineering",
		"workType":   "Full-time",
		"experience": "Senior",
		"tags":       []string{"Go", " ", "Kubernetes"},
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/jobs"},
		{http.MethodPost, "/api/admin/jobs"},
		{http.MethodGet, "/api/admin/jobs/x"},
		{http.MethodPut, "/api/admin/jobs/x"},
		{http.MethodDelete, "/api/admin/jobs/x"},
	} {
		rec := env.do(t, tc.method, tc.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.method+" "+tc.path)

		rec = env.do(t, tc.method, tc.path, nil, "forged-token")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.method+" "+tc.path)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"username": testAdminUser,
		"password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testAdminUser}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSetsCookieAndLogoutRevokes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"username": testAdminUser,
		"password": testAdminPass,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, session.CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	req.AddCookie(cookie)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	req.AddCookie(cookie)
	res = httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	req.AddCookie(cookie)
	res = httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAdminJobLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/admin/jobs", jobPayload("Senior Go Engineer!"), token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)["job"].(map[string]any)
	assert.Equal(t, "senior-go-engineer", created["slug"])
	assert.Equal(t, []any{"Go", "Kubernetes"}, created["tags"])
	postedAt := created["postedAt"]

	rec = env.do(t, http.MethodPost, "/api/admin/jobs", jobPayload("senior go engineer"), token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	update := jobPayload("Staff Go Engineer")
	update["slug"] = "hijacked"
	update["postedAt"] = "1999-01-01T00:00:00Z"
	rec = env.do(t, http.MethodPut, "/api/admin/jobs/senior-go-engineer", update, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody(t, rec)["job"].(map[string]any)
	assert.Equal(t, "senior-go-engineer", updated["slug"])
	assert.Equal(t, "Staff Go Engineer", updated["title"])
	assert.Equal(t, postedAt, updated["postedAt"])

	rec = env.do(t, http.MethodGet, "/api/admin/jobs/senior-go-engineer", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/jobs", nil, token)
	assert.Equal(t, []string{"senior-go-engineer"}, slugsOf(t, decodeBody(t, rec)))

	rec = env.do(t, http.MethodDelete, "/api/admin/jobs/senior-go-engineer", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"job deleted"}`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/admin/jobs/senior-go-engineer", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/jobs/senior-go-engineer", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	payload := jobPayload("")
	payload["dept"] = "Finance"
	rec := env.do(t, http.MethodPost, "/api/admin/jobs", payload, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "validation failed", body["error"])
	fields := map[string]bool{}
	for _, d := range body["details"].([]any) {
		fields[d.(map[string]any)["field"].(string)] = true
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["dept"])
}

func TestAdminUpdateMissingJob(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.do(t, http.MethodPut, "/api/admin/jobs/ghost", jobPayload("Ghost"), token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
