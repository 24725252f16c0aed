package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/authz-engine/resolution/internal/cache"
	"github.com/authz-engine/resolution/internal/cel"
	"github.com/authz-engine/resolution/internal/directory"
	"github.com/authz-engine/resolution/internal/evaluator"
	"github.com/authz-engine/resolution/internal/policy"
	"github.com/authz-engine/resolution/internal/principal"
	"github.com/authz-engine/resolution/internal/roles"
	"github.com/authz-engine/resolution/pkg/types"
)

func testServer(t *testing.T, dir directory.Directory) *Server {
	t.Helper()

	table, err := roles.NewTable(&types.RolePermissionTable{
		GroupToRole: map[string]string{
			"G1": "Viewer",
			"G2": "Editor",
		},
		RolePermissions: map[string][]string{
			"Viewer": {"users.read"},
			"Editor": {"users.read", "users.write"},
			"Admin":  {"users.*"},
		},
	})
	require.NoError(t, err)

	c := cache.NewLRU(256, time.Minute)
	resolver := roles.NewResolver(table, c, nil)
	builder := principal.NewBuilder(resolver, c, nil)

	reg, err := policy.NewRegistry([]*types.Policy{
		{Name: "writers", RequirePermissions: []string{"users.write"}},
		{Name: "tenanted", RequireTenant: true, AllowedTenants: []string{"t1"}},
	})
	require.NoError(t, err)

	engine, err := cel.NewEngine()
	require.NoError(t, err)

	eval := evaluator.New(reg, engine, zap.NewNop())
	handler := NewHandler(builder, eval, roles.NewChainBuilder(resolver), dir, nil)

	return NewServer(DefaultConfig(), handler, nil, zap.NewNop())
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func editorClaims() map[string]interface{} {
	return map[string]interface{}{
		"oid":    "u1",
		"tid":    "t1",
		"groups": []interface{}{"G2"},
	}
}

func TestCheckAllowsGrantedPermission(t *testing.T) {
	srv := testServer(t, nil)

	w := postJSON(t, srv, "/v1/check", CheckRequest{
		Claims:     editorClaims(),
		Permission: "users.write",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Decision.Allowed())
	assert.NotEmpty(t, resp.RequestID)
}

func TestCheckDeniesMissingPermission(t *testing.T) {
	srv := testServer(t, nil)

	w := postJSON(t, srv, "/v1/check", CheckRequest{
		Claims:     editorClaims(),
		Permission: "users.delete",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Decision.Allowed())
	assert.Equal(t, types.CategoryPermission, resp.Decision.Category)
}

func TestCheckRejectsMalformedBody(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/check", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluatePolicy(t *testing.T) {
	srv := testServer(t, nil)

	w := postJSON(t, srv, "/v1/evaluate", EvaluateRequest{
		Claims: editorClaims(),
		Policy: "writers",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Decision.Allowed())
	assert.Equal(t, "writers", resp.Decision.Policy)
}

func TestEvaluateUnknownPolicyIsDenialNotError(t *testing.T) {
	srv := testServer(t, nil)

	w := postJSON(t, srv, "/v1/evaluate", EvaluateRequest{
		Claims: editorClaims(),
		Policy: "missing",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Decision.Allowed())
	assert.Equal(t, types.CategoryPolicy, resp.Decision.Category)
}

func TestContextResolvesRolesAndPermissions(t *testing.T) {
	srv := testServer(t, nil)

	w := postJSON(t, srv, "/v1/context", ContextRequest{Claims: editorClaims()})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ContextResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Context)
	assert.True(t, resp.Context.IsAuthenticated)
	assert.Equal(t, []string{"Editor"}, resp.Context.Roles)
	assert.Contains(t, resp.Context.Permissions, "users.write")
}

func TestContextFailsClosedOnMissingTenant(t *testing.T) {
	srv := testServer(t, nil)

	w := postJSON(t, srv, "/v1/context", ContextRequest{
		Claims: map[string]interface{}{"oid": "u1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ContextResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Context)
	assert.False(t, resp.Context.IsAuthenticated)
	assert.Empty(t, resp.Context.Permissions)
}

func TestResolutionChainRequiresTenant(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/resolution-chain?userId=u1", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code, "a missing tenant is malformed, not forbidden")
}

func TestResolutionChainWithExplicitGroups(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/resolution-chain?userId=u1&tenantId=t1&groups=G1,G2", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var chain roles.ResolutionChain
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chain))
	assert.Equal(t, "u1", chain.UserID)
	assert.Len(t, chain.Links, 2)
	assert.Equal(t, []string{"Editor", "Viewer"}, chain.Roles)
}

func TestResolutionChainUsesDirectory(t *testing.T) {
	dir := directory.NewMemory()
	dir.PutGroup(&directory.Group{ID: "G1", TenantID: "t1", MemberIDs: []string{"u1"}})
	srv := testServer(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/resolution-chain?userId=u1&tenantId=t1", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var chain roles.ResolutionChain
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chain))
	assert.Equal(t, []string{"Viewer"}, chain.Roles)
}

func TestResolutionChainWithoutDirectoryOrGroups(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/resolution-chain?userId=u1&tenantId=t1", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	srv.SetReady(true)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDIsEchoedAndPreserved(t *testing.T) {
	srv := testServer(t, nil)

	w := postJSON(t, srv, "/v1/context", ContextRequest{Claims: editorClaims()})
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodPost, "/v1/context", bytes.NewReader([]byte(`{"claims":{"oid":"u1","tid":"t1"}}`)))
	req.Header.Set("X-Request-ID", "caller-supplied")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, "caller-supplied", w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpointWhenEnabled(t *testing.T) {
	srv := testServer(t, nil)

	// The default test server has no metrics sink.
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminInvalidateDropsCachedResolution(t *testing.T) {
	table, err := roles.NewTable(&types.RolePermissionTable{
		GroupToRole: map[string]string{"G2": "Editor"},
		RolePermissions: map[string][]string{
			"Viewer": {"users.read"},
			"Editor": {"users.read", "users.write"},
		},
	})
	require.NoError(t, err)

	c := cache.NewLRU(256, time.Minute)
	resolver := roles.NewResolver(table, c, nil)
	builder := principal.NewBuilder(resolver, c, nil)

	reg, err := policy.NewRegistry(nil)
	require.NoError(t, err)
	engine, err := cel.NewEngine()
	require.NoError(t, err)
	eval := evaluator.New(reg, engine, zap.NewNop())
	handler := NewHandler(builder, eval, roles.NewChainBuilder(resolver), nil, nil)
	srv := NewServer(DefaultConfig(), handler, nil, zap.NewNop())

	// Warm the user's cached resolution.
	w := postJSON(t, srv, "/v1/context", ContextRequest{Claims: editorClaims()})
	require.Equal(t, http.StatusOK, w.Code)
	var before ContextResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &before))
	assert.Contains(t, before.Context.Permissions, "users.write")

	// Demote G2. Role permission sets are unchanged, so only the user's
	// cached union is stale.
	require.NoError(t, table.Replace(&types.RolePermissionTable{
		GroupToRole: map[string]string{"G2": "Viewer"},
		RolePermissions: map[string][]string{
			"Viewer": {"users.read"},
			"Editor": {"users.read", "users.write"},
		},
	}))

	w = postJSON(t, srv, "/v1/context", ContextRequest{Claims: editorClaims()})
	var stale ContextResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stale))
	assert.Contains(t, stale.Context.Permissions, "users.write")

	w = postJSON(t, srv, "/v1/admin/invalidate", InvalidateRequest{UserID: "u1", TenantID: "t1"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = postJSON(t, srv, "/v1/context", ContextRequest{Claims: editorClaims()})
	var after ContextResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.NotContains(t, after.Context.Permissions, "users.write")
	assert.Contains(t, after.Context.Permissions, "users.read")
}

func TestAdminInvalidateRequiresIdentifiers(t *testing.T) {
	srv := testServer(t, nil)

	w := postJSON(t, srv, "/v1/admin/invalidate", map[string]string{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
