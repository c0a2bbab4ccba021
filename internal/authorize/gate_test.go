package authorize

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passage-gw/passage/internal/config"
	"github.com/passage-gw/passage/internal/credential"
	"github.com/passage-gw/passage/internal/registry"
)

func testTarget(t *testing.T) *registry.Target {
	t.Helper()

	cache, err := credential.NewCache(credential.Config{
		TenantID: "contoso.example.com",
		AuthHost: "https://login.example.com",
		ClientID: "client-id",
		Secret:   credential.StaticSecret("secret"),
		Resource: "https://api.example.com",
	})
	require.NoError(t, err)

	target, err := registry.NewTarget(config.Target{
		TenantID:       "contoso.example.com",
		TenantName:     "Contoso",
		Class:          "primary",
		BaseURI:        "https://api.example.com",
		ClientID:       "client-id",
		ReadGroup:      "contoso-readers",
		ReadWriteGroup: "contoso-operators",
	}, cache)
	require.NoError(t, err)

	return target
}

func TestPrincipal_IsMember(t *testing.T) {
	t.Parallel()

	p := Principal{Name: "alice", Groups: []string{"a", "b"}}
	assert.True(t, p.IsMember("a"))
	assert.True(t, p.IsMember("b"))
	assert.False(t, p.IsMember("c"))
	assert.False(t, Principal{}.IsMember("a"))
}

func TestGate_CheckPermission(t *testing.T) {
	t.Parallel()

	gate := NewGate()
	target := testTarget(t)

	tests := []struct {
		name    string
		groups  []string
		verb    string
		allowed bool
	}{
		{"reader can GET", []string{"contoso-readers"}, http.MethodGet, true},
		{"operator can GET", []string{"contoso-operators"}, http.MethodGet, true},
		{"stranger cannot GET", []string{"other"}, http.MethodGet, false},
		{"reader cannot PUT", []string{"contoso-readers"}, http.MethodPut, false},
		{"reader cannot POST", []string{"contoso-readers"}, http.MethodPost, false},
		{"reader cannot DELETE", []string{"contoso-readers"}, http.MethodDelete, false},
		{"operator can PUT", []string{"contoso-operators"}, http.MethodPut, true},
		{"operator can POST", []string{"contoso-operators"}, http.MethodPost, true},
		{"operator can DELETE", []string{"contoso-operators"}, http.MethodDelete, true},
		{"member of both can DELETE", []string{"contoso-readers", "contoso-operators"}, http.MethodDelete, true},
		{"no groups denied", nil, http.MethodGet, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decision := gate.CheckPermission(Principal{Name: "alice", Groups: tt.groups}, tt.verb, target)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, decision.Reason)
				assert.NotEmpty(t, decision.RequiredGroup)
			}
		})
	}
}

func TestGate_DenialNamesUserAndGroup(t *testing.T) {
	t.Parallel()

	gate := NewGate()
	target := testTarget(t)

	decision := gate.CheckPermission(Principal{Name: "bob"}, http.MethodGet, target)
	require.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, `"bob"`)
	assert.Contains(t, decision.Reason, `"contoso-readers"`)
	assert.Contains(t, decision.Reason, "GET")
	assert.Equal(t, "contoso-readers", decision.RequiredGroup)

	decision = gate.CheckPermission(Principal{Name: "bob"}, http.MethodDelete, target)
	require.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, `"contoso-operators"`)
	assert.Equal(t, "contoso-operators", decision.RequiredGroup)
}

type denialRecorder struct {
	tenant string
	group  string
	count  int
}

func (r *denialRecorder) RecordAuthzDenial(tenant, group string) {
	r.tenant = tenant
	r.group = group
	r.count++
}

func TestGate_RecordsDenials(t *testing.T) {
	t.Parallel()

	rec := &denialRecorder{}
	gate := NewGate(WithRecorder(rec))
	target := testTarget(t)

	gate.CheckPermission(Principal{Name: "bob"}, http.MethodPut, target)
	assert.Equal(t, 1, rec.count)
	assert.Equal(t, "contoso.example.com", rec.tenant)
	assert.Equal(t, "contoso-operators", rec.group)

	// Allowed checks record nothing.
	gate.CheckPermission(Principal{Name: "alice", Groups: []string{"contoso-operators"}}, http.MethodPut, target)
	assert.Equal(t, 1, rec.count)
}
