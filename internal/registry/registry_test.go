package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passage-gw/passage/internal/config"
	"github.com/passage-gw/passage/internal/credential"
)

func testTarget(t *testing.T, tenantID, tenantName, class, baseURI string) *Target {
	t.Helper()

	cache, err := credential.NewCache(credential.Config{
		TenantID: tenantID,
		AuthHost: "https://login.example.com",
		ClientID: "client-id",
		Secret:   credential.StaticSecret("secret"),
		Resource: baseURI,
	})
	require.NoError(t, err)

	target, err := NewTarget(config.Target{
		TenantID:       tenantID,
		TenantName:     tenantName,
		Class:          class,
		BaseURI:        baseURI,
		ClientID:       "client-id",
		ReadGroup:      "readers",
		ReadWriteGroup: "operators",
	}, cache)
	require.NoError(t, err)

	return target
}

func TestParseClass(t *testing.T) {
	t.Parallel()

	class, err := ParseClass("primary")
	require.NoError(t, err)
	assert.Equal(t, ClassPrimary, class)

	class, err = ParseClass("STAGING")
	require.NoError(t, err)
	assert.Equal(t, ClassStaging, class)

	_, err = ParseClass("canary")
	assert.Error(t, err)
}

func TestNewTarget_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	target := testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com/")
	assert.Equal(t, "https://api.example.com", target.BaseURI())
}

func TestTarget_Clone_SharesCredentialCache(t *testing.T) {
	t.Parallel()

	target := testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com")
	clone := target.Clone()

	assert.NotSame(t, target, clone)
	assert.Same(t, target.Credentials(), clone.Credentials())
	assert.Equal(t, target.TenantID(), clone.TenantID())
}

func TestRegistry_Resolve_ByID(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Configure([]*Target{
		testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com"),
	}, "")

	target, err := reg.Resolve("contoso.example.com", "", ClassPrimary)
	require.NoError(t, err)
	assert.Equal(t, "contoso.example.com", target.TenantID())
}

func TestRegistry_Resolve_ByName(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Configure([]*Target{
		testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com"),
	}, "")

	target, err := reg.Resolve("", "Contoso", ClassPrimary)
	require.NoError(t, err)
	assert.Equal(t, "contoso.example.com", target.TenantID())
}

func TestRegistry_Resolve_CaseInsensitive(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Configure([]*Target{
		testTarget(t, "Contoso.Example.Com", "Contoso", "primary", "https://api.example.com"),
	}, "")

	byID, err := reg.Resolve("CONTOSO.EXAMPLE.COM", "", ClassPrimary)
	require.NoError(t, err)
	assert.Equal(t, "Contoso.Example.Com", byID.TenantID())

	byName, err := reg.Resolve("", "contoso", ClassPrimary)
	require.NoError(t, err)
	assert.Equal(t, "Contoso.Example.Com", byName.TenantID())
}

func TestRegistry_Resolve_BothIdentifiers(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Configure([]*Target{
		testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com"),
	}, "")

	_, err := reg.Resolve("contoso.example.com", "Contoso", ClassPrimary)
	assert.ErrorIs(t, err, ErrConfigurationConflict)
}

func TestRegistry_Resolve_UnknownTenant(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Configure([]*Target{
		testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com"),
	}, "")

	_, err := reg.Resolve("fabrikam.example.org", "", ClassPrimary)
	require.Error(t, err)

	var unknown *UnknownTenantError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "fabrikam.example.org", unknown.Identifier)
	assert.Contains(t, err.Error(), `"fabrikam.example.org"`)
}

func TestRegistry_Resolve_DefaultTenant(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Configure([]*Target{
		testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com"),
	}, "contoso.example.com")

	target, err := reg.Resolve("", "", ClassPrimary)
	require.NoError(t, err)
	assert.Equal(t, "contoso.example.com", target.TenantID())
}

func TestRegistry_Resolve_NoDefaultTenant(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Configure([]*Target{
		testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com"),
	}, "")

	_, err := reg.Resolve("", "", ClassPrimary)
	assert.ErrorIs(t, err, ErrNoDefaultTenant)
}

func TestRegistry_Resolve_UnsupportedClass(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Configure([]*Target{
		testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com"),
	}, "")

	_, err := reg.Resolve("contoso.example.com", "", ClassStaging)
	require.Error(t, err)

	var unsupported *UnsupportedClassError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ClassStaging, unsupported.Class)
	assert.Contains(t, err.Error(), "no staging targets")
}

func TestRegistry_Resolve_NameAndIDShareCursor(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Configure([]*Target{
		testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api-1.example.com"),
		testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api-2.example.com"),
	}, "")

	// Alternating id and name lookups advance the same round robin.
	first, err := reg.Resolve("contoso.example.com", "", ClassPrimary)
	require.NoError(t, err)
	second, err := reg.Resolve("", "Contoso", ClassPrimary)
	require.NoError(t, err)

	assert.Equal(t, "https://api-1.example.com", first.BaseURI())
	assert.Equal(t, "https://api-2.example.com", second.BaseURI())
}

func TestTenantPool_Next_RoundRobin(t *testing.T) {
	t.Parallel()

	pool := NewTenantPool("contoso.example.com")
	pool.Add(testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api-1.example.com"))
	pool.Add(testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api-2.example.com"))
	pool.Add(testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api-3.example.com"))

	var order []string
	for i := 0; i < 6; i++ {
		target, err := pool.Next(ClassPrimary)
		require.NoError(t, err)
		order = append(order, target.BaseURI())
	}

	assert.Equal(t, []string{
		"https://api-1.example.com",
		"https://api-2.example.com",
		"https://api-3.example.com",
		"https://api-1.example.com",
		"https://api-2.example.com",
		"https://api-3.example.com",
	}, order)
}

func TestTenantPool_Next_Fairness_Concurrent(t *testing.T) {
	t.Parallel()

	pool := NewTenantPool("contoso.example.com")
	pool.Add(testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api-1.example.com"))
	pool.Add(testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api-2.example.com"))
	pool.Add(testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api-3.example.com"))

	const rounds = 300

	var mu sync.Mutex
	seen := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target, err := pool.Next(ClassPrimary)
			assert.NoError(t, err)
			mu.Lock()
			seen[target.BaseURI()]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 300 draws over 3 targets: exactly 100 each, no slot skipped or
	// repeated.
	assert.Equal(t, rounds/3, seen["https://api-1.example.com"])
	assert.Equal(t, rounds/3, seen["https://api-2.example.com"])
	assert.Equal(t, rounds/3, seen["https://api-3.example.com"])
}

func TestTenantPool_Next_SingleTarget(t *testing.T) {
	t.Parallel()

	pool := NewTenantPool("contoso.example.com")
	pool.Add(testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com"))

	for i := 0; i < 3; i++ {
		target, err := pool.Next(ClassPrimary)
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com", target.BaseURI())
	}
}

func TestTenantPool_Next_EmptyClass(t *testing.T) {
	t.Parallel()

	pool := NewTenantPool("contoso.example.com")

	_, err := pool.Next(ClassPrimary)
	assert.True(t, errors.Is(err, &UnsupportedClassError{}))
}

func TestTenantPool_Classes(t *testing.T) {
	t.Parallel()

	pool := NewTenantPool("contoso.example.com")
	pool.Add(testTarget(t, "contoso.example.com", "Contoso", "primary", "https://api.example.com"))
	pool.Add(testTarget(t, "contoso.example.com", "Contoso", "staging", "https://stage.example.com"))

	classes := pool.Classes()
	assert.ElementsMatch(t, []TargetClass{ClassPrimary, ClassStaging}, classes)
	assert.Equal(t, 1, pool.Len(ClassPrimary))
	assert.Equal(t, 1, pool.Len(ClassStaging))
}
