package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, defaultTenant string) {
	t.Helper()

	content := `
proxy:
  defaultTenant: ` + defaultTenant + `
targets:
  - tenantId: ` + defaultTenant + `
    tenantName: Tenant
    class: primary
    baseUri: https://api.example.com
    clientId: client-1
    clientSecret: s3cret
    readGroup: readers
    readWriteGroup: operators
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passage.yaml")
	writeConfig(t, path, "contoso.example.com")

	reloaded := make(chan *Config, 1)
	watcher, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	t.Cleanup(func() { _ = watcher.Stop() })

	writeConfig(t, path, "fabrikam.example.org")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "fabrikam.example.org", cfg.Proxy.DefaultTenant)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_InvalidReloadKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passage.yaml")
	writeConfig(t, path, "contoso.example.com")

	reloaded := make(chan *Config, 1)
	failed := make(chan error, 1)

	watcher, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	},
		WithDebounceDelay(10*time.Millisecond),
		WithErrorCallback(func(err error) {
			select {
			case failed <- err:
			default:
			}
		}),
	)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	t.Cleanup(func() { _ = watcher.Stop() })

	require.NoError(t, os.WriteFile(path, []byte("targets: [broken"), 0o600))

	select {
	case err := <-failed:
		assert.Error(t, err)
	case cfg := <-reloaded:
		t.Fatalf("broken config must not reach the callback, got %+v", cfg)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passage.yaml")
	writeConfig(t, path, "contoso.example.com")

	watcher, err := NewWatcher(path, func(*Config) {})
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))

	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}
