package daemon

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/beacon/internal/config"
	"github.com/harun/beacon/internal/logger"
)

func testConfig(t *testing.T, dataDir string) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = dataDir
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Auth.JWTSecret = "test-secret-0123456789abcdef"
	cfg.Auth.BcryptCost = 4
	cfg.Snapshot.Schedule = "@every 1h"
	cfg.Snapshot.Passphrase = "test-passphrase"
	return cfg
}

// createTestDaemon creates a daemon listening on a random loopback port
func createTestDaemon(t *testing.T, dataDir string) *Daemon {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	d, err := New(testConfig(t, dataDir), log)
	require.NoError(t, err)
	return d
}

func TestNew(t *testing.T) {
	d := createTestDaemon(t, t.TempDir())

	assert.NotNil(t, d.store)
	assert.NotNil(t, d.users)
	assert.NotNil(t, d.persister)
	assert.NotNil(t, d.scheduler)
	assert.NotNil(t, d.server)
	assert.NotNil(t, d.eventLoop)
	assert.NotNil(t, d.lifecycle)
}

func TestNew_InvalidConfig(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)
	defer log.Close()

	cfg := testConfig(t, t.TempDir())
	cfg.Auth.JWTSecret = ""
	_, err = New(cfg, log)
	assert.Error(t, err)

	cfg = testConfig(t, t.TempDir())
	cfg.Location.ReadPolicy = "eager"
	_, err = New(cfg, log)
	assert.Error(t, err)
}

func TestDaemonStartStop(t *testing.T) {
	d := createTestDaemon(t, t.TempDir())

	require.NoError(t, d.Start())
	assert.ErrorContains(t, d.Start(), "already running")

	status := d.Status()
	assert.True(t, status.Running)
	assert.NotEmpty(t, status.Addr)

	_, err := os.Stat(d.config.PIDFile())
	assert.NoError(t, err)

	require.NoError(t, d.Stop())
	assert.False(t, d.Status().Running)
	assert.Error(t, d.Stop())

	_, err = os.Stat(d.config.PIDFile())
	assert.True(t, os.IsNotExist(err))
}

func TestDaemonStatus(t *testing.T) {
	d := createTestDaemon(t, t.TempDir())

	status := d.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Duration(0), status.Uptime)

	require.NoError(t, d.Start())
	defer d.Stop()

	time.Sleep(20 * time.Millisecond)
	status = d.Status()
	assert.True(t, status.Running)
	assert.Greater(t, status.Uptime, time.Duration(0))
	assert.Zero(t, status.Records)
}

func postJSON(t *testing.T, url, token string, body any) map[string]any {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Less(t, resp.StatusCode, 300)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestDaemon_SnapshotSurvivesRestart(t *testing.T) {
	dataDir := t.TempDir()

	d := createTestDaemon(t, dataDir)
	require.NoError(t, d.Start())
	base := "http://" + d.Status().Addr

	postJSON(t, base+"/api/auth/register", "", map[string]string{"email": "alice@example.com", "password": "hunter22"})
	login := postJSON(t, base+"/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "hunter22"})
	token := login["token"].(string)

	postJSON(t, base+"/api/location/update", token, map[string]any{"location": []float64{10.1, 20.2}})
	require.NoError(t, d.Stop())

	_, err := os.Stat(d.config.Snapshot.File)
	require.NoError(t, err)

	audit, err := os.ReadFile(filepath.Join(dataDir, "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(audit), `"action":"register"`)

	restarted := createTestDaemon(t, dataDir)
	status := restarted.Status()
	assert.Equal(t, 1, status.Records)
	assert.Equal(t, 1, status.Users)

	user, err := restarted.GetDirectory().ByEmail("alice@example.com")
	require.NoError(t, err)
	rec, err := restarted.GetStore().Get(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.1, rec.Position.Lat)
	assert.Equal(t, 20.2, rec.Position.Lng)
}
