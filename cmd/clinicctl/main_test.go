package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/dental-verify/internal/model"
	auditService "github.com/jwalitptl/dental-verify/internal/service/audit"
	"github.com/jwalitptl/dental-verify/pkg/qr"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := "log:\n  level: error\ndata_source:\n  preference: local\n  local_path: " +
		filepath.Join(dir, "registry.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedAndVerify(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "seed", "--config", cfg)
	require.NoError(t, err)
	var seeded struct {
		Governorates int `json:"governorates_created"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &seeded))
	assert.Equal(t, 12, seeded.Governorates)

	out, err = run(t, "", "verify", "JOR-DEN-404", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `"outcome": "not_found"`)

	_, err = run(t, "", "verify", "JOR-DEN-404", "--method", "telepathy", "--config", cfg)
	assert.Error(t, err)
}

func TestRecomputeEmptyRegistry(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "recompute", "--now", "2025-01-01", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `"updated_count": 0`)

	_, err = run(t, "", "recompute", "--now", "yesterday", "--config", cfg)
	assert.Error(t, err)
}

func TestExportCSV(t *testing.T) {
	cfg := writeConfig(t)
	dest := filepath.Join(t.TempDir(), "out.csv")

	out, err := run(t, "", "export", "--out", dest, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 0 clinics")

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "\ufeff"))

	_, err = run(t, "", "export", "--format", "pdf", "--config", cfg)
	assert.Error(t, err)
}

func TestQRRoundTrip(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "code.png")

	_, err := run(t, "", "qr", "JOR-DEN-001", "--out", dest)
	require.NoError(t, err)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	text, err := qr.DecodeImage(f)
	require.NoError(t, err)
	assert.Equal(t, "JOR-DEN-001", qr.ParseLicense(text))
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "correct-horse\n", "hash-password", "--cost", "4")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct-horse")))

	_, err = run(t, "", "hash-password")
	assert.Error(t, err)
}

func TestParseNow(t *testing.T) {
	now, err := parseNow("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), now)

	before := time.Now()
	now, err = parseNow("")
	require.NoError(t, err)
	assert.False(t, now.Before(before))
}

func TestWatchPrintsEvents(t *testing.T) {
	events := make(chan []byte, 2)
	ev, err := json.Marshal(auditService.Event{
		Type: auditService.EventVerificationRecorded,
		Attempt: &model.VerificationAttempt{
			LicenseNumber:      "JOR-DEN-001",
			VerificationMethod: model.VerificationMethodQRScan,
			VerificationStatus: model.VerificationStatusSuccess,
			CreatedAt:          time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	events <- ev
	events <- []byte("not json")
	close(events)

	var out bytes.Buffer
	require.NoError(t, watch(context.Background(), events, &out))
	assert.Equal(t, "2025-03-01T10:00:00Z\tJOR-DEN-001\tqr_scan\tsuccess\nnot json\n", out.String())
}
