package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedDoc = `fields:
  - mnemonic: PX_CLOSE
    type: dbl
    storage: wide
    table: Pricing
    column: PxClose
    fx: money
  - mnemonic: NAV_CLOSE
    type: dbl
    storage: long
    table: FieldSnapshot
    fx: money
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestCLIGolden(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "finstore.db")
	seedPath := filepath.Join(dir, "fields.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedDoc), 0o644))

	mustRunCLI(t, "init", "--db", dbPath)
	mustRunCLI(t, "seed", "--db", dbPath, seedPath)

	out := mustRunCLI(t, "securities", "add", "SPY",
		"--type", "ETF", "--currency", "USD", "--exchange", "US", "--db", dbPath)
	require.Equal(t, "security SPY registered with id 1\n", out)

	mustRunCLI(t, "upload", "SPY", "--field", "NAV_CLOSE",
		"--date", "2024-06-27", "--value", "100", "--txn-date", "2024-06-28", "--db", dbPath)
	mustRunCLI(t, "upload", "SPY", "--field", "NAV_CLOSE",
		"--date", "2024-06-28", "--value", "100.5", "--txn-date", "2024-06-29", "--db", dbPath)

	g := goldie.New(t)

	out = mustRunCLI(t, "fields", "--db", dbPath)
	g.Assert(t, "fields", []byte(out))

	out = mustRunCLI(t, "fields", "--format", "json", "--db", dbPath)
	g.Assert(t, "fields_json", []byte(out))

	out = mustRunCLI(t, "history", "SPY", "--fields", "NAV_CLOSE",
		"--from", "2024-06-01", "--to", "2024-06-30", "--db", dbPath)
	g.Assert(t, "history", []byte(out))
}

func TestCLIUploadUnchangedIsNoOp(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "finstore.db")
	seedPath := filepath.Join(dir, "fields.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedDoc), 0o644))

	mustRunCLI(t, "init", "--db", dbPath)
	mustRunCLI(t, "seed", "--db", dbPath, seedPath)
	mustRunCLI(t, "securities", "add", "SPY", "--type", "ETF", "--db", dbPath)
	mustRunCLI(t, "upload", "SPY", "--field", "NAV_CLOSE",
		"--date", "2024-06-28", "--value", "100.5", "--txn-date", "2024-06-29", "--db", dbPath)

	out := mustRunCLI(t, "upload", "SPY", "--field", "NAV_CLOSE",
		"--date", "2024-06-28", "--value", "100.5", "--txn-date", "2024-06-30", "--db", dbPath)
	assert.Equal(t, "value unchanged, no revision written\n", out)
}

func TestCLIRejectsBadFormat(t *testing.T) {
	_, err := runCLI(t, "--format", "xml", "fields")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestCLIRequiresDatabase(t *testing.T) {
	t.Setenv(envDatabase, "")

	_, err := runCLI(t, "fields")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
