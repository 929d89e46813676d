package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/partsdesk-backend/internal/app"
	"github.com/angelmondragon/partsdesk-backend/pkg/config"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
)

func testOpener(t *testing.T) opener {
	t.Helper()
	cfg := &config.Config{
		JWT:      config.JWTConfig{Secret: "s", ExpirationMinutes: 5},
		Password: config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
	}
	logg := logger.New(logger.Options{ServiceName: "partsctl-test", Level: zerolog.Disabled, Output: io.Discard})
	services, err := app.Build(app.Params{Config: cfg, Logger: logg, DB: dbtest.Open(t)})
	require.NoError(t, err)
	return func(context.Context) (*env, error) {
		return &env{cfg: cfg, logg: logg, services: services}, nil
	}
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUsersCreateAndList(t *testing.T) {
	open := testOpener(t)

	out, err := run(t, open, "users", "create", "-u", "Cashier1", "-p", "longenough", "-r", "employee")
	require.NoError(t, err)
	assert.Contains(t, out, "created cashier1 (employee)")

	out, err = run(t, open, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "cashier1")
	assert.Contains(t, out, "employee")
}

func TestCatalogImportRequiresConfirmation(t *testing.T) {
	_, err := run(t, testOpener(t), "catalog", "import", "-f", "missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestCatalogImportThenExport(t *testing.T) {
	open := testOpener(t)
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte("PartNumber,Supplier,Price,Stock\nP1,S1,3,2\nP2,,1,1\n"), 0o600))

	out, err := run(t, open, "catalog", "import", "-f", path, "--yes")
	require.Error(t, err, "skipped lines surface as a partial failure")
	assert.Contains(t, out, "applied 1 rows")
	assert.Contains(t, out, "[skip] Line 3: missing supplier")

	out, err = run(t, open, "catalog", "export")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `"P1",`))
}
