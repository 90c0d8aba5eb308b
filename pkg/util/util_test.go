package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?cache=shared", SQLiteDSN(""))
	assert.Equal(t, "data.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", SQLiteDSN("data.db"))
	assert.Equal(t, "data.db?mode=ro", SQLiteDSN("data.db?mode=ro"))
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("T_SECONDS", "8")
	t.Setenv("T_UNIT", "250ms")
	t.Setenv("T_EMPTY", "")

	assert.Equal(t, 8*time.Second, GetDurationEnv("T_SECONDS"))
	assert.Equal(t, 250*time.Millisecond, GetDurationEnv("T_UNIT"))
	assert.Zero(t, GetDurationEnv("T_EMPTY"))
}

func TestLoadEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# comment\nPOSTOP_A=file\nexport POSTOP_B=\"quoted\"\n"), 0o600))
	t.Setenv("POSTOP_A", "process")
	t.Setenv("POSTOP_B", "")
	os.Unsetenv("POSTOP_B")

	require.NoError(t, LoadEnv("test"))
	assert.Equal(t, "process", GetEnv("POSTOP_A"))
	assert.Equal(t, "quoted", GetEnv("POSTOP_B"))
	assert.Equal(t, "fallback", GetEnvDefault("POSTOP_MISSING", "fallback"))
}

func TestInitDatabase_SQLiteMemory(t *testing.T) {
	db, err := InitDatabase("sqlite", "file::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.NoError(t, sqlDB.Ping())
}
