package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/shelltaskenv/shelltask/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := rootCmd(quietLogger())
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	doc := `{
    "TASK": {
        "backup": {
            "DATE_TIME": {"MONTH": "", "DAYS": "", "HOURS": "2", "MINUTE": "30"},
            "EXECUTE": {"SHELL": ["echo backup"]}
        },
        "poll": {
            "DATE_TIME": {"MONTH": "", "DAYS": "", "HOURS": "", "MINUTE": "/5"},
            "EXECUTE": {"SHELL": ["date"]}
        }
    },
    "LOGROTATION": {
        "LOGFILE": "` + filepath.Join(dir, "log", "app.log") + `",
        "ARCH": {
            "ENABLE": true,
            "DATE_TIME": {"MONTH": "", "DAYS": "", "HOURS": "0", "MINUTE": "0"},
            "NAME": "app",
            "TYPE": "gz",
            "DIR": "` + filepath.Join(dir, "arch", "gz") + `",
            "TRUNCATE": true
        },
        "DELETE": {"ENABLE": false, "DAYS": 30}
    },
    "CONFDUMP": {"ENABLE": false, "DIR": "` + filepath.Join(dir, "dump", "conf.json") + `"}
}
`
	path := filepath.Join(dir, "settings", "conf.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "shelltask dev (commit: none)\n", out)
}

func TestTestModePrintsSchedule(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir)

	out, err := execute(t, "--config", path, "--test", "--no-reap", "--console=false")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "TASK"))
	assert.True(t, strings.HasPrefix(lines[1], "backup"))
	assert.Contains(t, lines[1], "PlanTask")
	assert.True(t, strings.HasPrefix(lines[2], "poll"))
	assert.Contains(t, lines[2], "IntervalTask")
	assert.True(t, strings.HasPrefix(lines[3], config.ReservedTaskKey))

	content, err := os.ReadFile(filepath.Join(dir, "log", "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "[shellTaskEnv][INFO]")
	assert.Contains(t, string(content), "Server is running...")
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"TASK": {}}`), 0o644))

	_, err := execute(t, "--config", path, "--test", "--no-reap", "--console=false")

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "LOGROTATION", cfgErr.Field)
}

func TestEnvCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir)
	output := filepath.Join(dir, "systemd", ".env")

	out, err := execute(t, "--config", path, "env", "--output", output)
	require.NoError(t, err)
	assert.Equal(t, "wrote "+output+"\n", out)

	env, err := godotenv.Read(output)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "log"), env["SHELL_LOGROTATION"])
	assert.Equal(t, filepath.Join(dir, "arch"), env["SHELL_LOGROTATION_ARCH"])
	assert.Equal(t, filepath.Join(dir, "settings"), env["SHELL_CONFPATH"])
	assert.Equal(t, filepath.Join(dir, "dump"), env["SHELL_CONFDUMP"])
}

func TestRejectsPositionalArguments(t *testing.T) {
	_, err := execute(t, "extra")
	assert.Error(t, err)
}
