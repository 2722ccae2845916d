package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Dump copies the loaded configuration file to CONFDUMP.DIR when dumping
// is enabled. DIR names the destination file, or a directory to copy into
// if one already exists there. It returns the destination, or "" when
// dumping is disabled.
func Dump(cfg *Config) (string, error) {
	if cfg.ConfDump == nil || !cfg.ConfDump.Enable {
		return "", nil
	}

	src := cfg.Path()
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}

	dst := cfg.ConfDump.Dir
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

// Environment lists the directories a service unit needs to know about.
func Environment(cfg *Config) map[string]string {
	env := map[string]string{
		"SHELL_CONFPATH": filepath.Dir(cfg.Path()),
	}
	if cfg.LogRotation != nil {
		env["SHELL_LOGROTATION"] = filepath.Dir(cfg.LogRotation.LogFile)
		if cfg.LogRotation.Arch != nil {
			env["SHELL_LOGROTATION_ARCH"] = filepath.Dir(cfg.LogRotation.Arch.Dir)
		}
	}
	if cfg.ConfDump != nil {
		env["SHELL_CONFDUMP"] = filepath.Dir(cfg.ConfDump.Dir)
	}
	return env
}

// WriteEnvFile writes Environment(cfg) as an environment file suitable
// for a systemd EnvironmentFile= directive.
func WriteEnvFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return godotenv.Write(Environment(cfg), path)
}
