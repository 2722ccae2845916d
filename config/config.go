// Package config loads and validates the daemon's configuration file.
//
// The file is JSON (or YAML) with the upper case keys the daemon has
// always used: TASK, LOGROTATION, CONFDUMP and CONFPATH, plus the
// optional SHELL_PATH and ENVIRON.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shelltaskenv/shelltask/action"
	"github.com/shelltaskenv/shelltask/schedule"
	"gopkg.in/yaml.v3"
)

// ReservedTaskKey is the registry key of the log rotation task, so no
// configured task may use it.
const ReservedTaskKey = "LOGROTATION"

// ConfigurationError names the offending field by its key path in the
// file, e.g. TASK.backup.DATE_TIME.HOURS.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration not accepted: %s", e.Reason)
	}
	return fmt.Sprintf("configuration not accepted: error in the %s field: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads path, follows CONFPATH once if it points elsewhere, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	if cfg.ConfPath != "" && !samePath(cfg.ConfPath, path) {
		cfg, err = decodeFile(cfg.ConfPath)
		if err != nil {
			return nil, err
		}
	}

	cfg.withDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{path: path}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("%s is empty", path)}
		}
		return nil, &ConfigurationError{Reason: fmt.Sprintf("cannot parse %s: %v", path, err), Err: err}
	}
	return cfg, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func (c *Config) withDefaults() {
	if c.ShellPath == "" {
		c.ShellPath = action.DefaultShell
	}
	if c.LogRotation != nil && c.LogRotation.Arch != nil && c.LogRotation.Arch.Type == "" {
		c.LogRotation.Arch.Type = action.ArchiveGzip
	}
}

// Validate checks the whole configuration, including that every schedule
// field can be classified.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fromValidation(err, "")
	}

	for _, key := range cfg.Task.Keys() {
		if key == ReservedTaskKey {
			return &ConfigurationError{
				Field:  "TASK." + key,
				Reason: "task key is reserved for log rotation",
			}
		}

		task, _ := cfg.Task.Get(key)
		if task == nil {
			return &ConfigurationError{Field: "TASK." + key, Reason: "missing field"}
		}
		prefix := "TASK." + key + "."
		if err := validate.Struct(task); err != nil {
			return fromValidation(err, prefix)
		}
		if _, err := schedule.Parse(task.DateTime.Raw()); err != nil {
			return &ConfigurationError{Field: prefix + "DATE_TIME", Reason: err.Error(), Err: err}
		}
	}

	if arch := cfg.LogRotation.Arch; arch.Enable {
		if _, err := schedule.Parse(arch.DateTime.Raw()); err != nil {
			return &ConfigurationError{Field: "LOGROTATION.ARCH.DATE_TIME", Reason: err.Error(), Err: err}
		}
	}

	return nil
}

func fromValidation(err error, prefix string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigurationError{Reason: err.Error(), Err: err}
	}

	fe := verrs[0]

	// Namespace starts with the Go type name of the validated struct.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "missing field"
	case "required_if":
		reason = fmt.Sprintf("required when %s", fe.Param())
	case "oneof":
		reason = fmt.Sprintf("%v is not one of: %s", fe.Value(), fe.Param())
	case "gte":
		reason = fmt.Sprintf("%v must be >= %s", fe.Value(), fe.Param())
	default:
		reason = fmt.Sprintf("failed %q check", fe.Tag())
	}

	return &ConfigurationError{Field: prefix + field, Reason: reason, Err: err}
}

// Context is what shell commands run with.
func (c *Config) Context() *action.Context {
	environ := make(map[string]string, len(c.Environ))
	for k, v := range c.Environ {
		environ[k] = v
	}
	return &action.Context{
		Shell:   c.ShellPath,
		Environ: environ,
	}
}
