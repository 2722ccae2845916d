package config

import (
	"fmt"

	"github.com/shelltaskenv/shelltask/schedule"
	"gopkg.in/yaml.v3"
)

// DateTime holds the four schedule fields of a task. Each key must be
// present in the file; an empty value means the field is absent.
type DateTime struct {
	Month  *string `yaml:"MONTH" validate:"required"`
	Days   *string `yaml:"DAYS" validate:"required"`
	Hours  *string `yaml:"HOURS" validate:"required"`
	Minute *string `yaml:"MINUTE" validate:"required"`
}

func (d *DateTime) Raw() schedule.RawSpec {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return schedule.RawSpec{
		Month:  deref(d.Month),
		Day:    deref(d.Days),
		Hour:   deref(d.Hours),
		Minute: deref(d.Minute),
	}
}

type Execute struct {
	Shell []string `yaml:"SHELL" validate:"required"`
}

type Task struct {
	DateTime *DateTime `yaml:"DATE_TIME" validate:"required"`
	Execute  *Execute  `yaml:"EXECUTE" validate:"required"`
}

// Tasks is the TASK mapping. Keys keep the order they have in the file.
type Tasks struct {
	keys  []string
	tasks map[string]*Task
}

func NewTasks() *Tasks {
	return &Tasks{tasks: make(map[string]*Task)}
}

// Set adds or replaces a task, appending new keys at the end.
func (t *Tasks) Set(key string, task *Task) {
	if t.tasks == nil {
		t.tasks = make(map[string]*Task)
	}
	if _, ok := t.tasks[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.tasks[key] = task
}

func (t *Tasks) Get(key string) (*Task, bool) {
	task, ok := t.tasks[key]
	return task, ok
}

func (t *Tasks) Keys() []string {
	return append([]string(nil), t.keys...)
}

func (t *Tasks) Len() int {
	return len(t.keys)
}

func (t *Tasks) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: TASK must be a mapping", node.Line)
	}

	t.keys = nil
	t.tasks = make(map[string]*Task, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		if _, ok := t.tasks[keyNode.Value]; ok {
			return fmt.Errorf("line %d: duplicate task %q", keyNode.Line, keyNode.Value)
		}

		task := &Task{}
		if err := valueNode.Decode(task); err != nil {
			return fmt.Errorf("task %q: %w", keyNode.Value, err)
		}
		t.Set(keyNode.Value, task)
	}

	return nil
}

type Arch struct {
	Enable   bool      `yaml:"ENABLE"`
	DateTime *DateTime `yaml:"DATE_TIME" validate:"required_if=Enable true"`
	Name     string    `yaml:"NAME" validate:"required_if=Enable true"`
	Type     string    `yaml:"TYPE" validate:"oneof=gz zip"`
	Dir      string    `yaml:"DIR" validate:"required_if=Enable true"`
	Truncate bool      `yaml:"TRUNCATE"`
}

type Delete struct {
	Enable bool `yaml:"ENABLE"`
	Days   int  `yaml:"DAYS" validate:"gte=0"`
}

type LogRotation struct {
	LogFile string  `yaml:"LOGFILE" validate:"required"`
	Arch    *Arch   `yaml:"ARCH" validate:"required"`
	Delete  *Delete `yaml:"DELETE" validate:"required"`
}

type ConfDump struct {
	Enable bool   `yaml:"ENABLE"`
	Dir    string `yaml:"DIR" validate:"required_if=Enable true"`
}

type Config struct {
	// ConfPath, when set and different from the file being read, points
	// at the file that actually holds the configuration.
	ConfPath    string            `yaml:"CONFPATH"`
	Task        *Tasks            `yaml:"TASK" validate:"required"`
	LogRotation *LogRotation      `yaml:"LOGROTATION" validate:"required"`
	ConfDump    *ConfDump         `yaml:"CONFDUMP" validate:"required"`
	ShellPath   string            `yaml:"SHELL_PATH"`
	Environ     map[string]string `yaml:"ENVIRON"`

	path string
}

// Path is the file the configuration was read from.
func (c *Config) Path() string {
	return c.path
}
