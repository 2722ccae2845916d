package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "/opt/shellTaskEnv/settings/conf.json"

const defaultDocument = `{
    "CONFPATH": %s,
    "TASK": {
        "0": {
            "DATE_TIME": {
                "MONTH": "",
                "DAYS": "",
                "HOURS": "",
                "MINUTE": ""
            },
            "EXECUTE": {
                "SHELL": []
            }
        }
    },
    "LOGROTATION": {
        "LOGFILE": "/opt/shellTaskEnv/log/shellLogEnvApp.log",
        "ARCH": {
            "ENABLE": false,
            "DATE_TIME": {
                "MONTH": "",
                "DAYS": "",
                "HOURS": "",
                "MINUTE": ""
            },
            "NAME": "shellLogEnvApp",
            "TYPE": "gz",
            "DIR": "/opt/shellTaskEnv/log/arch",
            "TRUNCATE": true
        },
        "DELETE": {
            "ENABLE": false,
            "DAYS": 30
        }
    },
    "CONFDUMP": {
        "ENABLE": false,
        "DIR": "/opt/shellTaskEnv/dump/copy_conf.json"
    }
}
`

// DefaultDocument renders the default configuration for a file at
// confPath: JSON for .json files, block YAML otherwise.
func DefaultDocument(confPath string) ([]byte, error) {
	quoted, err := json.Marshal(confPath)
	if err != nil {
		return nil, err
	}
	doc := []byte(fmt.Sprintf(defaultDocument, quoted))

	if strings.EqualFold(filepath.Ext(confPath), ".json") {
		return doc, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(doc, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		blockStyle(child)
	}
}

func WriteDefault(path string) error {
	doc, err := DefaultDocument(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, doc, 0o644)
}

// EnsureExists writes the default configuration to path unless a file is
// already there, and reports whether it wrote one.
func EnsureExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return false, &ConfigurationError{Reason: fmt.Sprintf("%s is a directory", path)}
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, err
	}
	if err := WriteDefault(path); err != nil {
		return false, err
	}
	return true, nil
}
