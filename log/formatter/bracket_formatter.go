package formatter

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const bracketTimeLayout = "2006-01-02 15:04:05.000"

// BracketFormatter writes the log file layout operators of the daemon
// grep for:
//
//	[2026-09-10 14:25:30.000][shellTaskEnv][INFO][1234][task=backup]:
//	message
type BracketFormatter struct {
	Name string
}

func (f *BracketFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	fmt.Fprintf(&b, "[%s][%s][%s][%d]",
		entry.Time.Format(bracketTimeLayout),
		f.Name,
		strings.ToUpper(entry.Level.String()),
		os.Getpid(),
	)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "[%s=%v]", k, entry.Data[k])
	}

	b.WriteString(":\n")
	b.WriteString(entry.Message)
	b.WriteString("\n")

	return b.Bytes(), nil
}
