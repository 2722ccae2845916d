package hook

import (
	"io"

	"github.com/sirupsen/logrus"
)

type writerHook struct {
	writer    io.Writer
	levels    []logrus.Level
	formatter logrus.Formatter
}

func (h *writerHook) Levels() []logrus.Level {
	return h.levels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	formatter := h.formatter
	if formatter == nil {
		formatter = entry.Logger.Formatter
	}
	serialized, err := formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(serialized)
	return err
}

// RegisterSplitLogger sends debug and info entries to outWriter and
// everything more severe to errWriter.
func RegisterSplitLogger(logger *logrus.Logger, outWriter io.Writer, errWriter io.Writer) {
	logger.SetOutput(io.Discard)

	logger.AddHook(&writerHook{
		writer: outWriter,
		levels: []logrus.Level{
			logrus.DebugLevel,
			logrus.InfoLevel,
		},
	})

	logger.AddHook(&writerHook{
		writer: errWriter,
		levels: []logrus.Level{
			logrus.WarnLevel,
			logrus.ErrorLevel,
			logrus.FatalLevel,
			logrus.PanicLevel,
		},
	})
}
