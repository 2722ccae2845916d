package action

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

var (
	READ_BUFFER_SIZE = 64 * 1024
)

const DefaultShell = "/bin/sh"

// Context is the environment shared by all shell commands.
type Context struct {
	Shell   string
	Environ map[string]string
}

// Shell runs its commands one after the other. A failing command is
// logged and does not stop the ones after it.
type Shell struct {
	Context  *Context
	Commands []string
}

// Result is the outcome of one command.
type Result struct {
	Command string
	Output  []string
	Err     error
}

func (s *Shell) Kind() string {
	return KindShell
}

func (s *Shell) Run(logger *logrus.Entry) error {
	s.Execute(logger)
	return nil
}

// Execute runs every command and returns their results in order.
func (s *Shell) Execute(logger *logrus.Entry) []Result {
	results := make([]Result, 0, len(s.Commands))

	for i, command := range s.Commands {
		cmdLogger := logger.WithFields(logrus.Fields{"command": i})

		output, err := runCommand(s.Context, command, cmdLogger)
		if err != nil {
			cmdLogger.Errorf("%q: %v", command, err)
		} else {
			cmdLogger.Debugf("%q succeeded", command)
		}

		results = append(results, Result{Command: command, Output: output, Err: err})
	}

	return results
}

type outputLines struct {
	mu    sync.Mutex
	lines []string
}

func (o *outputLines) add(line string) {
	o.mu.Lock()
	o.lines = append(o.lines, line)
	o.mu.Unlock()
}

func startReaderDrain(wg *sync.WaitGroup, readerLogger *logrus.Entry, reader io.ReadCloser, out *outputLines) {
	wg.Add(1)

	go func() {
		defer func() {
			if err := reader.Close(); err != nil {
				readerLogger.Errorf("failed to close pipe: %v", err)
			}
			wg.Done()
		}()

		bufReader := bufio.NewReaderSize(reader, READ_BUFFER_SIZE)

		for {
			line, isPrefix, err := bufReader.ReadLine()

			if err != nil {
				if strings.Contains(err.Error(), os.ErrClosed.Error()) {
					// The underlying reader might get
					// closed by e.g. Wait(), or even the
					// process we're starting, so we don't
					// log this.
				} else if err == io.EOF {
					// EOF, we don't need to log this
				} else {
					// Unexpected error: log it
					readerLogger.Errorf("failed to read pipe: %v", err)
				}

				break
			}

			readerLogger.Info(string(line))
			out.add(string(line))

			if isPrefix {
				readerLogger.Warn("last line exceeded buffer size, continuing...")
			}
		}
	}()
}

func runCommand(cmdCtx *Context, command string, logger *logrus.Entry) ([]string, error) {
	if cmdCtx == nil {
		cmdCtx = &Context{}
	}

	shell := cmdCtx.Shell
	if shell == "" {
		shell = DefaultShell
	}

	logger.Infof("shell: %s", command)

	cmd := exec.Command(shell, "-c", command)

	// Run in a separate process group so that in interactive usage, CTRL+C
	// stops the daemon, not the children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	env := os.Environ()
	for k, v := range cmdCtx.Environ {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	var out outputLines

	startReaderDrain(&wg, logger.WithFields(logrus.Fields{"channel": "stdout"}), stdout, &out)
	startReaderDrain(&wg, logger.WithFields(logrus.Fields{"channel": "stderr"}), stderr, &out)

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return out.lines, fmt.Errorf("error running command: %v", err)
	}

	return out.lines, nil
}
