package main

import (
	"os"
	"syscall"

	reaper "github.com/ramr/go-reaper"
	"github.com/sirupsen/logrus"
)

// forkExecArgs re-runs this binary through its absolute path, since
// args[0] may be a bare name that does not resolve from the working
// directory. The child must not try to reap again.
func forkExecArgs(args []string) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(args)+1)
	out = append(out, exe, "--no-reap")
	if len(args) > 1 {
		out = append(out, args[1:]...)
	}
	return out, nil
}

// forkExec runs the daemon as a child while this process, as PID 1, reaps
// orphans left behind by shell commands. It exits with the child's
// status.
func forkExec() {
	//  Start background reaping of orphaned child processes.
	go reaper.Reap()

	pwd, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("Failed to get current working directory: %s", err)
		return
	}

	args, err := forkExecArgs(os.Args)
	if err != nil {
		logrus.Fatalf("Failed to locate executable: %s", err)
		return
	}

	var wstatus syscall.WaitStatus
	pattrs := &syscall.ProcAttr{
		Dir: pwd,
		Env: os.Environ(),
		Sys: &syscall.SysProcAttr{Setsid: true},
		Files: []uintptr{
			uintptr(syscall.Stdin),
			uintptr(syscall.Stdout),
			uintptr(syscall.Stderr),
		},
	}
	pid, err := syscall.ForkExec(args[0], args, pattrs)
	if err != nil {
		logrus.Fatalf("Failed to fork exec: %s", err)
		return
	}

	_, err = syscall.Wait4(pid, &wstatus, 0, nil)
	for syscall.EINTR == err {
		_, err = syscall.Wait4(pid, &wstatus, 0, nil)
	}
	if err != nil {
		logrus.Fatalf("Failed to wait: %s", err)
		return
	}
	os.Exit(wstatus.ExitStatus())
}
