package core

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// browserStopTimeout is how long a browser gets to exit after SIGTERM.
const browserStopTimeout = 3 * time.Second

// BrowserSpec describes one browser launch.
type BrowserSpec struct {
	Executable string
	Args       []string
	ProfileDir string
	Port       int
	URL        string
}

// CommandLine returns the full argument list passed to the executable.
func (s BrowserSpec) CommandLine() []string {
	args := append([]string(nil), s.Args...)
	args = append(args, "-no-remote", "-profile", s.ProfileDir, "-start-debugger-server", strconv.Itoa(s.Port))
	if s.URL != "" {
		args = append(args, s.URL)
	}
	return args
}

// BrowserProcess is a running browser.
type BrowserProcess interface {
	Stop(ctx context.Context) error
}

// BrowserLauncher starts browsers.
type BrowserLauncher interface {
	Launch(ctx context.Context, spec BrowserSpec) (BrowserProcess, error)
}

// ExecLauncher starts the browser as a child process in its own process group.
type ExecLauncher struct {
	Logger pslog.Logger
}

// Launch starts the browser. The process outlives ctx; Stop ends it.
func (l ExecLauncher) Launch(ctx context.Context, spec BrowserSpec) (BrowserProcess, error) {
	log := l.Logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	if spec.Executable == "" {
		return nil, errors.New("browser executable is required")
	}
	cmd := exec.Command(spec.Executable, spec.CommandLine()...)
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start browser %s: %w", spec.Executable, err)
	}
	p := &execProcess{cmd: cmd, pgid: processGroup(cmd), log: log, done: make(chan struct{})}
	log.Info("browser started", "pid", cmd.Process.Pid, "executable", spec.Executable, "port", spec.Port, "profile", spec.ProfileDir)
	go p.wait()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	pgid int
	log  pslog.Logger
	done chan struct{}
	err  error
	once sync.Once
}

func (p *execProcess) wait() {
	p.err = p.cmd.Wait()
	p.log.Debug("browser exited", "pid", p.cmd.Process.Pid, "err", p.err)
	close(p.done)
}

// Stop sends SIGTERM to the process group and SIGKILL when it lingers.
func (p *execProcess) Stop(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if sigErr := terminate(p.cmd, p.pgid); sigErr != nil {
			p.log.Debug("browser terminate failed", "err", sigErr)
		}
		timer := time.NewTimer(browserStopTimeout)
		defer timer.Stop()
		select {
		case <-p.done:
			return
		case <-timer.C:
		case <-ctx.Done():
		}
		p.log.Warn("browser did not exit, killing", "pid", p.cmd.Process.Pid)
		err = kill(p.cmd, p.pgid)
		<-p.done
	})
	return err
}
