package worker

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/mattn/go-shellwords"
)

// maxLine bounds a single worker output line. Responses are small; this is
// headroom for verbose error strings.
const maxLine = 1 << 20

// execSpawner parses the configured command once and returns a factory that
// starts a classifier process with piped stdio.
func execSpawner(command string) (func() (process, error), error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse classifier command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("classifier command is empty")
	}

	return func() (process, error) {
		cmd := exec.Command(args[0], args[1:]...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("open worker stdin: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("open worker stdout: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("open worker stderr: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start classifier worker: %w", err)
		}
		return &execProcess{
			cmd:    cmd,
			stdin:  stdin,
			stdout: stdout,
			stderr: stderr,
			doneCh: make(chan struct{}),
		}, nil
	}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	stdinOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
	doneCh    chan struct{}
}

func (p *execProcess) write(line []byte) error {
	_, err := p.stdin.Write(line)
	return err
}

func (p *execProcess) stdoutScanner() *bufio.Scanner {
	s := bufio.NewScanner(p.stdout)
	s.Buffer(make([]byte, 64*1024), maxLine)
	return s
}

func (p *execProcess) stderrScanner() *bufio.Scanner {
	s := bufio.NewScanner(p.stderr)
	s.Buffer(make([]byte, 64*1024), maxLine)
	return s
}

func (p *execProcess) closeStdin() error {
	var err error
	p.stdinOnce.Do(func() { err = p.stdin.Close() })
	return err
}

func (p *execProcess) terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProcess) kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.doneCh)
	})
	return p.waitErr
}

func (p *execProcess) done() <-chan struct{} {
	return p.doneCh
}
