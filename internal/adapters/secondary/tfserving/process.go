package tfserving

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// Server runs the model server binary as a child process.
type Server struct {
	binary string

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

func NewServer(binary string) *Server {
	return &Server{binary: binary}
}

// ServerArgs renders the fixed command line of the model server.
func ServerArgs(opts ports.ServerOptions) []string {
	return []string{
		"--port=" + strconv.Itoa(opts.GRPCPort),
		"--rest_api_port=" + strconv.Itoa(opts.RESTPort),
		"--model_name=" + opts.ModelName,
		"--model_base_path=" + opts.ModelBasePath,
		"--enable_batching=" + strconv.FormatBool(opts.EnableBatching),
	}
}

// Start launches the process. The process is not bound to ctx: it keeps
// running until Stop is called.
func (s *Server) Start(_ context.Context, opts ports.ServerOptions) error {
	if err := domain.ValidateModelName(opts.ModelName); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return domain.ErrServerRunning
	}
	if s.binary == "" {
		return fmt.Errorf("model server: %w", domain.ErrToolNotConfigured)
	}

	cmd := exec.Command(s.binary, ServerArgs(opts)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attach stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attach stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start model server: %w", err)
	}

	entry := log.WithFields(log.Fields{
		"source": "model_server",
		"model":  opts.ModelName,
		"pid":    cmd.Process.Pid,
	})
	entry.WithField("args", ServerArgs(opts)).Info("model server started")

	done := make(chan struct{})
	s.cmd = cmd
	s.done = done
	s.waitErr = nil

	go func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go pump(&wg, stdout, entry)
		go pump(&wg, stderr, entry)
		// all reads must finish before Wait
		wg.Wait()
		err := cmd.Wait()

		s.mu.Lock()
		s.waitErr = err
		s.mu.Unlock()
		close(done)

		if err != nil {
			entry.WithError(err).Warn("model server exited")
		} else {
			entry.Info("model server exited")
		}
	}()

	return nil
}

const maxLogLine = 1 << 20

// pump logs r line by line. After a scan error the rest of r is discarded so
// the child never blocks on a full pipe.
func pump(wg *sync.WaitGroup, r io.Reader, entry *log.Entry) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for scanner.Scan() {
		entry.Info(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		entry.WithError(err).Warn("model server output no longer logged")
		if _, err := io.Copy(io.Discard, r); err != nil {
			entry.WithError(err).Debug("drain model server output")
		}
	}
}

// Stop sends SIGTERM and kills the process if it has not exited when ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.runningLocked() {
		s.mu.Unlock()
		return domain.ErrServerNotRunning
	}
	cmd, done := s.cmd, s.done
	s.mu.Unlock()

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.WithError(err).Warn("signal model server")
	}

	select {
	case <-done:
	case <-ctx.Done():
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill model server: %w", err)
		}
		<-done
	}
	return nil
}

func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

// Done is closed when the current process exits.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// ExitErr is the result of the last process Wait.
func (s *Server) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitErr
}

func (s *Server) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Ensure interface compliance
var _ ports.ServerProcess = (*Server)(nil)
