package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const stopTimeout = 5 * time.Second

// CommandDevice captures audio by running an external recorder and reading
// its stdout in fixed-size chunks.
type CommandDevice struct {
	backend   BackendType
	device    string
	chunkSize int

	mutex     sync.Mutex
	cmd       *exec.Cmd
	readDone  chan struct{}
	stderrBuf bytes.Buffer
}

// NewCommandDevice creates a device for the given backend. Backend must be
// resolved (not auto).
func NewCommandDevice(backend BackendType, device string, chunkSize int) *CommandDevice {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	if device == "" {
		device = "default"
	}
	return &CommandDevice{backend: backend, device: device, chunkSize: chunkSize}
}

// ContentType reports the container produced by the backend
func (d *CommandDevice) ContentType() string {
	return contentTypeFor(d.backend)
}

// Acquire starts the recorder process
func (d *CommandDevice) Acquire(ctx context.Context, onChunk func([]byte)) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.cmd != nil {
		return fmt.Errorf("capture process already running")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	args, err := captureArgs(d.backend, d.device)
	if err != nil {
		return err
	}

	slog.Debug("Starting capture process", "command", strings.Join(args, " "))

	cmd := exec.Command(args[0], args[1:]...)
	d.stderrBuf.Reset()
	cmd.Stderr = &d.stderrBuf

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	d.cmd = cmd
	d.readDone = make(chan struct{})
	go d.readChunks(stdout, onChunk, d.readDone)

	return nil
}

// readChunks forwards stdout until the process closes it
func (d *CommandDevice) readChunks(pipe io.Reader, onChunk func([]byte), done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, d.chunkSize)
	for {
		n, err := io.ReadFull(pipe, buf)
		if n > 0 {
			onChunk(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) {
				slog.Debug("Capture stream read failed", "error", err)
			}
			return
		}
	}
}

// Finalize interrupts the recorder so it flushes its container, waits for the
// remaining output and reaps the process.
func (d *CommandDevice) Finalize() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.cmd == nil {
		return nil
	}
	return d.stopProcess()
}

// Release kills any process left behind by a failed Finalize
func (d *CommandDevice) Release() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.cmd == nil {
		return nil
	}
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	<-d.readDone
	d.cmd.Wait()
	d.cmd = nil
	slog.Debug("Capture process released")
	return nil
}

// stopProcess sends SIGINT, waits for the stream to drain and falls back to
// SIGKILL after stopTimeout.
func (d *CommandDevice) stopProcess() error {
	if d.cmd.Process != nil {
		slog.Debug("Sending SIGINT to capture process")
		if err := d.cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Debug("Failed to send interrupt, killing", "error", err)
			d.cmd.Process.Kill()
		}
	}

	select {
	case <-d.readDone:
	case <-time.After(stopTimeout):
		slog.Warn("Capture process did not exit within timeout, force killing")
		if d.cmd.Process != nil {
			d.cmd.Process.Kill()
		}
		<-d.readDone
	}

	err := d.cmd.Wait()
	d.cmd = nil

	if err != nil && !isInterruptExit(err) {
		slog.Debug("Capture process stderr", "output", d.stderrBuf.String())
		return fmt.Errorf("capture process failed: %w", err)
	}
	return nil
}

// isInterruptExit reports whether the process ended because we signalled it
func isInterruptExit(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	// ffmpeg exits 255 after a clean interrupt
	if exitErr.ExitCode() == 255 {
		return true
	}
	if exitErr.ProcessState != nil {
		state := exitErr.ProcessState.String()
		return state == "signal: interrupt" || state == "signal: killed"
	}
	return false
}

func captureArgs(backend BackendType, device string) ([]string, error) {
	switch backend {
	case BackendTypeFFmpeg:
		return []string{
			"ffmpeg", "-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", device,
			"-ac", "1", "-c:a", "libopus", "-b:a", "64k",
			"-f", "webm", "pipe:1",
		}, nil
	case BackendTypeARecord:
		return []string{
			"arecord", "-q", "-D", device,
			"-f", "S16_LE", "-r", "48000", "-c", "1",
			"-t", "wav", "-",
		}, nil
	}
	return nil, fmt.Errorf("unsupported capture backend: %s", backend)
}

func contentTypeFor(backend BackendType) string {
	if backend == BackendTypeARecord {
		return "audio/wav"
	}
	return "audio/webm"
}
