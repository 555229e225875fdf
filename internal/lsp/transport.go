package lsp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Transport is a duplex channel carrying framed JSON-RPC messages. A
// transport is responsible only for framing: WriteMessage sends exactly
// one message, ReadMessage blocks until one complete message is available
// and never hands out a partial frame. Messages are delivered in wire
// order. A transport is owned by exactly one Session.
type Transport interface {
	// WriteMessage writes one framed message.
	WriteMessage(data []byte) error

	// ReadMessage blocks until the next complete message. Once the channel
	// has ended or errored it returns an error wrapping ErrTransportClosed.
	ReadMessage() ([]byte, error)

	// Close releases the channel. Blocked ReadMessage calls return.
	Close() error
}

// hostProcessID returns the client process id used in the initialize
// handshake, or -1 where the platform has no process semantics.
func hostProcessID() int {
	return os.Getpid()
}

// --- Stdio Transport ---

// StdioTransport runs a language server as a subprocess and speaks the
// LSP base protocol (Content-Length framed JSON-RPC) over its stdin and
// stdout pipes.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader

	writeMu sync.Mutex
	closed  atomic.Bool

	exitMu  sync.Mutex
	exitErr error
	exited  bool
}

// StdioOption configures a StdioTransport.
type StdioOption func(*exec.Cmd)

// WithWorkDir sets the server's working directory.
func WithWorkDir(dir string) StdioOption {
	return func(cmd *exec.Cmd) {
		cmd.Dir = dir
	}
}

// WithEnv appends environment variables in KEY=VALUE form.
func WithEnv(env ...string) StdioOption {
	return func(cmd *exec.Cmd) {
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		cmd.Env = append(cmd.Env, env...)
	}
}

// NewStdioTransport spawns a language server executable and returns a
// transport over its pipes. It fails fast with ErrProcessUnsupported on
// platforms without process semantics.
func NewStdioTransport(command string, args []string, opts ...StdioOption) (*StdioTransport, error) {
	if hostProcessID() < 0 {
		return nil, ErrProcessUnsupported
	}

	cmd := exec.Command(command, args...)
	for _, opt := range opts {
		opt(cmd)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	t := &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReaderSize(stdout, 64*1024),
	}

	go t.monitor()

	return t, nil
}

// monitor records the process exit so read errors can carry the cause.
func (t *StdioTransport) monitor() {
	err := t.cmd.Wait()
	t.exitMu.Lock()
	t.exited = true
	t.exitErr = err
	t.exitMu.Unlock()
}

// Pid returns the server process id.
func (t *StdioTransport) Pid() int {
	if t.cmd.Process == nil {
		return -1
	}
	return t.cmd.Process.Pid
}

// WriteMessage writes one Content-Length framed message to the server.
func (t *StdioTransport) WriteMessage(data []byte) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := writeFrame(t.stdin, data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	return nil
}

// ReadMessage reads the next framed message from the server's stdout.
// When the process has exited the returned error carries the exit cause.
func (t *StdioTransport) ReadMessage() ([]byte, error) {
	data, err := readFrame(t.reader)
	if err == nil {
		return data, nil
	}

	t.exitMu.Lock()
	exited, exitErr := t.exited, t.exitErr
	t.exitMu.Unlock()

	if exited && exitErr != nil {
		return nil, fmt.Errorf("%w: server exited: %w", ErrTransportClosed, exitErr)
	}
	if err == io.EOF || err == io.ErrClosedPipe || exited || t.closed.Load() {
		return nil, fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	return nil, err
}

// Close terminates the server process and releases the pipes.
func (t *StdioTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.stdin.Close()
	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
	return nil
}

// --- Framing ---

// writeFrame writes one message with the LSP Content-Length header.
func writeFrame(w io.Writer, data []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// readFrame reads one Content-Length framed message. It buffers until a
// full frame is available; a partial frame is never returned.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var contentLength int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break // end of headers
		}
		if rest, ok := strings.CutPrefix(strings.ToLower(line), "content-length:"); ok {
			length, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return nil, fmt.Errorf("bad Content-Length %q: %w", line, err)
			}
			contentLength = length
		}
		// Content-Type and other headers are ignored.
	}

	if contentLength <= 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
