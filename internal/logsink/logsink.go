package logsink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// ErrNoLogs marks a project that has never produced a log file. It is
// distinct from a log file that exists but is empty.
var ErrNoLogs = errors.New("no logs found")

const logFileName = "output.log"

// Rotation defaults for project output. Each run appends to the same file;
// lumberjack bounds growth by rotating instead of truncating.
const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 14
)

// Sink manages per-project combined-output log files under a single logs
// root: <root>/<name>/output.log.
type Sink struct {
	root       string
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
}

// Option adjusts rotation parameters.
type Option func(*Sink)

func WithRotation(maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(s *Sink) {
		if maxSizeMB > 0 {
			s.maxSizeMB = maxSizeMB
		}
		if maxBackups > 0 {
			s.maxBackups = maxBackups
		}
		if maxAgeDays > 0 {
			s.maxAgeDays = maxAgeDays
		}
	}
}

func New(root string, opts ...Option) *Sink {
	s := &Sink{
		root:       root,
		maxSizeMB:  DefaultMaxSizeMB,
		maxBackups: DefaultMaxBackups,
		maxAgeDays: DefaultMaxAgeDays,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dir returns the project's log directory.
func (s *Sink) Dir(name string) string { return filepath.Join(s.root, name) }

// Path returns the project's combined-output log file path.
func (s *Sink) Path(name string) string { return filepath.Join(s.Dir(name), logFileName) }

// Open prepares the project's log directory and returns an append writer for
// the child's combined stdout+stderr. The writer survives restarts: a new
// run appends, it does not truncate.
func (s *Sink) Open(name string) (io.WriteCloser, error) {
	if err := os.MkdirAll(s.Dir(name), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &lj.Logger{
		Filename:   s.Path(name),
		MaxSize:    s.maxSizeMB,
		MaxBackups: s.maxBackups,
		MaxAge:     s.maxAgeDays,
	}, nil
}

// Remove deletes the project's log directory recursively.
func (s *Sink) Remove(name string) error {
	return os.RemoveAll(s.Dir(name))
}

// TailResult carries the tail text plus the file's total size, so callers
// with a transport limit can tell "near the limit" without re-reading.
type TailResult struct {
	Text      string
	TotalSize int64
}

const tailChunk = 32 * 1024

// Tail returns the last n lines of the project's log file, reading from the
// end in fixed-size chunks so large files are not loaded whole. A missing
// file yields ErrNoLogs; an empty file yields an empty Text with no error.
func (s *Sink) Tail(name string, n int) (TailResult, error) {
	if n <= 0 {
		n = 20
	}
	f, err := os.Open(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return TailResult{}, ErrNoLogs
		}
		return TailResult{}, fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return TailResult{}, fmt.Errorf("stat log: %w", err)
	}
	size := st.Size()
	if size == 0 {
		return TailResult{TotalSize: 0}, nil
	}

	// Scan backwards until more than n lines are buffered or BOF is reached.
	// A trailing newline terminates the last line, it does not start a new one.
	var (
		buf         []byte
		off         = size
		lines       int
		sawTrailing bool
	)
	for off > 0 && lines <= n {
		chunk := int64(tailChunk)
		if chunk > off {
			chunk = off
		}
		off -= chunk
		b := make([]byte, chunk)
		if _, err := f.ReadAt(b, off); err != nil && err != io.EOF {
			return TailResult{}, fmt.Errorf("read log: %w", err)
		}
		if len(buf) == 0 {
			sawTrailing = b[len(b)-1] == '\n'
		}
		buf = append(b, buf...)
		lines = countNewlines(buf)
		if !sawTrailing {
			lines++
		}
	}

	text := buf
	if lines > n {
		// Skip the surplus leading lines.
		drop := lines - n
		i := 0
		for ; i < len(text) && drop > 0; i++ {
			if text[i] == '\n' {
				drop--
			}
		}
		text = text[i:]
	}
	return TailResult{Text: string(text), TotalSize: size}, nil
}

func countNewlines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}
