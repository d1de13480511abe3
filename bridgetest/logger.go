// Copyright © 2018 The ELPS authors

package bridgetest

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// Logger forwards complete lines to t.Log. Lines written after the test
// finished are discarded, so goroutines that outlive a test can keep
// logging.
type Logger struct {
	t testing.TB

	mu     sync.Mutex
	buf    []byte
	closed bool
}

var _ io.Writer = (*Logger)(nil)

func NewLogger(t testing.TB) *Logger {
	log := &Logger{
		t: t,
	}
	t.Cleanup(log.close)
	return log
}

// NewLogrus returns a debug-level logrus logger writing to t.Log.
func NewLogrus(t testing.TB) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(NewLogger(t))
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return log
}

func (log *Logger) Write(b []byte) (int, error) {
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.closed {
		return len(b), nil
	}
	log.buf = append(log.buf, b...)
	for {
		i := bytes.IndexByte(log.buf, '\n')
		if i < 0 {
			return len(b), nil
		}
		log.t.Log(string(log.buf[:i])) // slice does not include \n
		log.buf = log.buf[i+1:]
	}
}

func (log *Logger) Flush() {
	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.buf) == 0 || log.closed {
		return
	}
	log.t.Log(string(log.buf))
	log.buf = nil
}

func (log *Logger) close() {
	log.Flush()
	log.mu.Lock()
	log.closed = true
	log.mu.Unlock()
}
