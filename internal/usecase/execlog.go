package usecase

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// MaxExecutionLogBytes bounds the log stored on an execution.
const MaxExecutionLogBytes = 16 * 1024

const truncatedMarker = "... log truncated\n"

// executionLog accumulates a bounded, human-readable run log. It keeps the
// head of the log and marks the overflow once.
type executionLog struct {
	mu        sync.Mutex
	b         strings.Builder
	truncated bool
	now       func() time.Time
}

func newExecutionLog(now func() time.Time) *executionLog {
	return &executionLog{now: now}
}

func (l *executionLog) Printf(level, format string, args ...any) {
	line := fmt.Sprintf("%s %-5s %s\n", l.now().Format(time.TimeOnly), level, fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.truncated {
		return
	}
	if l.b.Len()+len(line) > MaxExecutionLogBytes-len(truncatedMarker) {
		l.b.WriteString(truncatedMarker)
		l.truncated = true
		return
	}
	l.b.WriteString(line)
}

func (l *executionLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}
