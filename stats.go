package ociadapt

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/DamienR91/ociadapt/oci"
)

// ConnStats holds execution statistics for one instrumented connection.
type ConnStats struct {
	// Prepares is the number of statements prepared.
	Prepares atomic.Int64
	// Execs is the number of statement executions.
	Execs atomic.Int64
	// Fetches is the number of rows fetched.
	Fetches atomic.Int64
	// ExecDuration is the total time spent in native execution.
	ExecDuration atomic.Int64 // nanoseconds
	// SlowExecs is the count of executions exceeding the slow threshold.
	SlowExecs atomic.Int64
	// Errors is the count of failed prepares and executions.
	Errors atomic.Int64
}

// Snapshot returns a point-in-time copy of the statistics.
func (s *ConnStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Prepares:     s.Prepares.Load(),
		Execs:        s.Execs.Load(),
		Fetches:      s.Fetches.Load(),
		ExecDuration: time.Duration(s.ExecDuration.Load()),
		SlowExecs:    s.SlowExecs.Load(),
		Errors:       s.Errors.Load(),
	}
}

// StatsSnapshot is a point-in-time view of ConnStats.
type StatsSnapshot struct {
	Prepares     int64
	Execs        int64
	Fetches      int64
	ExecDuration time.Duration
	SlowExecs    int64
	Errors       int64
}

// String returns a human-readable summary.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"prepares=%d execs=%d fetches=%d exec_duration=%s slow=%d errors=%d",
		s.Prepares, s.Execs, s.Fetches, s.ExecDuration, s.SlowExecs, s.Errors,
	)
}

// SlowExecHook is called when a statement execution exceeds the slow
// threshold. id identifies the statement across its lifetime.
type SlowExecHook func(id, text string, duration time.Duration)

// StatsConn wraps an oci.Conn with statistics collection and slow-execution
// detection for every statement prepared through it.
type StatsConn struct {
	oci.Conn
	stats         *ConnStats
	slowThreshold time.Duration
	slowHook      SlowExecHook
	mu            sync.RWMutex
}

// StatsOption configures a StatsConn.
type StatsOption func(*StatsConn)

// WithSlowThreshold sets the slow-execution threshold. Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsConn) { s.slowThreshold = d }
}

// WithSlowExecHook sets a callback for slow executions.
func WithSlowExecHook(hook SlowExecHook) StatsOption {
	return func(s *StatsConn) { s.slowHook = hook }
}

// WithSlowExecLog logs slow executions through slog. Convenience wrapper
// around WithSlowExecHook.
func WithSlowExecLog() StatsOption {
	return WithSlowExecHook(func(id, text string, duration time.Duration) {
		slog.Warn("slow statement execution", "statement_id", id, "duration", duration, "text", text)
	})
}

// NewStatsConn wraps conn with statistics collection.
func NewStatsConn(conn oci.Conn, opts ...StatsOption) *StatsConn {
	s := &StatsConn{
		Conn:          conn,
		stats:         &ConnStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the connection's statistics.
func (c *StatsConn) Stats() *ConnStats { return c.stats }

// Prepare implements oci.Conn.
func (c *StatsConn) Prepare(text string) (oci.Stmt, error) {
	st, err := c.Conn.Prepare(text)
	if err != nil {
		c.stats.Errors.Add(1)
		return nil, err
	}
	c.stats.Prepares.Add(1)
	return &statsStmt{Stmt: st, conn: c, id: uuid.NewString(), text: text}, nil
}

func (c *StatsConn) record(id, text string, start time.Time, err error) {
	duration := time.Since(start)
	c.stats.Execs.Add(1)
	c.stats.ExecDuration.Add(int64(duration))
	if err != nil {
		c.stats.Errors.Add(1)
	}
	c.mu.RLock()
	threshold, hook := c.slowThreshold, c.slowHook
	c.mu.RUnlock()
	if duration > threshold {
		c.stats.SlowExecs.Add(1)
		if hook != nil {
			hook(id, text, duration)
		}
	}
}

// statsStmt counts executions and fetches on behalf of its StatsConn.
type statsStmt struct {
	oci.Stmt
	conn *StatsConn
	id   string
	text string
}

// Exec implements oci.Stmt.
func (s *statsStmt) Exec(mode oci.ExecMode) error {
	start := time.Now()
	err := s.Stmt.Exec(mode)
	s.conn.record(s.id, s.text, start, err)
	return err
}

// Fetch implements oci.Stmt.
func (s *statsStmt) Fetch(shape oci.RowShape) (oci.Row, bool, error) {
	row, ok, err := s.Stmt.Fetch(shape)
	if ok {
		s.conn.stats.Fetches.Add(1)
	}
	return row, ok, err
}

var _ oci.Conn = (*StatsConn)(nil)
