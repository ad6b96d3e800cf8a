// Package audit implements the query pipeline's append-only logging:
// one always-on compliance record per request and, when enabled, one
// verbose debug record, each written as newline-delimited JSON to a
// size-rotated file.
package audit

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/veritas-legal/clausecore/internal/model"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures both rotating streams.
type Config struct {
	CompliancePath    string
	ComplianceMaxMB   int
	ComplianceBackups int

	DebugPath    string
	DebugMaxMB   int
	DebugBackups int

	QueueSize int
}

// Sink is a single serialized writer goroutine per stream with a
// bounded queue. Back-pressure policy: if the debug queue is full, the
// debug record is dropped; the compliance queue never drops — a full
// queue degrades to a synchronous, blocking write on the caller's
// goroutine.
type Sink struct {
	complianceWriter *lumberjack.Logger
	debugWriter      *lumberjack.Logger

	complianceCh chan model.ComplianceRecord
	debugCh      chan model.DebugRecord

	debugEnabled bool

	droppedDebug   atomic.Int64
	complianceFail atomic.Int64
	degraded       atomic.Bool

	wg sync.WaitGroup
}

// New starts the writer goroutines. Call Close to drain and stop them.
func New(cfg Config) *Sink {
	s := &Sink{
		complianceWriter: &lumberjack.Logger{
			Filename:   cfg.CompliancePath,
			MaxSize:    cfg.ComplianceMaxMB,
			MaxBackups: cfg.ComplianceBackups,
			Compress:   false,
		},
		complianceCh: make(chan model.ComplianceRecord, cfg.QueueSize),
	}

	if cfg.DebugPath != "" {
		s.debugWriter = &lumberjack.Logger{
			Filename:   cfg.DebugPath,
			MaxSize:    cfg.DebugMaxMB,
			MaxBackups: cfg.DebugBackups,
			Compress:   false,
		}
		s.debugCh = make(chan model.DebugRecord, cfg.QueueSize)
		s.debugEnabled = true
	}

	s.wg.Add(1)
	go s.runCompliance()
	if s.debugEnabled {
		s.wg.Add(1)
		go s.runDebug()
	}

	return s
}

// WriteCompliance enqueues the always-on record. On a full queue it
// blocks, writing synchronously rather than dropping.
func (s *Sink) WriteCompliance(record model.ComplianceRecord) {
	select {
	case s.complianceCh <- record:
	default:
		s.writeComplianceLine(record)
	}
}

// WriteDebug enqueues the opt-in verbose record. On a full queue the
// record is dropped and a counter incremented.
func (s *Sink) WriteDebug(record model.DebugRecord) {
	if !s.debugEnabled {
		return
	}
	select {
	case s.debugCh <- record:
	default:
		s.droppedDebug.Add(1)
		slog.Warn("[DEBUG-AUDIT] debug queue full, dropping record", "query_id", record.QueryID)
	}
}

// Close drains both channels and stops the writer goroutines.
func (s *Sink) Close() error {
	close(s.complianceCh)
	if s.debugEnabled {
		close(s.debugCh)
	}
	s.wg.Wait()

	if err := s.complianceWriter.Close(); err != nil {
		return err
	}
	if s.debugEnabled {
		return s.debugWriter.Close()
	}
	return nil
}

// Degraded reports whether persistent compliance-write failures have
// forced the server into a state that should reject new queries (§5).
func (s *Sink) Degraded() bool { return s.degraded.Load() }

// DroppedDebugCount returns how many debug records were dropped under
// back-pressure since startup.
func (s *Sink) DroppedDebugCount() int64 { return s.droppedDebug.Load() }

func (s *Sink) runCompliance() {
	defer s.wg.Done()
	for record := range s.complianceCh {
		s.writeComplianceLine(record)
	}
}

func (s *Sink) writeComplianceLine(record model.ComplianceRecord) {
	line, err := json.Marshal(record)
	if err != nil {
		slog.Error("[DEBUG-AUDIT] marshal compliance record failed", "error", err, "query_id", record.QueryID)
		return
	}
	line = append(line, '\n')
	if _, err := s.complianceWriter.Write(line); err != nil {
		n := s.complianceFail.Add(1)
		slog.Error("[DEBUG-AUDIT] compliance write failed", "error", err, "consecutive_failures", n)
		if n >= complianceFailureThreshold {
			s.degraded.Store(true)
		}
		return
	}
	s.complianceFail.Store(0)
	s.degraded.Store(false)
}

func (s *Sink) runDebug() {
	defer s.wg.Done()
	for record := range s.debugCh {
		line, err := json.Marshal(record)
		if err != nil {
			slog.Error("[DEBUG-AUDIT] marshal debug record failed", "error", err, "query_id", record.QueryID)
			continue
		}
		line = append(line, '\n')
		if _, err := s.debugWriter.Write(line); err != nil {
			slog.Warn("[DEBUG-AUDIT] debug write failed", "error", err)
		}
	}
}

// complianceFailureThreshold is the number of consecutive write
// failures on the compliance stream that trip the degraded-mode flag.
const complianceFailureThreshold = 5
