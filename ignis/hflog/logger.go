package hflog

// Logger is the hot-path append API: one per Ring, shared by every scope.
// Grounded on the teacher's logger/zap scoped-constructor shape
// (zap.New(scope) returning a reusable Logger) generalized to the
// allocation-free append this spec requires.
type Logger struct {
	ring *Ring
}

// New returns a Logger appending into ring.
func New(ring *Ring) *Logger { return &Logger{ring: ring} }

// ScopeLogger is a Logger bound to one pre-encoded Scope, returned by
// Logger.Scope and safe to retain for the process lifetime (spec §4.9).
type ScopeLogger struct {
	log   *Logger
	scope *Scope
}

// Scope returns a ScopeLogger for name, resolving/caching the Scope via
// the process-wide scope cache.
func (l *Logger) Scope(name string) ScopeLogger {
	return ScopeLogger{log: l, scope: GetScope(name)}
}

func (s ScopeLogger) append(level Level, msg string) uint64 {
	msgBytes, msgLen := EncodeMessage(msg)
	return s.log.ring.Append(level, s.scope.bytes, s.scope.n, msgBytes, msgLen)
}

func (s ScopeLogger) Debug(msg string) uint64 { return s.append(LevelDebug, msg) }
func (s ScopeLogger) Info(msg string) uint64  { return s.append(LevelInfo, msg) }
func (s ScopeLogger) Warn(msg string) uint64  { return s.append(LevelWarn, msg) }
func (s ScopeLogger) Error(msg string) uint64 { return s.append(LevelError, msg) }
