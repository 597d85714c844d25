package query

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"sqlplugin/internal/domain"
	"sqlplugin/internal/logging"
)

// MaxRows caps the rows read per lookup. A second row is enough to prove the key is
// not unique.
const MaxRows = 2

// Messages reported for the non-success cardinality outcomes.
const (
	MessageRecordNotFound  = "Record was not found"
	MessageMultipleRecords = "More than one record was found"
)

// ErrKeyTypeMismatch is a precondition failure: the key does not match the query's key type.
var ErrKeyTypeMismatch = errors.New("key type does not match query search data type")

// Stage names the scope a lookup failed in.
type Stage string

const (
	StageConnection Stage = "connection"
	StageStatement  Stage = "statement"
	StageResult     Stage = "result"
)

// StageError wraps a failure with the scope and step it happened in.
type StageError struct {
	Stage Stage
	Op    string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Stage, e.Op, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ConnSource hands out dedicated pooled connections. *sql.DB satisfies it.
type ConnSource interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Session is how a lookup prepares the dedicated connection it runs on.
type Session struct {
	// ReadOnly asks the driver for a read-only transaction. The lookup
	// transaction is rolled back either way.
	ReadOnly bool
	// Setup runs on the connection before the transaction begins and Reset
	// after it ends.
	Setup []string
	Reset []string
}

// DefaultSession is used unless WithSession says otherwise.
var DefaultSession = Session{ReadOnly: true}

// Executor runs compiled definitions against a connection source.
type Executor struct {
	source         ConnSource
	logger         *log.Logger
	acquireTimeout time.Duration
	session        Session
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithAcquireTimeout bounds how long Execute waits for a pooled connection.
func WithAcquireTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.acquireTimeout = d }
}

// WithLogger sets the executor's logger.
func WithLogger(logger *log.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logging.OrDiscard(logger) }
}

// WithSession sets how each lookup prepares its connection.
func WithSession(s Session) ExecutorOption {
	return func(e *Executor) { e.session = s }
}

// NewExecutor returns an executor drawing connections from source.
func NewExecutor(source ConnSource, opts ...ExecutorOption) *Executor {
	e := &Executor{source: source, logger: logging.Discard(), session: DefaultSession}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs one bounded lookup. It never retries, and every failure is reported
// as a FAILURE result rather than an error.
func (e *Executor) Execute(ctx context.Context, def *Definition, key Key) domain.LookupResult {
	logger := e.logger.With("query", def.ID, "key", key.String())

	if !key.Type().Is(def.KeyType) {
		err := fmt.Errorf("%w: got %s, want %s", ErrKeyTypeMismatch, key.Type(), def.KeyType)
		logger.Error("Rejected lookup", "err", err)
		return domain.Failed(err.Error())
	}

	logger.Info("Performing lookup")
	result, err := e.lookup(ctx, def, key)
	if err != nil {
		logger.Error("Lookup failed", "err", err)
		return domain.Failed(err.Error())
	}
	switch result.Status {
	case domain.StatusRecordNotFound, domain.StatusMultipleRecords:
		logger.Warn(result.ErrorMessage)
	default:
		logger.Debug("Lookup succeeded", "fields", len(result.ObjectDetails))
	}
	return result
}

func (e *Executor) lookup(ctx context.Context, def *Definition, key Key) (domain.LookupResult, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return domain.LookupResult{}, &StageError{Stage: StageConnection, Op: "acquire", Err: err}
	}
	defer conn.Close()

	if err := e.setup(ctx, conn); err != nil {
		return domain.LookupResult{}, &StageError{Stage: StageConnection, Op: "session setup", Err: err}
	}
	defer e.reset(ctx, conn)

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: e.session.ReadOnly})
	if err != nil {
		return domain.LookupResult{}, &StageError{Stage: StageConnection, Op: "begin", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, def.SQL)
	if err != nil {
		return domain.LookupResult{}, &StageError{Stage: StageStatement, Op: "prepare", Err: err}
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, key.Value())
	if err != nil {
		return domain.LookupResult{}, &StageError{Stage: StageStatement, Op: "execute", Err: err}
	}
	defer rows.Close()

	columns, values, count, err := readBounded(rows)
	if err != nil {
		return domain.LookupResult{}, &StageError{Stage: StageResult, Op: "read", Err: err}
	}
	switch count {
	case 0:
		return domain.LookupResult{Status: domain.StatusRecordNotFound, ErrorMessage: MessageRecordNotFound}, nil
	case MaxRows:
		return domain.LookupResult{Status: domain.StatusMultipleRecords, ErrorMessage: MessageMultipleRecords}, nil
	}

	details, err := mapColumns(def, columns, values)
	if err != nil {
		return domain.LookupResult{}, &StageError{Stage: StageResult, Op: "convert", Err: err}
	}
	return domain.LookupResult{
		Status:        domain.StatusSuccess,
		ObjectID:      key.String(),
		ObjectDetails: details,
	}, nil
}

func (e *Executor) acquire(ctx context.Context) (*sql.Conn, error) {
	if e.acquireTimeout <= 0 {
		return e.source.Conn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, e.acquireTimeout)
	defer cancel()
	return e.source.Conn(actx)
}

func (e *Executor) setup(ctx context.Context, conn *sql.Conn) error {
	for _, q := range e.session.Setup {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			discard(conn)
			return err
		}
	}
	return nil
}

// reset undoes the session setup. A connection that cannot be reset is dropped
// instead of going back to the pool.
func (e *Executor) reset(ctx context.Context, conn *sql.Conn) {
	ctx = context.WithoutCancel(ctx)
	for _, q := range e.session.Reset {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			e.logger.Warn("Dropping connection, session reset failed", "err", err)
			discard(conn)
			return
		}
	}
}

func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
}

// readBounded scans the first row and counts up to MaxRows rows.
func readBounded(rows *sql.Rows) ([]string, []any, int, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, 0, err
	}
	values := make([]any, len(columns))
	count := 0
	for count < MaxRows && rows.Next() {
		if count == 0 {
			ptrs := make([]any, len(values))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return nil, nil, 0, err
			}
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, nil, 0, err
	}
	return columns, values, count, nil
}

// mapColumns extracts every configured column from the row, matching names without
// regard to case.
func mapColumns(def *Definition, columns []string, values []any) (map[string]string, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[strings.ToLower(c)] = i
	}
	details := make(map[string]string, len(def.columns))
	for _, col := range def.columns {
		i, ok := index[strings.ToLower(col.Name)]
		if !ok {
			return nil, fmt.Errorf("column %q not found in result set", col.Name)
		}
		raw, err := col.DataType.Extract(values[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		details[col.OutputField] = col.Substitute(raw)
	}
	return details, nil
}
