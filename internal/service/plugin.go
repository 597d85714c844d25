package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"sqlplugin/internal/config"
	"sqlplugin/internal/dbclient"
	"sqlplugin/internal/domain"
	"sqlplugin/internal/logging"
	"sqlplugin/internal/query"
)

// ─────────────────────────────────────────────────────────────
// SQL lookup plugin: registry, dispatcher and lifecycle
// ─────────────────────────────────────────────────────────────

// Health component names.
const (
	ComponentDatabase      = "database"
	ComponentConfiguration = "configuration"
)

// Health metric names.
const (
	MetricOpenConnections = "pool.open-connections"
	metricLookupPrefix    = "lookups."
)

// Failure messages returned to callers.
const (
	MessageShuttingDown   = "Plugin is shutting down"
	MessageNotInitialised = "Plugin is not initialised"
	MessageMissingQueryID = "Missing query identifier parameter '" + domain.QueryIDParameter + "'"
	MessageMissingKey     = "Missing object identifier"
)

var (
	// ErrUnsupportedOperation is returned for create, update and delete requests.
	ErrUnsupportedOperation = errors.New("operation is not supported")
	// ErrBlankPassword is returned when the database password decrypts to nothing.
	ErrBlankPassword = errors.New("database password is blank")
)

// Pool is what the plugin needs from a connection pool.
type Pool interface {
	query.ConnSource
	dbclient.Validator
	Session() query.Session
	OpenConnections() int
	Close() error
}

// Opener builds a pool from parsed settings and the clear password.
type Opener func(settings config.DatabaseSettings, password, appName string) (Pool, error)

// OpenSQLPool is the default Opener.
func OpenSQLPool(settings config.DatabaseSettings, password, appName string) (Pool, error) {
	pool, err := dbclient.Open(settings, password, appName)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// serving is everything a lookup needs once initialisation has succeeded.
type serving struct {
	registry *query.Registry
	executor *query.Executor
	pool     Pool
}

// Plugin answers keyed single-record lookups against a SQL database.
type Plugin struct {
	id          string
	description string
	props       config.Properties
	logger      *log.Logger
	opener      Opener
	newID       func() string
	keepalive   bool

	mu         sync.Mutex
	container  domain.Container
	doneConfig bool
	initErr    error
	build      config.BuildInfo
	pool       Pool
	pinger     *dbclient.Keepalive

	state    atomic.Pointer[serving]
	inflight inflightGuard
	health   *healthTracker
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger sets the plugin logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Plugin) { p.logger = logging.OrDiscard(logger) }
}

// WithOpener replaces how the connection pool is built.
func WithOpener(opener Opener) Option {
	return func(p *Plugin) { p.opener = opener }
}

// WithRequestIDs replaces the generator used for requests that carry no id.
func WithRequestIDs(newID func() string) Option {
	return func(p *Plugin) { p.newID = newID }
}

// WithoutKeepalive disables the periodic pool check.
func WithoutKeepalive() Option {
	return func(p *Plugin) { p.keepalive = false }
}

// NewPlugin creates an uninitialised plugin over props.
func NewPlugin(id, description string, props config.Properties, opts ...Option) *Plugin {
	p := &Plugin{
		id:          id,
		description: description,
		props:       props,
		logger:      logging.Discard(),
		opener:      OpenSQLPool,
		newID:       uuid.NewString,
		keepalive:   true,
		health:      newHealthTracker(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("plugin", id)
	return p
}

func (p *Plugin) ID() string          { return p.id }
func (p *Plugin) Description() string { return p.description }

// BuildInfo is available once Initialize has run.
func (p *Plugin) BuildInfo() config.BuildInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.build
}

// ValidOperations lists the operations the plugin accepts.
func (p *Plugin) ValidOperations() []domain.Operation {
	return []domain.Operation{domain.OperationRead}
}

// QueryIDs lists the registered query ids, or nil before initialisation.
func (p *Plugin) QueryIDs() []string {
	if s := p.state.Load(); s != nil {
		return s.registry.IDs()
	}
	return nil
}

// Query returns the registered definition for id.
func (p *Plugin) Query(id string) (*query.Definition, bool) {
	if s := p.state.Load(); s != nil {
		return s.registry.Lookup(id)
	}
	return nil, false
}

// ── Lifecycle ──────────────────────────────────────────────

// SetContainer attaches the host. The first call initialises the plugin;
// later calls only replace the container.
func (p *Plugin) SetContainer(ctx context.Context, c domain.Container) error {
	p.mu.Lock()
	p.container = c
	p.mu.Unlock()

	p.health.setPublisher(func(h domain.HealthResult) { c.SetPluginHealth(p.id, h) })
	return p.Initialize(ctx)
}

// Initialize builds and validates the pool, then compiles every configured query.
// It runs once; later calls return the first outcome.
func (p *Plugin) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doneConfig {
		return p.initErr
	}
	p.doneConfig = true
	if p.inflight.isClosed() {
		p.initErr = errors.New(MessageShuttingDown)
		return p.initErr
	}
	p.initErr = p.initializeLocked(ctx)
	return p.initErr
}

func (p *Plugin) initializeLocked(ctx context.Context) error {
	root := p.props.Root()
	p.build = config.ParseBuildInfo(root)
	p.logger.Info("Starting plugin", "artifact", p.build.Artifact, "version", p.build.Version)

	settings, err := config.ParseDatabaseSettings(root)
	if err != nil {
		p.fail(ComponentDatabase, "Required database configuration parameters were not found", err)
		return err
	}

	password := settings.Password
	if p.container != nil {
		password, err = p.container.Decrypt(settings.Password)
		if err != nil {
			err = fmt.Errorf("decrypt database password: %w", err)
			p.fail(ComponentDatabase, "Unable to decrypt database password", err)
			return err
		}
	}
	if strings.TrimSpace(password) == "" {
		p.fail(ComponentDatabase, "Database password is blank", ErrBlankPassword)
		return ErrBlankPassword
	}

	pool, err := p.opener(settings, password, p.id)
	if err != nil {
		err = fmt.Errorf("open pool: %w", err)
		p.fail(ComponentDatabase, "Unable to create connection pool", err)
		return err
	}
	if err := pool.Validate(ctx); err != nil {
		pool.Close()
		err = fmt.Errorf("validate pool: %w", err)
		p.fail(ComponentDatabase, "Unable to connect to database", err)
		return err
	}
	p.pool = pool
	p.logger.Info("Connected to database", "min-size", settings.Pool.MinSize, "max-size", settings.Pool.MaxSize)

	registry, err := query.NewCompiler(p.logger).CompileAll(root)
	if err != nil {
		pool.Close()
		p.pool = nil
		p.fail(ComponentConfiguration, "Invalid query configuration", err)
		return err
	}

	executor := query.NewExecutor(pool,
		query.WithLogger(p.logger),
		query.WithAcquireTimeout(settings.Pool.ConnectionTimeout),
		query.WithSession(pool.Session()),
	)

	// The closed check shares the publish lock with Shutdown, so HEALTHY can never
	// follow the shutting-down push.
	healthy := false
	p.health.update(func(s *healthState) bool {
		if p.inflight.isClosed() {
			return false
		}
		s.setComponent(ComponentDatabase, domain.HealthHealthy, "Connected")
		s.setComponent(ComponentConfiguration, domain.HealthHealthy, fmt.Sprintf("%d queries registered", registry.Len()))
		s.overall = domain.HealthStatus{State: domain.HealthHealthy}
		healthy = true
		return true
	})
	if !healthy {
		pool.Close()
		p.pool = nil
		p.logger.Warn("Shut down during initialisation")
		return errors.New(MessageShuttingDown)
	}
	p.state.Store(&serving{registry: registry, executor: executor, pool: pool})
	p.health.setMetric(MetricOpenConnections, pool.OpenConnections())

	if p.keepalive {
		p.pinger = dbclient.NewKeepalive(pool, settings.Pool.KeepaliveTime, p.onKeepalive, p.logger)
		if err := p.pinger.Start(); err != nil {
			p.logger.Warn("Keepalive not scheduled", "err", err)
		}
	}
	p.logger.Info("Plugin initialised", "queries", registry.Len())
	return nil
}

func (p *Plugin) fail(component, comment string, err error) {
	p.logger.Error(comment, "err", err)
	p.health.update(func(s *healthState) bool {
		s.setComponent(component, domain.HealthFailed, comment)
		s.overall = domain.HealthStatus{State: domain.HealthFailed, Comment: err.Error()}
		return true
	})
}

func (p *Plugin) onKeepalive(err error) {
	if p.inflight.isClosed() {
		return
	}
	if s := p.state.Load(); s != nil {
		p.health.setMetric(MetricOpenConnections, s.pool.OpenConnections())
	}
	if err != nil {
		p.SetComponentHealth(ComponentDatabase, domain.HealthFailed, err.Error())
		return
	}
	p.SetComponentHealth(ComponentDatabase, domain.HealthHealthy, "Connected")
}

// SetComponentHealth records a component's state and derives the overall state
// from the worst component. Unchanged states are not pushed again.
func (p *Plugin) SetComponentHealth(component string, state domain.HealthState, comment string) {
	p.health.update(func(s *healthState) bool {
		if cur, ok := s.components[component]; ok && cur.State == state && cur.Comment == comment {
			return false
		}
		s.setComponent(component, state, comment)
		s.overall = s.worst()
		return true
	})
}

// Health returns the current health picture.
func (p *Plugin) Health() domain.HealthResult {
	return p.health.snapshot()
}

// Shutdown stops accepting lookups, waits for running ones (bounded by ctx),
// publishes the terminal health state and closes the pool.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if !p.inflight.Close() {
		return nil
	}
	p.logger.Info("Plugin shutting down")
	p.health.update(func(s *healthState) bool {
		s.setComponent(ComponentDatabase, domain.HealthFailed, "Plugin shutting down")
		s.overall = domain.HealthStatus{State: domain.HealthFailed, Comment: "Plugin shutting down"}
		return true
	})

	waitErr := p.inflight.WaitAll(ctx)
	if waitErr != nil {
		p.logger.Warn("Lookups still running at shutdown", "active", p.inflight.Active())
	}

	p.mu.Lock()
	pinger, pool := p.pinger, p.pool
	p.pinger, p.pool = nil, nil
	p.mu.Unlock()

	if pinger != nil {
		pinger.Stop(ctx)
	}
	p.state.Store(nil)
	if pool != nil {
		if err := pool.Close(); err != nil {
			return fmt.Errorf("close pool: %w", err)
		}
	}
	return waitErr
}

// ── Requests ───────────────────────────────────────────────

// Dispatch routes a request by kind. Only reads are supported.
func (p *Plugin) Dispatch(ctx context.Context, req domain.Request) (domain.Response, error) {
	switch r := req.(type) {
	case domain.ReadRequest:
		return p.Read(ctx, r), nil
	case *domain.ReadRequest:
		return p.Read(ctx, *r), nil
	case domain.CreateRequest:
		return nil, p.Create(ctx, r)
	case domain.UpdateRequest:
		return nil, p.Update(ctx, r)
	case domain.DeleteRequest:
		return nil, p.Delete(ctx, r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, req.Operation())
}

// Create is never supported.
func (p *Plugin) Create(context.Context, domain.CreateRequest) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOperation, domain.OperationCreate)
}

// Update is never supported.
func (p *Plugin) Update(context.Context, domain.UpdateRequest) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOperation, domain.OperationUpdate)
}

// Delete is never supported.
func (p *Plugin) Delete(context.Context, domain.DeleteRequest) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOperation, domain.OperationDelete)
}

// Read validates the request and performs the lookup. Requests that fail
// validation are answered without touching the database.
func (p *Plugin) Read(ctx context.Context, req domain.ReadRequest) domain.ReadResponse {
	if req.RequestID == "" {
		req.RequestID = p.newID()
	}
	resp := domain.ReadResponse{RequestID: req.RequestID}

	if !p.inflight.Enter() {
		resp.LookupResult = domain.Failed(MessageShuttingDown)
		return resp
	}
	defer p.inflight.Leave()

	resp.LookupResult = p.lookup(ctx, req)
	p.health.incMetric(metricLookupPrefix + string(resp.Status))
	return resp
}

func (p *Plugin) lookup(ctx context.Context, req domain.ReadRequest) domain.LookupResult {
	logger := p.logger.With("request", req.RequestID)
	s := p.state.Load()
	if s == nil {
		return domain.Failed(MessageNotInitialised)
	}
	queryID, ok := req.Parameter(domain.QueryIDParameter)
	if !ok || strings.TrimSpace(queryID) == "" {
		logger.Warn(MessageMissingQueryID)
		return domain.Failed(MessageMissingQueryID)
	}
	def, ok := s.registry.Lookup(queryID)
	if !ok {
		msg := fmt.Sprintf("Unknown query %q", queryID)
		logger.Warn(msg)
		return domain.Failed(msg)
	}
	if strings.TrimSpace(req.ObjectID) == "" {
		logger.Warn(MessageMissingKey, "query", queryID)
		return domain.Failed(MessageMissingKey)
	}
	key, err := def.KeyType.ParseKey(req.ObjectID)
	if err != nil {
		logger.Warn("Invalid key", "query", queryID, "err", err)
		return domain.Failed(err.Error())
	}
	return s.executor.Execute(ctx, def, key)
}
