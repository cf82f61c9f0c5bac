// Package container provides dependency injection for the reversal watcher.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"obs/reversal-watcher/internal/bakong"
	"obs/reversal-watcher/internal/config"
	"obs/reversal-watcher/internal/export"
	"obs/reversal-watcher/internal/interpreter"
	"obs/reversal-watcher/internal/ledger"
	"obs/reversal-watcher/internal/logging"
	"obs/reversal-watcher/internal/pairing"
	"obs/reversal-watcher/internal/pipeline"
	"obs/reversal-watcher/internal/scheduler"
	"obs/reversal-watcher/internal/server"

	_ "github.com/lib/pq"
)

// Container holds all application dependencies and provides methods to
// access them. Container is immutable after creation; all fields are private
// and exposed through getters.
type Container struct {
	logger    logging.Logger
	config    *config.Config
	db        *sql.DB
	ledger    ledger.Ledger
	client    *bakong.Client
	tokens    *bakong.TokenCache
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
	server    *server.Server
	exporter  *export.Exporter
}

// NewContainer creates and wires all application dependencies.
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	// Create logger first as it's needed by other components
	logger := logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)

	c := &Container{
		logger: logger,
		config: cfg,
	}

	if err := c.initLedger(); err != nil {
		return nil, err
	}
	c.initGateway()
	if err := c.initPipeline(); err != nil {
		return nil, err
	}

	c.scheduler = scheduler.New(c.pipeline,
		time.Duration(cfg.Poll.IntervalSeconds)*time.Second, logger)
	c.server = server.New(cfg.Server.Port, c.ledger, c.scheduler, logger)
	c.exporter = export.NewExporter(c.ledger, logger)

	return c, nil
}

func (c *Container) initLedger() error {
	if c.config.DB.InMemory {
		c.logger.Warn("Using in-memory ledger, state is lost on restart")
		c.ledger = ledger.NewMemoryLedger()
		return nil
	}

	db, err := sql.Open("postgres", c.config.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.db = db
	c.ledger = ledger.NewPostgresLedger(db)
	return nil
}

func (c *Container) initGateway() {
	cfg := c.config.Bakong
	c.client = bakong.NewClient(bakong.ClientConfig{
		SOAPURL:         cfg.SOAPURL,
		APIURL:          cfg.APIURL,
		APIKey:          cfg.APIKey,
		Username:        cfg.Username,
		Password:        cfg.Password,
		SenderBIC:       cfg.SenderBIC,
		SenderAccount:   cfg.SenderAccount,
		SenderName:      cfg.SenderName,
		CounterpartyBIC: cfg.ReversingBIC,
		TransactionSize: cfg.TransactionSize,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, c.logger)

	c.tokens = bakong.NewTokenCache(cfg.AuthURL, cfg.Username, cfg.Password,
		time.Duration(cfg.TimeoutSeconds)*time.Second, c.logger)
}

func (c *Container) initPipeline() error {
	cfg := c.config

	fetcher, err := bakong.NewFetchStrategy(bakong.StrategyType(cfg.Poll.Strategy),
		c.client, c.tokens, cfg.Bakong.ReportURL, c.logger)
	if err != nil {
		return err
	}

	interp := interpreter.New(cfg.Bakong.ReversingBIC, cfg.Bakong.OriginBIC, c.logger)
	matcher := pairing.NewEngine(c.ledger, c.logger)

	c.pipeline = pipeline.New(pipeline.Config{
		PayeeCodes:          cfg.Bakong.PayeeCodes,
		DestinationBIC:      cfg.Bakong.DestinationBIC,
		DestinationAccount:  cfg.Bakong.DestinationAccount,
		FallbackDebtorBIC:   interpreter.NormalizeBIC(cfg.Bakong.ReversingBIC),
		FallbackCreditorBIC: interpreter.NormalizeBIC(cfg.Bakong.OriginBIC),
	}, fetcher, interp, matcher, c.client, c.client, c.client, c.ledger, c.logger)
	return nil
}

// EnsureSchema creates the ledger schema when running on Postgres. A no-op
// for the in-memory ledger.
func (c *Container) EnsureSchema(ctx context.Context) error {
	if pg, ok := c.ledger.(*ledger.PostgresLedger); ok {
		return pg.EnsureSchema(ctx)
	}
	return nil
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// GetLogger returns the application logger.
func (c *Container) GetLogger() logging.Logger { return c.logger }

// GetConfig returns the application configuration.
func (c *Container) GetConfig() *config.Config { return c.config }

// GetLedger returns the transaction ledger.
func (c *Container) GetLedger() ledger.Ledger { return c.ledger }

// GetPipeline returns the reversal pipeline.
func (c *Container) GetPipeline() *pipeline.Pipeline { return c.pipeline }

// GetScheduler returns the run scheduler.
func (c *Container) GetScheduler() *scheduler.Scheduler { return c.scheduler }

// GetServer returns the admin HTTP server.
func (c *Container) GetServer() *server.Server { return c.server }

// GetExporter returns the CSV exporter.
func (c *Container) GetExporter() *export.Exporter { return c.exporter }

// GetClient returns the Bakong gateway client.
func (c *Container) GetClient() *bakong.Client { return c.client }
