// cmd/container.go
//
// Composition root. Owns infrastructure (Postgres, Redis, KV store, metrics)
// and composes the IAM and pairing containers.
package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/identity/pkg/asyncx"
	"github.com/Abraxas-365/identity/pkg/config"
	"github.com/Abraxas-365/identity/pkg/iam/auth"
	"github.com/Abraxas-365/identity/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/identity/pkg/iam/iamcontainer"
	"github.com/Abraxas-365/identity/pkg/kvstore"
	"github.com/Abraxas-365/identity/pkg/kvstore/kvmemory"
	"github.com/Abraxas-365/identity/pkg/kvstore/kvredis"
	"github.com/Abraxas-365/identity/pkg/logx"
	"github.com/Abraxas-365/identity/pkg/metrx"
	"github.com/Abraxas-365/identity/pkg/pairing/pairingcontainer"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
	probeTimeout    = 2 * time.Second
)

// Container holds shared infrastructure and the composed module containers.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB       *sqlx.DB
	Redis    *redis.Client
	KV       kvstore.Store
	memoryKV *kvmemory.Store
	Metrics  *metrx.Metrics
	Audit    auth.AuditService

	// Bounded-context containers
	Pairing *pairingcontainer.Container
	IAM     *iamcontainer.Container
}

func NewContainer(ctx context.Context, cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure(ctx)
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure - Postgres, KV store, metrics
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure(ctx context.Context) {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Database
	db, err := asyncx.RetryWithBackoff(ctx, connectAttempts, connectBackoff, retryLogger("database"),
		func(ctx context.Context) (*sqlx.DB, error) {
			return sqlx.ConnectContext(ctx, "postgres", c.Config.Database.DSN())
		})
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	// 2. Key-value store
	c.initKV(ctx)

	// 3. Metrics and audit trail
	c.Metrics = metrx.New()
	c.Audit = authinfra.NewLogxAuditService()

	logx.Info("✅ Infrastructure initialized")
}

func (c *Container) initKV(ctx context.Context) {
	switch c.Config.KV.Mode {
	case "redis":
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Address(),
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		_, err := asyncx.RetryWithBackoff(ctx, connectAttempts, connectBackoff, retryLogger("redis"),
			func(ctx context.Context) (string, error) {
				return c.Redis.Ping(ctx).Result()
			})
		if err != nil {
			logx.Fatalf("Failed to connect to Redis: %v (required with KV_MODE=redis)", err)
		}
		c.KV = kvredis.New(c.Redis, c.Config.KV.Prefix)
		logx.Infof("  ✅ Redis key-value store connected (prefix: %q)", c.Config.KV.Prefix)

	case "memory":
		c.memoryKV = kvmemory.New()
		c.KV = c.memoryKV
		logx.Warn("  ⚠️  Using in-memory key-value store (single instance only)")

	default:
		logx.Fatalf("Unknown KV_MODE: %s (use 'redis' or 'memory')", c.Config.KV.Mode)
	}
}

func retryLogger(component string) func(int, error) {
	return func(attempt int, err error) {
		logx.WithFields(logx.Fields{
			"component": component,
			"attempt":   attempt,
		}).WithError(err).Warn("Connection attempt failed, retrying")
	}
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	c.Pairing = pairingcontainer.New(pairingcontainer.Deps{
		KV:      c.KV,
		Cfg:     c.Config,
		Metrics: c.Metrics,
		Audit:   c.Audit,
	})

	c.IAM = iamcontainer.New(iamcontainer.Deps{
		DB:       c.DB,
		KV:       c.KV,
		Cfg:      c.Config,
		Metrics:  c.Metrics,
		Audit:    c.Audit,
		Notifier: c.Pairing.Coordinator,
		Gate:     c.Pairing.Gate,
	})
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting background services...")

	c.Pairing.Start(ctx)
	logx.Info("  ✅ Registration token scheduler started")

	if c.memoryKV != nil {
		go c.memoryKV.StartSweeper(ctx, c.Config.KV.SweepInterval)
		logx.Info("  ✅ In-memory key-value sweeper started")
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Probe checks every backing service concurrently. The map holds an error
// message per unhealthy dependency.
func (c *Container) Probe(ctx context.Context) map[string]string {
	names := []string{"db"}
	probes := []func(context.Context) (struct{}, error){
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.DB.PingContext(ctx)
		},
	}
	if p, ok := c.KV.(pinger); ok {
		names = append(names, "kv")
		probes = append(probes, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.Ping(ctx)
		})
	}

	timed := make([]func(context.Context) (struct{}, error), len(probes))
	for i, probe := range probes {
		timed[i] = func(ctx context.Context) (struct{}, error) {
			return asyncx.WithTimeout(ctx, probeTimeout, probe)
		}
	}

	failures := make(map[string]string)
	for i, r := range asyncx.AllSettled(ctx, timed...) {
		if !r.OK() {
			failures[names[i]] = r.Err.Error()
		}
	}
	return failures
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
