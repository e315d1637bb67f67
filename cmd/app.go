package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	orchestratorx "github.com/tanpawarit/chative-bank-onboarding/agent/agents/orchestrator"
	"github.com/tanpawarit/chative-bank-onboarding/agent/agents/specialist"
	licensex "github.com/tanpawarit/chative-bank-onboarding/agent/license"
	llmx "github.com/tanpawarit/chative-bank-onboarding/agent/llm"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
	toolx "github.com/tanpawarit/chative-bank-onboarding/agent/tool"
	bankapix "github.com/tanpawarit/chative-bank-onboarding/pkg/bankapi"
	configx "github.com/tanpawarit/chative-bank-onboarding/pkg/config"
	metricsx "github.com/tanpawarit/chative-bank-onboarding/pkg/metrics"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"

	bankModeLocal  = "local"
	bankModeRemote = "remote"
)

type AppConfig struct {
	SessionStore         string `envconfig:"SESSION_STORE" default:"memory"`
	LedgerStore          string `envconfig:"LEDGER_STORE" default:"memory"`
	BankMode             string `envconfig:"BANK_MODE" default:"local"`
	WorkflowDefaultsFile string `envconfig:"WORKFLOW_DEFAULTS_FILE"`
}

// app holds the wired workflow and every resource that needs closing.
type app struct {
	orchestrator *orchestratorx.Orchestrator
	metrics      *metricsx.Metrics
	closers      []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context) (*app, error) {
	appCfg, err := configx.New[AppConfig]("")
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	llmCfg, err := configx.New[llmx.Config]("OPENROUTER")
	if err != nil {
		return nil, fmt.Errorf("load openrouter config: %w", err)
	}
	toolCfg, err := configx.New[toolx.Config]("TOOL")
	if err != nil {
		return nil, fmt.Errorf("load tool config: %w", err)
	}

	a := &app{metrics: metricsx.New()}
	fail := func(err error) (*app, error) {
		_ = a.Close()
		return nil, err
	}

	defaults, err := licensex.LoadDefaults(appCfg.WorkflowDefaultsFile)
	if err != nil {
		return fail(fmt.Errorf("load workflow defaults: %w", err))
	}

	registry, err := specialist.NewRegistry(ctx, *llmCfg, defaults)
	if err != nil {
		return fail(fmt.Errorf("create model registry: %w", err))
	}

	var redisClient redis.UniversalClient
	redisFor := func() (redis.UniversalClient, *statex.RedisStoreConfig, error) {
		cfg, err := configx.New[statex.RedisStoreConfig]("REDIS")
		if err != nil {
			return nil, nil, fmt.Errorf("load redis config: %w", err)
		}
		if redisClient == nil {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Addr,
				Password: cfg.Password,
				DB:       cfg.DB,
			})
			a.closers = append(a.closers, redisClient)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
			}
		}
		return redisClient, cfg, nil
	}

	var (
		store  statex.Store
		locker statex.Locker
	)
	switch strings.ToLower(strings.TrimSpace(appCfg.SessionStore)) {
	case backendRedis:
		client, cfg, err := redisFor()
		if err != nil {
			return fail(err)
		}
		if store, err = statex.NewRedisStore(client, *cfg); err != nil {
			return fail(err)
		}
		// Replicas sharing the session store must also share the session lock.
		if locker, err = statex.NewRedisLocker(client, cfg.LockTTL); err != nil {
			return fail(err)
		}
	case backendMemory, "":
		if store, err = statex.NewMemoryStore(); err != nil {
			return fail(err)
		}
	default:
		return fail(fmt.Errorf("unknown session store %q", appCfg.SessionStore))
	}

	blacklist, err := buildBlacklist(ctx, a, toolCfg.Blacklist)
	if err != nil {
		return fail(err)
	}

	opts := []toolx.Option{
		toolx.WithTimeout(toolCfg.Timeout),
		toolx.WithMetrics(a.metrics),
	}
	switch strings.ToLower(strings.TrimSpace(appCfg.LedgerStore)) {
	case backendRedis:
		ledgerCfg, err := configx.New[toolx.RedisConfig]("LEDGER")
		if err != nil {
			return fail(fmt.Errorf("load ledger config: %w", err))
		}
		var client redis.UniversalClient
		if strings.TrimSpace(ledgerCfg.Addr) != "" {
			// A dedicated ledger instance outlives session data.
			client = redis.NewClient(&redis.Options{
				Addr:     ledgerCfg.Addr,
				Password: ledgerCfg.Password,
				DB:       ledgerCfg.DB,
			})
			a.closers = append(a.closers, client)
			if err := client.Ping(ctx).Err(); err != nil {
				return fail(fmt.Errorf("ping ledger redis %s: %w", ledgerCfg.Addr, err))
			}
		} else if client, _, err = redisFor(); err != nil {
			return fail(err)
		}
		ledger, err := toolx.NewRedisLedger(client, ledgerCfg.TTL, toolx.WithClaimTTL(ledgerCfg.ClaimTTL))
		if err != nil {
			return fail(err)
		}
		opts = append(opts, toolx.WithLedger(ledger))
	case backendMemory, "":
		opts = append(opts, toolx.WithLedger(toolx.NewMemoryLedger()))
	default:
		return fail(fmt.Errorf("unknown ledger store %q", appCfg.LedgerStore))
	}

	gateway, err := buildGateway(appCfg.BankMode)
	if err != nil {
		return fail(err)
	}

	invoker, err := toolx.NewInvoker(blacklist, gateway, opts...)
	if err != nil {
		return fail(err)
	}

	orch, err := orchestratorx.New(store, registry, invoker,
		orchestratorx.WithMetrics(a.metrics),
		orchestratorx.WithLocker(locker),
	)
	if err != nil {
		return fail(err)
	}
	a.orchestrator = orch

	log.Info().
		Str("session_store", appCfg.SessionStore).
		Str("ledger_store", appCfg.LedgerStore).
		Str("bank_mode", appCfg.BankMode).
		Dur("tool_timeout", invoker.Timeout()).
		Msg("workflow wired")
	return a, nil
}

// buildBlacklist combines the configured static entries with the Postgres table when
// POSTGRES_DSN is set.
func buildBlacklist(ctx context.Context, a *app, static []string) (toolx.Blacklist, error) {
	sources := toolx.Blacklists{toolx.NewStaticBlacklist(static...)}

	pgCfg, err := configx.New[toolx.PostgresConfig]("POSTGRES")
	if err != nil {
		return nil, fmt.Errorf("load postgres config: %w", err)
	}
	if strings.TrimSpace(pgCfg.DSN) == "" {
		return sources, nil
	}

	pg, db, err := openPostgresBlacklist(ctx, *pgCfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	return append(sources, pg), nil
}

func openPostgresBlacklist(ctx context.Context, cfg toolx.PostgresConfig) (*toolx.PostgresBlacklist, *bun.DB, error) {
	db, err := toolx.OpenPostgres(cfg)
	if err != nil {
		return nil, nil, err
	}
	pg, err := toolx.NewPostgresBlacklist(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pg.EnsureSchema(schemaCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure blacklist schema: %w", err)
	}
	return pg, db, nil
}

func buildGateway(mode string) (toolx.Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case bankModeLocal, "":
		return toolx.LocalGateway{}, nil
	case bankModeRemote:
		cfg, err := configx.New[bankapix.Config]("BANK_API")
		if err != nil {
			return nil, fmt.Errorf("load bank api config: %w", err)
		}
		client, err := bankapix.NewClient(*cfg)
		if err != nil {
			return nil, err
		}
		return toolx.NewRemoteGateway(client)
	default:
		return nil, fmt.Errorf("unknown bank mode %q", mode)
	}
}
