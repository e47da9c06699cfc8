package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	coreconfig "github.com/AzielCF/az-guard/core/config"
	coreDB "github.com/AzielCF/az-guard/core/database"
	domainCache "github.com/AzielCF/az-guard/domains/cache"
	domainCollection "github.com/AzielCF/az-guard/domains/collection"
	domainEconomy "github.com/AzielCF/az-guard/domains/economy"
	domainGuild "github.com/AzielCF/az-guard/domains/guild"
	domainHealth "github.com/AzielCF/az-guard/domains/health"
	domainModeration "github.com/AzielCF/az-guard/domains/moderation"
	"github.com/AzielCF/az-guard/infrastructure/collection"
	"github.com/AzielCF/az-guard/infrastructure/memstore"
	"github.com/AzielCF/az-guard/infrastructure/metrics"
	"github.com/AzielCF/az-guard/infrastructure/mongostore"
	"github.com/AzielCF/az-guard/infrastructure/sqlstore"
	"github.com/AzielCF/az-guard/infrastructure/valkey"
	"github.com/AzielCF/az-guard/pkg/doccache"
	"github.com/AzielCF/az-guard/pkg/utils"
	"github.com/AzielCF/az-guard/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Infrastructure
	docStore     domainCollection.IDocumentStore
	manager      *collection.Manager
	collector    *metrics.Collector
	valkeyClient *valkey.Client

	// Usecase
	guildUsecase      domainGuild.IGuildUsecase
	economyUsecase    domainEconomy.IEconomyUsecase
	moderationUsecase domainModeration.IModerationUsecase
	cacheUsecase      domainCache.ICacheUsecase
	healthUsecase     domainHealth.IHealthUsecase
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "azguard",
	Short: "Guild settings, economy and moderation backend for chat bots",
	Long: `az-guard keeps per-guild bot state (settings, wallets, moderation cases)
in a document store with a TTL cache in front of it.`,
}

func init() {
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig decodes flags, .env and the environment into coreconfig.Global.
func initEnvConfig() {
	cfg, err := coreconfig.Load(viper.GetViper())
	if err != nil {
		logrus.Fatalf("[APP] %v", err)
	}
	coreconfig.Global = cfg
}

func initFlags() {
	flags := rootCmd.PersistentFlags()

	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "hide or displaying log with --debug <true/false> | example: --debug=true")
	flags.String("db-driver", "", `document store backend --db-driver <mongo|sqlite|postgres|memory> | example: --db-driver=mongo`)
	flags.String("db-name", "", `sqlite file or postgres database name --db-name <string> | example: --db-name="storages/azguard.db"`)
	flags.String("mongo-uri", "", `mongodb connection uri --mongo-uri <string> | example: --mongo-uri="mongodb://localhost:27017"`)
	flags.String("mongo-database", "", `mongodb database --mongo-database <string> | example: --mongo-database=azguard`)
	flags.Duration("cache-ttl", 0, "lifetime of cached records --cache-ttl <duration> | example: --cache-ttl=10m")
	flags.Bool("cache-enabled", true, "turn the record cache on or off --cache-enabled <true/false>")
	flags.Int("sync-workers", 0, "number of cache sync workers --sync-workers <number> | example: --sync-workers=8")
	flags.Int("sync-queue-size", 0, "queue size per cache sync worker --sync-queue-size <number> | example: --sync-queue-size=512")
	flags.Bool("valkey-enabled", false, "broadcast cache invalidations through valkey --valkey-enabled <true/false>")
	flags.String("valkey-address", "", `valkey address --valkey-address <host:port> | example: --valkey-address="localhost:6379"`)

	bindings := map[string]string{
		"app.port":             "port",
		"app.debug":            "debug",
		"db.driver":            "db-driver",
		"db.name":              "db-name",
		"db.mongo_uri":         "mongo-uri",
		"db.mongo_database":    "mongo-database",
		"cache.ttl":            "cache-ttl",
		"cache.enabled":        "cache-enabled",
		"sync_pool.workers":    "sync-workers",
		"sync_pool.queue_size": "sync-queue-size",
		"valkey.enabled":       "valkey-enabled",
		"valkey.address":       "valkey-address",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logrus.Fatalf("[APP] failed to bind flag %s: %v", flag, err)
		}
	}
}

func initApp() {
	cfg := coreconfig.Global
	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()
	collector = metrics.NewCollector()

	var err error
	docStore, err = openStore(ctx, cfg)
	if err != nil {
		logrus.Fatalf("[APP] %v", err)
	}
	logrus.Infof("[APP] Document store ready (%s)", docStore.Kind())

	var bus collection.Subscriber
	if cfg.Valkey.Enabled {
		valkeyClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Valkey.Address,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			logrus.Warnf("[VALKEY] %v, continuing without cache invalidation bus", err)
			valkeyClient = nil
		} else {
			bus = valkey.NewInvalidationBus(valkeyClient, utils.GetInstanceID(cfg.App.ServerID))
		}
	}

	manager = collection.NewManager(docStore, collection.Options{
		CacheDisabled: !cfg.Cache.Enabled,
		Cache: doccache.Config{
			TTL:             cfg.Cache.TTL,
			CleanupInterval: cfg.Cache.CleanupInterval,
			MaxSize:         int64(cfg.Cache.MaxSize),
		},
		PoolWorkers:   cfg.SyncPool.Workers,
		PoolQueueSize: cfg.SyncPool.QueueSize,
		Metrics:       collector,
		Bus:           bus,
	})
	if err := manager.Start(ctx); err != nil {
		logrus.Fatalf("[APP] failed to start collection manager: %v", err)
	}

	guildUsecase = usecase.NewGuildService(manager)
	economyUsecase = usecase.NewEconomyService(manager, cfg.Economy)
	moderationUsecase = usecase.NewModerationService(manager, guildUsecase, cfg.Moderation)
	cacheUsecase = usecase.NewCacheService(manager, cfg.Cache)

	var valkeyPinger usecase.Pinger
	if valkeyClient != nil {
		valkeyPinger = valkeyClient
	}
	healthUsecase = usecase.NewHealthService(docStore, docStore.Kind(), valkeyPinger, manager.Pool())
}

func openStore(ctx context.Context, cfg *coreconfig.Config) (domainCollection.IDocumentStore, error) {
	switch cfg.Database.Driver {
	case "mongo":
		store, err := mongostore.NewStore(ctx, mongostore.Config{
			URI:            cfg.Database.MongoURI,
			Database:       cfg.Database.MongoDatabase,
			ConnectTimeout: cfg.Database.ConnectTimeout,
			AppName:        "azguard",
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		logrus.Warn("[APP] Using the in-memory store, data is lost on restart")
		return memstore.New(), nil
	case "sqlite", "postgres":
		if cfg.Database.Driver == "sqlite" && cfg.Database.Name != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Name), 0o750); err != nil {
				return nil, fmt.Errorf("failed to create storage folder: %w", err)
			}
		}
		db, err := coreDB.NewDatabase(cfg)
		if err != nil {
			return nil, err
		}
		store := sqlstore.New(db)
		if err := store.Migrate(); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Database.Driver)
	}
}

// StopApp drains pending cache work and closes every connection.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if manager != nil {
		if err := manager.Close(ctx); err != nil {
			logrus.Errorf("[APP] Error closing document store: %v", err)
		}
	}
	if valkeyClient != nil {
		valkeyClient.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
