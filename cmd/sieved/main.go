// sieve/cmd/sieved/main.go

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"rgehrsitz/sieve/pkg/logging"
	"rgehrsitz/sieve/pkg/runtime"
	"rgehrsitz/sieve/pkg/store"
)

// Config represents the application configuration
type Config struct {
	RulesetFile       string
	RulesetName       string
	LogLevel          string
	LogDestination    string
	RedisAddress      string
	RedisPassword     string
	RedisDB           int
	RedisChannels     []string
	PriorityThreshold int
	DashboardEnabled  bool
	DashboardPort     int
	DashboardInterval int
}

// SieveDependencies represents the external dependencies of the application
type SieveDependencies struct {
	Store  store.Store
	Engine *runtime.Engine
}

// StoreFactory is an interface for creating a store
type StoreFactory interface {
	NewStore(addr, password string, db int) store.Store
}

// EngineFactory is an interface for creating an engine
type EngineFactory interface {
	NewEngine(config *Config, st store.Store) (*runtime.Engine, error)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, os.Args, &RealStoreFactory{}, &RealEngineFactory{}); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

func run(ctx context.Context, args []string, storeFactory StoreFactory, engineFactory EngineFactory) error {
	config, err := parseConfig(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := logging.ConfigureLogger(config.LogLevel, config.LogDestination); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	deps, err := setupDependencies(config, storeFactory, engineFactory)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}

	if config.DashboardEnabled {
		dashboard := runtime.NewDashboard(deps.Engine, config.DashboardPort,
			time.Duration(config.DashboardInterval)*time.Second)
		go func() {
			if err := dashboard.Start(); err != nil {
				log.Error().Err(err).Msg("Dashboard failed")
			}
		}()
	}

	return runMainLoop(ctx, deps, config)
}

func parseConfig(args []string) (*Config, error) {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.CommandLine.Parse(args[1:])

	viper.SetConfigType("json")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.output", "console")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.channels", []string{"sieve_events"})
	viper.SetDefault("ruleset.name", "default")
	viper.SetDefault("engine.priority_threshold", 0)
	viper.SetDefault("dashboard.enabled", false)
	viper.SetDefault("dashboard.port", 8080)
	viper.SetDefault("dashboard.update_interval", 5)

	if *configFile == "" {
		viper.SetConfigName("sieve_config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.sieve")
		viper.AddConfigPath("/etc/sieve")
	} else {
		viper.SetConfigFile(*configFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || *configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No configuration file found, using defaults")
	}

	return &Config{
		RulesetFile:       viper.GetString("ruleset.file"),
		RulesetName:       viper.GetString("ruleset.name"),
		LogLevel:          viper.GetString("logging.level"),
		LogDestination:    viper.GetString("logging.output"),
		RedisAddress:      viper.GetString("redis.address"),
		RedisPassword:     viper.GetString("redis.password"),
		RedisDB:           viper.GetInt("redis.database"),
		RedisChannels:     viper.GetStringSlice("redis.channels"),
		PriorityThreshold: viper.GetInt("engine.priority_threshold"),
		DashboardEnabled:  viper.GetBool("dashboard.enabled"),
		DashboardPort:     viper.GetInt("dashboard.port"),
		DashboardInterval: viper.GetInt("dashboard.update_interval"),
	}, nil
}

func setupDependencies(config *Config, storeFactory StoreFactory, engineFactory EngineFactory) (*SieveDependencies, error) {
	st := storeFactory.NewStore(config.RedisAddress, config.RedisPassword, config.RedisDB)

	engine, err := engineFactory.NewEngine(config, st)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	return &SieveDependencies{
		Store:  st,
		Engine: engine,
	}, nil
}

func runMainLoop(ctx context.Context, deps *SieveDependencies, config *Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := deps.Store.ReceiveEvents(config.RedisChannels...)
	if events == nil {
		return fmt.Errorf("failed to subscribe to event channels")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("Sieve runtime engine started")

	for {
		select {
		case msg := <-events:
			if err := processMessage(deps.Engine, msg); err != nil {
				log.Error().Err(err).Msg("Failed to process message")
			}
		case <-sigChan:
			log.Info().Msg("Shutting down sieve runtime engine")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// processMessage dispatches one wire message to the engine. A payload
// starting with '{' is a whole JSON event document; anything else is a
// single key=value field update.
func processMessage(engine *runtime.Engine, msg *redis.Message) error {
	logging.Logger.Info().Str("channel", msg.Channel).Str("payload", msg.Payload).Msg("Received message")

	if strings.HasPrefix(strings.TrimSpace(msg.Payload), "{") {
		var event map[string]interface{}
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			return fmt.Errorf("invalid event document: %w", err)
		}
		_, err := engine.EvaluateEvent(event)
		return err
	}

	parts := strings.Split(msg.Payload, "=")
	if len(parts) != 2 {
		return fmt.Errorf("invalid payload format: %s", msg.Payload)
	}

	key := parts[0]
	value := parts[1]

	var typedValue interface{}
	if value == "true" || value == "false" {
		typedValue = value == "true"
	} else if num, err := strconv.ParseFloat(value, 64); err == nil {
		typedValue = num
	} else {
		typedValue = value
	}

	_, err := engine.ProcessFieldUpdate(key, typedValue)
	return err
}

// RealStoreFactory implements StoreFactory
type RealStoreFactory struct{}

func (f *RealStoreFactory) NewStore(addr, password string, db int) store.Store {
	return store.NewRedisStore(addr, password, db)
}

// RealEngineFactory implements EngineFactory
type RealEngineFactory struct{}

func (f *RealEngineFactory) NewEngine(config *Config, st store.Store) (*runtime.Engine, error) {
	if config.RulesetFile != "" {
		return runtime.NewEngineFromFile(config.RulesetFile, st, config.PriorityThreshold)
	}
	return runtime.NewEngineFromStore(st, config.RulesetName, config.PriorityThreshold)
}
