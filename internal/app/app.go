package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"globalblock/internal/app/server"
	"globalblock/internal/auth"
	"globalblock/internal/autoblock"
	"globalblock/internal/config"
	"globalblock/internal/database"
	"globalblock/internal/geolite"
	"globalblock/internal/identity"
	"globalblock/internal/jobs/maintenance"
	"globalblock/internal/jobs/runtime"
	"globalblock/internal/localstatus"
	"globalblock/internal/lookup"
	"globalblock/internal/manager"
	"globalblock/internal/reason"
	"globalblock/internal/support"
)

const defaultPort = 8082

// Run wires the block engine and serves it until SIGINT/SIGTERM.
func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	log.SetLevel(log.DebugLevel)

	portFlag := flag.Int("port", defaultPort, "Port for the API server")
	flag.Parse()

	port := resolvePort("GB_PORT", "PORT", *portFlag)
	policy := config.Load()
	clock := support.SystemClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Setup()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	authSvc := auth.NewService(store.Primary())
	if err := authSvc.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate admin accounts: %w", err)
	}

	var heartbeatCancel context.CancelFunc
	redisClient, redisErr := support.GetRedisClient()
	if redisErr != nil {
		log.Warn("Redis unavailable, continuing without shared cache", "error", redisErr)
		redisClient = nil
	} else {
		heartbeatCancel = runtime.LaunchInstanceHeartbeat(ctx, redisClient)
		defer heartbeatCancel()
		defer func() {
			if err := support.CloseRedisClient(); err != nil {
				log.Warn("error closing redis client", "error", err)
			}
		}()
	}

	directory := identity.NewEnvDirectory()
	geo := geolite.Open()
	defer geo.Close()

	var recentIPs *identity.RedisRecentIPs
	if redisClient != nil {
		recentIPs = identity.NewRedisRecentIPs(redisClient)
	}

	exemptList := autoblock.NewExemptList(policy, redisClient, clock)
	propagator := autoblock.NewPropagator(store, exemptList, policy, clock)

	var recentSource identity.RecentIPSource
	if recentIPs != nil {
		recentSource = recentIPs
	}
	blocks := manager.New(store, authSvc, propagator, recentSource, policy, clock)
	engine := lookup.NewEngine(store, authSvc, policy, clock)
	localStatus := localstatus.New(store, blocks, policy)
	formatter := reason.NewFormatter(authSvc, directory)

	go maintenance.StartPurgeSweeper(ctx, store, clock)
	go runtime.StartExemptListRefresh(ctx, exemptList, policy)

	api := server.New(store, blocks, engine, localStatus, propagator, formatter, authSvc, authSvc, geo, redisClient, recentIPs, policy, clock)
	return api.Open(ctx, port)
}

func resolvePort(primaryEnv, legacyEnv string, fallback int) int {
	if port := readPort(primaryEnv); port != 0 {
		return port
	}
	if port := readPort(legacyEnv); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
