package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/adwski/liveide-collab/backend/metrics"
	"github.com/adwski/liveide-collab/backend/ratelimit"
	httpServer "github.com/adwski/liveide-collab/backend/server/http"
	websocketServer "github.com/adwski/liveide-collab/backend/server/websocket"
	"github.com/adwski/liveide-collab/backend/service"
	"github.com/adwski/liveide-collab/backend/storage/memory"
	"github.com/adwski/liveide-collab/backend/storage/mongo"
	sw "github.com/adwski/liveide-collab/backend/switch"
)

const (
	defaultStartupTimeout = 10 * time.Second
	redisKeyPrefix        = "liveide:askhelp:"
)

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

// splitList parses a comma separated flag value, skipping blank entries.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Debug().Err(err).Msg("no .env file loaded")
	}

	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)
	var (
		apiListenAddr   = fs.StringP("api-listen-addr", "a", envOr("API_LISTEN_ADDR", ":8080"), "api listen address")
		wsListenAddr    = fs.StringP("ws-listen-addr", "w", envOr("WS_LISTEN_ADDR", ":3001"), "websocket signaling listen address")
		logLevel        = fs.StringP("log-level", "l", envOr("LOG_LEVEL", "debug"), "log level")
		allowedOrigins  = fs.String("allowed-origins", envOr("ALLOWED_ORIGINS", "http://localhost:3000"), "comma separated list of allowed origins")
		mongoURI        = fs.String("mongo-uri", envOr("MONGO_URI", ""), "mongodb uri of the account store, in-memory directory if empty")
		mongoDB         = fs.String("mongo-db", envOr("MONGO_DB", ""), "mongodb database")
		mongoCollection = fs.String("mongo-collection", envOr("MONGO_COLLECTION", ""), "mongodb users collection")
		redisAddr       = fs.String("redis-addr", envOr("REDIS_ADDR", ""), "redis address for help request throttling, in-process if empty")
		helpCooldown    = fs.Duration("help-cooldown", envDurationOr("HELP_COOLDOWN", 15*time.Second), "minimal interval between help requests of one user, 0 disables")
		outboundQueue   = fs.Int("outbound-queue", 256, "per connection outbound event queue size")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var directory service.Directory = memory.NewDirectory()
	if *mongoURI != "" {
		startCtx, startCancel := context.WithTimeout(ctx, defaultStartupTimeout)
		dir, errM := mongo.NewDirectory(startCtx, mongo.Config{
			URI:        *mongoURI,
			Database:   *mongoDB,
			Collection: *mongoCollection,
		})
		startCancel()
		if errM != nil {
			logger.Fatal().Err(errM).Msg("failed to connect to account store")
		}
		defer func() {
			if errC := dir.Close(context.Background()); errC != nil {
				logger.Error().Err(errC).Msg("failed to close account store")
			}
		}()
		directory = dir
		logger.Info().Msg("using mongodb account store")
	}

	var limiter service.Limiter = ratelimit.Nop{}
	switch {
	case *helpCooldown <= 0:
	case *redisAddr != "":
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer func() {
			_ = rdb.Close()
		}()
		if errR := rdb.Ping(ctx).Err(); errR != nil {
			logger.Fatal().Err(errR).Msg("failed to connect to redis")
		}
		limiter = ratelimit.NewRedis(rdb, *helpCooldown, redisKeyPrefix)
		logger.Info().Msg("using redis help request throttle")
	default:
		limiter = ratelimit.NewMemory(*helpCooldown)
	}

	svc := service.NewService(service.Config{
		Roster:    memory.NewRoster(),
		RoomStore: memory.NewRoomStore(),
		Switch:    sw.NewSwitch(&logger, m),
		Directory: directory,
		Limiter:   limiter,
		Metrics:   m,
		Logger:    &logger,
	})

	origins := splitList(*allowedOrigins)
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:         &logger,
		RosterService:  svc,
		Metrics:        m.Handler(),
		ListenAddr:     *apiListenAddr,
		AllowedOrigins: origins,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:           &logger,
		SignalingService: svc,
		ListenAddr:       *wsListenAddr,
		AllowedOrigins:   origins,
		OutboundQueue:    *outboundQueue,
	})

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
