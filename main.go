package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"lifelog-api/ai"
	"lifelog-api/api"
	"lifelog-api/notify"
	"lifelog-api/scheduler"
	"lifelog-api/storage"
	"lifelog-api/telegram"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	loc := time.UTC
	if tz := os.Getenv("APP_TIMEZONE"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Fatalf("invalid APP_TIMEZONE: %v", err)
		}
		loc = l
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	notifyQueueName := os.Getenv("NOTIFY_QUEUE")
	if connStr == "" || notifyQueueName == "" {
		log.Fatal("missing storage config")
	}
	queue, err := storage.NewNotifyQueue(connStr, notifyQueueName)
	if err != nil {
		log.Fatalf("notify queue: %v", err)
	}
	if err := queue.EnsureCreated(context.Background()); err != nil {
		log.Fatalf("create notify queue: %v", err)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "lifelog.db"
	}
	store, err := storage.Open(dbPath, queue)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	var deduper telegram.Deduper
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		ttl := 24 * time.Hour
		if v := os.Getenv("DEDUPER_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid DEDUPER_TTL: %v", err)
			}
			ttl = d
		}
		deduper = api.NewRedisDeduper(redis.NewClient(redisOpts), ttl)
	} else {
		logger.Warn("redis not configured, webhook dedup disabled")
	}

	aiClient := ai.NewClient(ai.Config{
		BaseURL:  os.Getenv("OPENAI_BASE_URL"),
		APIKey:   os.Getenv("OPENAI_API_KEY"),
		Model:    os.Getenv("OPENAI_MODEL"),
		Timezone: loc.String(),
	}, logger)

	bot := telegram.NewBot(os.Getenv("TELEGRAM_API_BASE"), os.Getenv("TELEGRAM_BOT_TOKEN"))

	testMode := os.Getenv("AUTH0_TEST_MODE") == "1"
	var auth *api.Auth
	if testMode {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		domain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || domain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := notify.NewDispatcher(store, bot, loc, logger)
	go notify.Consume(ctx, queue.Client(), dispatcher, logger)

	sched := scheduler.New(store, time.Minute, logger)
	go sched.Run(ctx)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	var webhook echo.HandlerFunc
	if bot.Configured() {
		handler := telegram.NewWebhookHandler(store, aiClient, bot, deduper, loc, logger)
		webhook = handler.Handle
	} else {
		logger.Warn("telegram bot not configured, webhook disabled")
	}
	api.Register(e, store, auth, aiClient, bot, webhook, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}
	e.Logger.Fatal(e.Start(listenAddr))
}
