package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"trader-agent/broker"
	"trader-agent/notification"
	"trader-agent/sentiment"
	"trader-agent/session"
	"trader-agent/store"
	"trader-agent/strategy"
	"trader-agent/ticker"
)

const (
	defaultPort     = "8080"
	paperTradingURL = "https://paper-api.alpaca.markets"
	liveTradingURL  = "https://api.alpaca.markets"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// If .env file doesn't exist, log a warning but continue
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	port := flag.String("port", defaultPort, "Port to listen on")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis address")
	channel := flag.String("channel", notification.DefaultChannel, "Redis channel for trade notifications")
	tickInterval := flag.Duration("tick-interval", 24*time.Hour, "Trading iteration cadence")
	watchdogInterval := flag.Duration("watchdog-interval", time.Minute, "Session expiry check cadence")
	usePaperTrading := flag.Bool("paper", true, "Use paper trading (true) or live trading (false)")
	useIndicators := flag.Bool("indicators", false, "Augment sentiment with MACD/RSI gates")
	flag.Parse()

	// Service-level market data credentials used only for ticker validation.
	// Per-user trading credentials come from the store.
	mdKey := os.Getenv("PAPER_ALPACA_API_KEY")
	mdSecret := os.Getenv("PAPER_ALPACA_SECRET_KEY")
	if mdKey == "" || mdSecret == "" {
		log.Fatal("PAPER_ALPACA_API_KEY and PAPER_ALPACA_SECRET_KEY environment variables are required")
	}

	baseURL := paperTradingURL
	if !*usePaperTrading {
		baseURL = liveTradingURL
		log.Println("Using LIVE trading environment")
	} else {
		log.Println("Using PAPER trading environment")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     *redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis at %s: %v", *redisAddr, err)
	}
	log.Printf("Connected to Redis at %s", *redisAddr)

	var estimator sentiment.Estimator
	if sentimentURL := os.Getenv("SENTIMENT_API_URL"); sentimentURL != "" {
		estimator = sentiment.NewHTTPEstimator(sentimentURL)
		log.Printf("Using sentiment service at %s", sentimentURL)
	} else {
		log.Println("Warning: SENTIMENT_API_URL not set, sentiment estimates will be neutral")
		estimator = &sentiment.Fixed{Label: sentiment.LabelNeutral}
	}

	st := store.New(redisClient)
	bus := notification.NewBus(redisClient, *channel)
	validator := ticker.NewValidator(mdKey, mdSecret)

	factory := session.BrokerFactory(func(apiKey, apiSecret string) broker.Client {
		return broker.NewAlpaca(apiKey, apiSecret, baseURL)
	})

	controller := session.NewController(session.Config{
		TickInterval:     *tickInterval,
		WatchdogInterval: *watchdogInterval,
		UseIndicators:    *useIndicators,
		Indicators:       strategy.IndicatorConfig{},
	}, st, factory, estimator, bus)

	srv := &server{
		store:     st,
		validator: validator,
		sessions:  controller,
		newBroker: factory,
	}
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	log.Printf("Starting trader agent on port %s", *port)
	if err := http.ListenAndServe(":"+*port, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
