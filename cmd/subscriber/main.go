package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"trader-agent/notification"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis address")
	channel := flag.String("channel", notification.DefaultChannel, "Redis channel to subscribe to")
	flag.Parse()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable is required")
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

	sub := notification.NewSubscriber(redisClient, *channel, notification.NewTelegramSender(token))
	if err := sub.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Subscriber stopped: %v", err)
	}
}
