// sieve/tools/sieve_stressor/main.go

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisAddr string
	eventRate int
	channel   string
)

func init() {
	flag.StringVar(&redisAddr, "redis", "localhost:6379", "Redis address")
	flag.IntVar(&eventRate, "rate", 10, "Number of events per second")
	flag.StringVar(&channel, "channel", "sieve_events", "Event channel")
	flag.Parse()
}

var userAgents = []string{
	"Mozilla/5.0", "Googlebot/2.1", "curl/8.4.0", "bingbot/2.0", "python-requests/2.31",
}

var hosts = []string{
	"example.com", "api.example.com", "static.example.com", "admin.example.com",
}

func randomEvent() map[string]interface{} {
	return map[string]interface{}{
		"http.host":       hosts[rand.Intn(len(hosts))],
		"http.user_agent": userAgents[rand.Intn(len(userAgents))],
		"tcp.port":        []int{80, 443, 8080, 8443}[rand.Intn(4)],
		"ip.src":          fmt.Sprintf("10.%d.%d.%d", rand.Intn(256), rand.Intn(256), rand.Intn(254)+1),
		"ssl":             rand.Intn(2) == 0,
	}
}

func main() {
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	fmt.Printf("Connected to Redis at %s\n", redisAddr)
	fmt.Printf("Publishing events to %q at a rate of %d per second\n", channel, eventRate)

	ticker := time.NewTicker(time.Second / time.Duration(eventRate))
	defer ticker.Stop()

	for range ticker.C {
		payload, err := json.Marshal(randomEvent())
		if err != nil {
			fmt.Printf("Error marshaling event: %v\n", err)
			continue
		}

		if err := rdb.Publish(ctx, channel, payload).Err(); err != nil {
			fmt.Printf("Error publishing event: %v\n", err)
			continue
		}

		fmt.Printf("Published event: %s\n", payload)
	}
}
