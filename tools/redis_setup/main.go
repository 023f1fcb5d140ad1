// sieve/tools/redis_setup/main.go

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"rgehrsitz/sieve/pkg/validator"
)

var ctx = context.Background()

const rulesetKeyPrefix = "sieve:ruleset:"

// Seeds Redis with a starter ruleset and provides a small CLI for
// loading ruleset files and publishing test events.

const defaultRuleset = `{
	"name": "default",
	"scheme": [
		{"name": "http.host", "type": "Bytes"},
		{"name": "http.user_agent", "type": "Bytes"},
		{"name": "tcp.port", "type": "Int"},
		{"name": "ip.src", "type": "Ip"},
		{"name": "ssl", "type": "Bool"}
	],
	"rules": [
		{"name": "block-bots", "expression": "http.user_agent contains \"bot\"", "priority": 10},
		{"name": "internal-traffic", "expression": "ip.src in { 10.0.0.0/8 192.168.0.0/16 }", "priority": 5},
		{"name": "plain-http", "expression": "not ssl && tcp.port == 80", "priority": 1}
	]
}`

func main() {
	rdb := connectToRedis("localhost:6379")
	if err := initializeRedis(rdb); err != nil {
		fmt.Printf("Initialization failed: %v\n", err)
		os.Exit(1)
	}
	startCLI(rdb)
}

func connectToRedis(addr string) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return rdb
}

func initializeRedis(rdb *redis.Client) error {
	err := rdb.Set(ctx, rulesetKeyPrefix+"default", defaultRuleset, 0).Err()
	if err != nil {
		fmt.Printf("Error seeding default ruleset: %v\n", err)
		return err
	}
	fmt.Println("Seeded ruleset 'default'")
	return nil
}

func startCLI(rdb *redis.Client) {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Enter command (load <name> <file> | list | publish <channel> <payload> | exit): ")
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		if input == "exit" {
			break
		}

		err := processCommand(rdb, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func processCommand(rdb *redis.Client, input string) error {
	parts := strings.SplitN(input, " ", 3)
	switch parts[0] {
	case "load":
		if len(parts) != 3 {
			return fmt.Errorf("invalid command. Use 'load <name> <file>'")
		}
		name, file := parts[1], parts[2]
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("error reading %s: %v", file, err)
		}
		if _, err := validator.ValidateDocument(data); err != nil {
			return fmt.Errorf("ruleset %s failed validation: %v", name, err)
		}
		if err := rdb.Set(ctx, rulesetKeyPrefix+name, data, 0).Err(); err != nil {
			return fmt.Errorf("error storing ruleset %s: %v", name, err)
		}
		fmt.Printf("Loaded ruleset %s from %s\n", name, file)
		return nil
	case "list":
		keys, err := rdb.Keys(ctx, rulesetKeyPrefix+"*").Result()
		if err != nil {
			return fmt.Errorf("error listing rulesets: %v", err)
		}
		for _, key := range keys {
			fmt.Println(strings.TrimPrefix(key, rulesetKeyPrefix))
		}
		return nil
	case "publish":
		if len(parts) != 3 {
			return fmt.Errorf("invalid command. Use 'publish <channel> <payload>'")
		}
		channel, payload := parts[1], parts[2]
		if err := rdb.Publish(ctx, channel, payload).Err(); err != nil {
			return fmt.Errorf("error publishing event: %v", err)
		}
		fmt.Printf("Published to %s: %s\n", channel, payload)
		return nil
	default:
		return fmt.Errorf("unknown command %q", parts[0])
	}
}
