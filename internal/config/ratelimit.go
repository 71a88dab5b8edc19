package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig parameterises the Redis token bucket placed in front of
// the purchase and scan routes. Scanners get their own, larger bucket since
// a door device legitimately scans many codes per minute.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_<scope>_* keys, falling back to the
// unscoped RATE_LIMIT_* keys and then to defaults. scope is e.g. "PURCHASE".
func LoadRateLimitConfig(scope string, defCapacity int) RateLimitConfig {
	key := func(name string) string {
		scoped := "RATE_LIMIT_" + scope + "_" + name
		if os.Getenv(scoped) != "" {
			return scoped
		}
		return "RATE_LIMIT_" + name
	}
	def := RateLimitConfig{
		Enabled:        envBool(key("ENABLED"), true),
		Capacity:       envInt(key("CAPACITY"), defCapacity),
		RefillTokens:   envInt(key("REFILL_TOKENS"), 1),
		RefillInterval: envDur(key("REFILL_INTERVAL"), time.Second),
		TTL:            envDur(key("TTL"), 10*time.Minute),
		KeyStrategy:    envStr(key("KEY_STRATEGY"), "user_route"),
		Prefix:         envStr(key("PREFIX"), "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
