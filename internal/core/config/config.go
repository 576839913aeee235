// Package config reads process configuration from the environment and the
// optional engine defaults file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers []string
	GroupID string
}

type CacheCfg struct {
	// Driver is none, lru or redis.
	Driver    string
	RedisAddr string
	TTL       time.Duration
	OpTimeout time.Duration
	LRUSize   int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr             string
	LogLevel         string
	LogConsole       bool
	LogSampleN       int
	IncumbentsFile   string
	EngineConfigFile string
	EngineWorkers    int
	H3Res            int
	MaxEvalPoints    int
	MaxRegionExtentM int
	AvailabilityTTL  time.Duration
	StrictSchema     bool
	Cache            CacheCfg
	Invalidation     InvalidationCfg
	Metrics          MetricsCfg
}

// FromEnv loads .env (if present) without overriding variables already set,
// then reads every setting with its default.
func FromEnv() Config {
	_ = godotenv.Load()

	res := getint("H3_RES", 9)
	if res < 0 || res > 15 {
		res = 9
	}

	return Config{
		Addr:             getenv("ADDR", ":8090"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogConsole:       getbool("LOG_CONSOLE", false),
		LogSampleN:       getint("LOG_SAMPLE_N", 0),
		IncumbentsFile:   getenv("INCUMBENTS_FILE", ""),
		EngineConfigFile: getenv("ENGINE_CONFIG_FILE", ""),
		EngineWorkers:    getint("ENGINE_WORKERS", 8),
		H3Res:            res,
		MaxEvalPoints:    getint("MAX_EVAL_POINTS", 64),
		MaxRegionExtentM: getint("MAX_REGION_EXTENT_M", 5000),
		AvailabilityTTL:  getduration("AVAILABILITY_TTL", 15*time.Minute),
		StrictSchema:     getbool("STRICT_SCHEMA", true),
		Cache: CacheCfg{
			Driver:    strings.ToLower(getenv("CACHE_DRIVER", "none")),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("CACHE_TTL", 60*time.Second),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			LRUSize:   getint("LRU_SIZE", 1024),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "incumbent-updates"),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			GroupID: getenv("KAFKA_GROUP_ID", "afc-incumbents"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
