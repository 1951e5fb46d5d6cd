package app

import (
	"strings"
	"time"

	"github.com/babyshield/crownsafe-backend/internal/platform/envutil"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

type Config struct {
	HTTPAddr    string
	CORSOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DedupeSimilarityThreshold float64
	DedupeDateWindow          time.Duration
	SearchMinSimilarity       float64
	SearchCacheTTL            time.Duration

	WorkerPollInterval time.Duration
	ScheduleSpec       string
	SchedulerEnabled   bool

	CPSCBaseURL         string
	FDABaseURL          string
	FDAAPIKey           string
	HealthCanadaBaseURL string
	FixturePath         string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		HTTPAddr: envutil.String("HTTP_ADDR", ":8080"),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),

		DedupeSimilarityThreshold: envutil.Float("DEDUPE_SIMILARITY_THRESHOLD", 0.65),
		DedupeDateWindow:          envutil.Duration("DEDUPE_DATE_WINDOW", 90*24*time.Hour),
		SearchMinSimilarity:       envutil.Float("SEARCH_MIN_SIMILARITY", 0.15),
		SearchCacheTTL:            envutil.Duration("SEARCH_CACHE_TTL", time.Minute),

		WorkerPollInterval: envutil.Duration("INGEST_POLL_INTERVAL", 2*time.Second),
		ScheduleSpec:       envutil.String("INGEST_SCHEDULE", "0 */6 * * *"),
		SchedulerEnabled:   envutil.Bool("INGEST_SCHEDULER_ENABLED", true),

		CPSCBaseURL:         envutil.String("CPSC_BASE_URL", ""),
		FDABaseURL:          envutil.String("FDA_BASE_URL", ""),
		FDAAPIKey:           envutil.String("FDA_API_KEY", ""),
		HealthCanadaBaseURL: envutil.String("HEALTH_CANADA_BASE_URL", ""),
		FixturePath:         envutil.String("INGEST_FIXTURE_PATH", ""),
	}

	if raw := envutil.String("CORS_ORIGINS", ""); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if o := strings.TrimSpace(origin); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	log.Info("Config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis", cfg.RedisAddr != "",
		"scheduler_enabled", cfg.SchedulerEnabled,
		"schedule", cfg.ScheduleSpec,
	)
	return cfg
}
