package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SeedPolicy controls how a seed run treats rows that already exist.
type SeedPolicy string

const (
	// SeedInsertMissing creates rows whose name is absent and never touches existing ones.
	SeedInsertMissing SeedPolicy = "insert-missing"
	// SeedOverwrite creates absent rows and rewrites the descriptive fields of existing ones.
	SeedOverwrite SeedPolicy = "overwrite"
	// SeedReplace clears the table before loading.
	SeedReplace SeedPolicy = "replace"
)

type Config struct {
	Port string

	DBDriver string
	DBDSN    string

	MongoURI string
	MongoDB  string
	RedisURL string

	JWTSecret      []byte
	ReceiptSecret  []byte
	AccessTokenTTL time.Duration

	UploadRoot   string
	MaxUploadMB  int64
	CORSOrigins  []string
	ReferenceTTL time.Duration

	SeedPolicies map[string]SeedPolicy
}

// defaultSeedPolicies mirrors how each lookup table has historically been refreshed.
var defaultSeedPolicies = map[string]SeedPolicy{
	"countries":          SeedInsertMissing,
	"destinations":       SeedOverwrite,
	"starting-cities":    SeedOverwrite,
	"nationalities":      SeedReplace,
	"umrah-destinations": SeedInsertMissing,
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can inject values.
func FromEnv(getenv func(string) string) Config {
	cfg := Config{
		Port:           normalizePort(getenv("PORT")),
		DBDriver:       orDefault(getenv("DB_DRIVER"), "postgres"),
		DBDSN:          getenv("DB_CONNECTION_STRING"),
		MongoURI:       getenv("MONGO_URI"),
		MongoDB:        orDefault(getenv("MONGO_DB"), "goimomi"),
		RedisURL:       getenv("REDIS_URL"),
		JWTSecret:      []byte(orDefault(getenv("JWT_SECRET"), "change-me")),
		ReceiptSecret:  []byte(orDefault(getenv("RECEIPT_SECRET"), "change-me-too")),
		AccessTokenTTL: durationOr(getenv("ACCESS_TOKEN_TTL"), 12*time.Hour),
		UploadRoot:     orDefault(getenv("UPLOAD_ROOT"), "static/uploads"),
		MaxUploadMB:    int64Or(getenv("MAX_UPLOAD_MB"), 10),
		CORSOrigins:    splitList(orDefault(getenv("CORS_ORIGINS"), "*")),
		ReferenceTTL:   durationOr(getenv("REFERENCE_CACHE_TTL"), 10*time.Minute),
		SeedPolicies:   make(map[string]SeedPolicy, len(defaultSeedPolicies)),
	}

	if cfg.DBDriver == "sqlite" && cfg.DBDSN == "" {
		cfg.DBDSN = "goimomi.db"
	}

	for table, policy := range defaultSeedPolicies {
		key := "SEED_POLICY_" + strings.ToUpper(strings.ReplaceAll(table, "-", "_"))
		if v := SeedPolicy(getenv(key)); v.Valid() {
			policy = v
		}
		cfg.SeedPolicies[table] = policy
	}

	return cfg
}

// Valid reports whether p is a known policy.
func (p SeedPolicy) Valid() bool {
	switch p {
	case SeedInsertMissing, SeedOverwrite, SeedReplace:
		return true
	}
	return false
}

// MaxUploadBytes is the per-request multipart memory budget.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func normalizePort(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] != ':' {
		return ":" + port
	}
	return port
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func durationOr(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid duration %q, using %s", v, def)
		return def
	}
	return d
}

func int64Or(v string, def int64) int64 {
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
