package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every variable this service reads.
const EnvPrefix = "DISPATCH_"

// applyEnv overlays DISPATCH_* variables. Unset variables keep the current
// value; a set variable that does not parse is an error.
func applyEnv(cfg *Config) error {
	env := &envReader{}

	cfg.Server.Port = env.str("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = env.duration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = env.duration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = env.duration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.CORSOrigins = env.list("CORS_ORIGINS", cfg.Server.CORSOrigins)

	cfg.Storage.Backend = env.str("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.KeyPrefix = env.str("STORAGE_KEY_PREFIX", cfg.Storage.KeyPrefix)

	cfg.Sync.Backend = env.str("SYNC_BACKEND", cfg.Sync.Backend)
	cfg.Sync.Channel = env.str("SYNC_CHANNEL", cfg.Sync.Channel)
	cfg.Sync.RetryDelay = env.duration("SYNC_RETRY_DELAY", cfg.Sync.RetryDelay)

	cfg.Redis.Addr = env.str("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = env.str("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = env.integer("REDIS_DB", cfg.Redis.DB)

	cfg.Postgres.DSN = env.str("POSTGRES_DSN", cfg.Postgres.DSN)

	cfg.AMQP.URL = env.str("AMQP_URL", cfg.AMQP.URL)
	cfg.AMQP.Exchange = env.str("AMQP_EXCHANGE", cfg.AMQP.Exchange)

	cfg.Kitchen.Lat = env.float("KITCHEN_LAT", cfg.Kitchen.Lat)
	cfg.Kitchen.Lng = env.float("KITCHEN_LNG", cfg.Kitchen.Lng)

	cfg.Admin.Passphrase = env.str("ADMIN_PASSPHRASE", cfg.Admin.Passphrase)
	cfg.Admin.TokenSecret = env.str("ADMIN_TOKEN_SECRET", cfg.Admin.TokenSecret)
	cfg.Admin.TokenTTL = env.duration("ADMIN_TOKEN_TTL", cfg.Admin.TokenTTL)

	cfg.Log.Level = env.str("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Development = env.boolean("LOG_DEVELOPMENT", cfg.Log.Development)

	return errors.Join(env.errs...)
}

// LoadDotEnv loads path if given, otherwise the first .env found walking up
// from the working directory. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil
	}
	for i := 0; i <= 6; i++ {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			return godotenv.Load(p)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil
}

// envReader reads prefixed variables and collects every parse failure, so
// one bad deployment shows all its mistakes at once.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func (r *envReader) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidEnv, EnvPrefix, key, value, err))
}

func (r *envReader) str(key, def string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return i
}

func (r *envReader) float(key string, def float64) float64 {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

// boolean accepts 1/true/yes and 0/false/no.
func (r *envReader) boolean(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	r.fail(key, v, errors.New("want 1/true/yes or 0/false/no"))
	return def
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

// list splits a comma-separated value, dropping empty items.
func (r *envReader) list(key string, def []string) []string {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
