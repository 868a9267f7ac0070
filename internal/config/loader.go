package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/tuition-scheduler/internal/logging"
	"github.com/example/tuition-scheduler/internal/timetable"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "TUITION"

// Config captures environment driven configuration values for the tuition service.
type Config struct {
	HTTPPort           int
	SQLiteDSN          string
	LogLevel           string
	Grid               timetable.Grid
	APIBaseURL         string
	APITimeout         time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CacheTTL           time.Duration
	RateLimitPerMinute int
	// TrustedProxies are the peers whose forwarding headers identify the client.
	TrustedProxies []netip.Prefix
}

// UseRedis reports whether a Redis address was configured.
func (c Config) UseRedis() bool {
	return c.RedisAddr != ""
}

// Load reads ./.env when present and then the TUITION_* environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is ignored; variables
// already set in the process win over the file.
func LoadFile(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SQLITE_DSN", "data/tuition.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("GRID_START_HOUR", strconv.Itoa(timetable.DefaultGridStartHour))
	v.SetDefault("PIXELS_PER_MINUTE", "1")
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", "0")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", "600")
	v.SetDefault("TRUSTED_PROXIES", "")

	return parse(v)
}

func parse(v *viper.Viper) (Config, error) {
	var cfg Config
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)
	key := func(name string) string { return EnvPrefix + "_" + name }
	get := func(name string) string { return strings.TrimSpace(v.GetString(name)) }

	if port, err := strconv.Atoi(get("HTTP_PORT")); err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, key("HTTP_PORT"))
	} else {
		cfg.HTTPPort = port
	}

	if cfg.SQLiteDSN = get("SQLITE_DSN"); cfg.SQLiteDSN == "" {
		missing = append(missing, key("SQLITE_DSN"))
	}

	cfg.LogLevel = strings.ToLower(get("LOG_LEVEL"))
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		invalid = append(invalid, key("LOG_LEVEL"))
	}

	if hour, err := strconv.Atoi(get("GRID_START_HOUR")); err != nil || hour < 0 || hour > 23 {
		invalid = append(invalid, key("GRID_START_HOUR"))
	} else {
		cfg.Grid.StartHour = hour
	}
	if ppm, err := strconv.ParseFloat(get("PIXELS_PER_MINUTE"), 64); err != nil || ppm <= 0 {
		invalid = append(invalid, key("PIXELS_PER_MINUTE"))
	} else {
		cfg.Grid.PixelsPerMinute = ppm
	}

	if cfg.APIBaseURL = strings.TrimRight(get("API_BASE_URL"), "/"); cfg.APIBaseURL == "" {
		missing = append(missing, key("API_BASE_URL"))
	}

	cfg.APITimeout = parsePositiveDuration(get("API_TIMEOUT"), key("API_TIMEOUT"), &invalid)

	cfg.RedisAddr = get("REDIS_ADDR")
	cfg.RedisPassword = v.GetString("REDIS_PASSWORD")
	if db, err := strconv.Atoi(get("REDIS_DB")); err != nil || db < 0 {
		invalid = append(invalid, key("REDIS_DB"))
	} else {
		cfg.RedisDB = db
	}

	cfg.CacheTTL = parsePositiveDuration(get("CACHE_TTL"), key("CACHE_TTL"), &invalid)

	if limit, err := strconv.Atoi(get("RATE_LIMIT_PER_MINUTE")); err != nil || limit < 0 {
		invalid = append(invalid, key("RATE_LIMIT_PER_MINUTE"))
	} else {
		cfg.RateLimitPerMinute = limit
	}

	if proxies, err := parsePrefixes(get("TRUSTED_PROXIES")); err != nil {
		invalid = append(invalid, key("TRUSTED_PROXIES"))
	} else {
		cfg.TrustedProxies = proxies
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func parsePositiveDuration(value, name string, invalid *[]string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*invalid = append(*invalid, name)
		return 0
	}
	return d
}

// parsePrefixes reads a comma separated list of addresses and CIDR ranges. A bare address
// becomes a single-host prefix.
func parsePrefixes(value string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			prefix, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
