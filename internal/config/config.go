package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/softball-stats/internal/platform/logging"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"

	RateLimitBackendLocal = "local"
	RateLimitBackendRedis = "redis"

	ArchiveBackendMemory   = "memory"
	ArchiveBackendPostgres = "postgres"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           logging.Level
	CORSAllowedOrigins []string
	SwaggerEnabled     bool

	NCAABaseURL               string
	NCAAAPIKey                string
	NCAAUserAgent             string
	NCAATimeout               time.Duration
	NCAAMinRequestInterval    time.Duration
	NCAAMaxPages              int
	NCAARateLimitBackend      string
	NCAARateLimitKey          string
	NCAACircuitEnabled        bool
	NCAACircuitFailureCount   int
	NCAACircuitOpenTimeout    time.Duration
	NCAACircuitHalfOpenMaxReq int

	CacheEnabled bool
	CacheBackend string
	CacheTTL        time.Duration
	CacheMaxEntries int
	CachePrefix     string
	RedisURL        string

	WarmupEnabled  bool
	WarmupInterval time.Duration
	WarmupWorkers  int

	ArchiveEnabled bool
	ArchiveBackend string
	DBURL          string

	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	UptraceSampleRatio         float64
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	swaggerDefault := "true"
	if appEnv == EnvProd {
		swaggerDefault = "false"
	}
	swaggerEnabled, err := strconv.ParseBool(getEnv("SWAGGER_ENABLED", swaggerDefault))
	if err != nil {
		return Config{}, fmt.Errorf("parse SWAGGER_ENABLED: %w", err)
	}

	readTimeout, err := getEnvAsDuration("APP_READ_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	// Cold leaderboards walk many pages at one request per second.
	writeTimeout, err := getEnvAsDuration("APP_WRITE_TIMEOUT", "90s")
	if err != nil {
		return Config{}, err
	}
	shutdownTimeout, err := getEnvAsDuration("APP_SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "softball-stats-api"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		ShutdownTimeout:    shutdownTimeout,
		LogLevel:           logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		SwaggerEnabled:     swaggerEnabled,
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	if err := loadNCAA(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadCache(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadArchive(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadNCAA(cfg *Config) error {
	var err error

	cfg.NCAABaseURL = strings.TrimRight(strings.TrimSpace(getEnv("NCAA_BASE_URL", "https://ncaa-api.henrygd.me")), "/")
	cfg.NCAAAPIKey = strings.TrimSpace(getEnv("NCAA_API_KEY", ""))
	cfg.NCAAUserAgent = strings.TrimSpace(getEnv("NCAA_USER_AGENT", "College Softball App/1.0"))

	if cfg.NCAATimeout, err = getEnvAsDuration("NCAA_TIMEOUT", "15s"); err != nil {
		return err
	}
	if cfg.NCAATimeout <= 0 {
		return fmt.Errorf("NCAA_TIMEOUT must be > 0")
	}

	if cfg.NCAAMinRequestInterval, err = getEnvAsDuration("NCAA_MIN_REQUEST_INTERVAL", "1s"); err != nil {
		return err
	}
	if cfg.NCAAMinRequestInterval < time.Second {
		return fmt.Errorf("NCAA_MIN_REQUEST_INTERVAL must be >= 1s")
	}

	if cfg.NCAAMaxPages, err = getEnvAsInt("NCAA_MAX_PAGES", 50); err != nil {
		return fmt.Errorf("parse NCAA_MAX_PAGES: %w", err)
	}
	if cfg.NCAAMaxPages < 1 {
		return fmt.Errorf("NCAA_MAX_PAGES must be >= 1")
	}

	cfg.NCAARateLimitBackend = strings.ToLower(strings.TrimSpace(getEnv("NCAA_RATE_LIMIT_BACKEND", RateLimitBackendLocal)))
	switch cfg.NCAARateLimitBackend {
	case RateLimitBackendLocal, RateLimitBackendRedis:
	default:
		return fmt.Errorf("invalid NCAA_RATE_LIMIT_BACKEND %q: valid values are %s, %s", cfg.NCAARateLimitBackend, RateLimitBackendLocal, RateLimitBackendRedis)
	}
	cfg.NCAARateLimitKey = strings.TrimSpace(getEnv("NCAA_RATE_LIMIT_KEY", "softball:ratelimit:ncaa"))

	if cfg.NCAACircuitEnabled, err = getEnvAsBool("NCAA_CIRCUIT_ENABLED", "true"); err != nil {
		return err
	}
	if cfg.NCAACircuitFailureCount, err = getEnvAsInt("NCAA_CIRCUIT_FAILURE_COUNT", 5); err != nil {
		return fmt.Errorf("parse NCAA_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if cfg.NCAACircuitFailureCount < 1 {
		return fmt.Errorf("NCAA_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	if cfg.NCAACircuitOpenTimeout, err = getEnvAsDuration("NCAA_CIRCUIT_OPEN_TIMEOUT", "30s"); err != nil {
		return err
	}
	if cfg.NCAACircuitOpenTimeout <= 0 {
		return fmt.Errorf("NCAA_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	if cfg.NCAACircuitHalfOpenMaxReq, err = getEnvAsInt("NCAA_CIRCUIT_HALF_OPEN_MAX_REQ", 1); err != nil {
		return fmt.Errorf("parse NCAA_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if cfg.NCAACircuitHalfOpenMaxReq < 1 {
		return fmt.Errorf("NCAA_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	return nil
}

func loadCache(cfg *Config) error {
	var err error

	if cfg.CacheEnabled, err = getEnvAsBool("CACHE_ENABLED", "true"); err != nil {
		return err
	}
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(getEnv("CACHE_BACKEND", CacheBackendMemory)))
	switch cfg.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q: valid values are %s, %s", cfg.CacheBackend, CacheBackendMemory, CacheBackendRedis)
	}
	if cfg.CacheTTL, err = getEnvAsDuration("CACHE_TTL", "5m"); err != nil {
		return err
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be > 0")
	}
	if cfg.CacheMaxEntries, err = getEnvAsInt("CACHE_MAX_ENTRIES", 1024); err != nil {
		return fmt.Errorf("parse CACHE_MAX_ENTRIES: %w", err)
	}
	if cfg.CacheMaxEntries < 1 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be >= 1")
	}
	cfg.CachePrefix = strings.TrimSpace(getEnv("CACHE_PREFIX", "softball:"))
	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))

	needsRedis := (cfg.CacheEnabled && cfg.CacheBackend == CacheBackendRedis) || cfg.NCAARateLimitBackend == RateLimitBackendRedis
	if needsRedis && cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis or NCAA_RATE_LIMIT_BACKEND=redis")
	}

	if cfg.WarmupEnabled, err = getEnvAsBool("WARMUP_ENABLED", "false"); err != nil {
		return err
	}
	if cfg.WarmupInterval, err = getEnvAsDuration("WARMUP_INTERVAL", "10m"); err != nil {
		return err
	}
	if cfg.WarmupEnabled && cfg.WarmupInterval <= 0 {
		return fmt.Errorf("WARMUP_INTERVAL must be > 0 when WARMUP_ENABLED=true")
	}
	if cfg.WarmupWorkers, err = getEnvAsInt("WARMUP_WORKERS", 2); err != nil {
		return fmt.Errorf("parse WARMUP_WORKERS: %w", err)
	}
	if cfg.WarmupWorkers < 1 {
		return fmt.Errorf("WARMUP_WORKERS must be >= 1")
	}

	return nil
}

func loadArchive(cfg *Config) error {
	var err error

	if cfg.ArchiveEnabled, err = getEnvAsBool("ARCHIVE_ENABLED", "false"); err != nil {
		return err
	}
	cfg.ArchiveBackend = strings.ToLower(strings.TrimSpace(getEnv("ARCHIVE_BACKEND", ArchiveBackendPostgres)))
	switch cfg.ArchiveBackend {
	case ArchiveBackendMemory, ArchiveBackendPostgres:
	default:
		return fmt.Errorf("invalid ARCHIVE_BACKEND %q: valid values are %s, %s", cfg.ArchiveBackend, ArchiveBackendMemory, ArchiveBackendPostgres)
	}
	cfg.DBURL = strings.TrimSpace(getEnv("DB_URL", ""))
	if cfg.ArchiveEnabled && cfg.ArchiveBackend == ArchiveBackendPostgres && cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required when ARCHIVE_ENABLED=true and ARCHIVE_BACKEND=postgres")
	}
	return nil
}

func loadObservability(cfg *Config) error {
	var err error

	if cfg.UptraceEnabled, err = getEnvAsBool("UPTRACE_ENABLED", "false"); err != nil {
		return err
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if cfg.UptraceLogsEnabled, err = getEnvAsBool("UPTRACE_LOGS_ENABLED", "false"); err != nil {
		return err
	}
	if cfg.UptraceSampleRatio, err = getEnvAsFloat("UPTRACE_SAMPLE_RATIO", 1); err != nil {
		return err
	}
	if cfg.UptraceSampleRatio < 0 || cfg.UptraceSampleRatio > 1 {
		return fmt.Errorf("UPTRACE_SAMPLE_RATIO must be between 0 and 1")
	}

	if cfg.PprofEnabled, err = getEnvAsBool("PPROF_ENABLED", "false"); err != nil {
		return err
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if cfg.PprofEnabled && cfg.PprofAddr == "" {
		return fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	if cfg.PyroscopeEnabled, err = getEnvAsBool("PYROSCOPE_ENABLED", "false"); err != nil {
		return err
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	if cfg.PyroscopeUploadRate, err = getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", "15s"); err != nil {
		return err
	}
	if cfg.PyroscopeUploadRate <= 0 {
		return fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))

	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func getEnvAsBool(key, fallback string) (bool, error) {
	out, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
