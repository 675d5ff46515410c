package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Feeds     FeedsConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	DistDir        string
	LogFile        string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BodyLimit      int
	AllowedOrigins []string

	// TrustedProxies may set X-Forwarded-For. Requests from any other peer
	// are keyed on their socket address.
	TrustedProxies []string
}

// StorageConfig lists every on-disk location the server owns.
type StorageConfig struct {
	DataDir              string
	UsersDir             string
	LegacyDataFile       string
	SystemConfigFile     string
	DefaultTemplateFile  string
	VisitorsFile         string
	DockerStatusFile     string
	MusicDir             string
	BackgroundsDir       string
	MobileBackgroundsDir string
	IconsDir             string
}

type AuthConfig struct {
	SecretKey        string
	SecretGenerated  bool
	TokenTTL         time.Duration
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	BcryptCost       int
}

type FeedsConfig struct {
	HotCacheTTL       time.Duration
	MetaTimeout       time.Duration
	FeedTimeout       time.Duration
	MetaMaxBytes      int64
	WeiboURL          string
	NewsFeedURL       string
	WeatherBaseURL    string
	IPSources         []IPSource
	UserAgent         string
	PingTimeout       time.Duration
	DefaultPingTarget string
}

// IPSource is one upstream of the public IP lookup, tried in order.
type IPSource struct {
	Kind string // pconline | baidu | ipapi
	URL  string
}

type UploadConfig struct {
	MaxFileSize       int64
	ImageExtensions   []string
	MusicExtensions   []string
	IconExtensions    []string
	MaxImageDimension int
}

type RateLimitConfig struct {
	Capacity     int64
	RefillRate   int64
	RefillPeriod time.Duration
}

// RedisConfig is optional. An empty Address keeps limiter buckets in memory.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
}

// getProjectRoot finds the project root by looking for go.mod
func getProjectRoot() (string, error) {
	// Check if PROJECT_ROOT env var is set (useful for tests)
	if projectRoot := os.Getenv("PROJECT_ROOT"); projectRoot != "" {
		return projectRoot, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Running from an installed binary; fall back to the working directory.
			return os.Getwd()
		}
		dir = parent
	}
}

// resolvePath resolves a path relative to the project root if it's not absolute
func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func Load() (*Config, error) {
	root, err := getProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	dataDir := resolvePath(root, getEnv("DATA_DIR", "./data"))
	inData := func(key, name string) string {
		return resolvePath(root, getEnv(key, filepath.Join(dataDir, name)))
	}

	secret := os.Getenv("SECRET_KEY")
	generated := false
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate secret key: %w", err)
		}
		generated = true
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("PORT", 3000),
			DistDir:        resolvePath(root, getEnv("DIST_DIR", "./dist")),
			LogFile:        getEnv("LOG_FILE", "stdout"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("READ_TIMEOUT", 5*time.Minute),
			WriteTimeout:   0, // websocket connections are long-lived
			BodyLimit:      getEnvAsInt("BODY_LIMIT", 50*1024*1024),
			AllowedOrigins: getEnvAsList("WS_ALLOWED_ORIGINS", []string{"*"}),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", []string{"127.0.0.1", "::1"}),
		},
		Storage: StorageConfig{
			DataDir:              dataDir,
			UsersDir:             inData("USERS_DIR", "users"),
			LegacyDataFile:       inData("LEGACY_DATA_FILE", "data.json"),
			SystemConfigFile:     inData("SYSTEM_CONFIG_FILE", "system.json"),
			DefaultTemplateFile:  resolvePath(root, getEnv("DEFAULT_TEMPLATE_FILE", "./default.json")),
			VisitorsFile:         inData("VISITORS_FILE", "visitors.json"),
			DockerStatusFile:     inData("DOCKER_STATUS_FILE", "docker-status.json"),
			MusicDir:             resolvePath(root, getEnv("MUSIC_DIR", "./music")),
			BackgroundsDir:       inData("BACKGROUNDS_DIR", "backgrounds"),
			MobileBackgroundsDir: inData("MOBILE_BACKGROUNDS_DIR", "mobile_backgrounds"),
			IconsDir:             resolvePath(root, getEnv("ICONS_DIR", "./public/icons")),
		},
		Auth: AuthConfig{
			SecretKey:        secret,
			SecretGenerated:  generated,
			TokenTTL:         getEnvAsDuration("TOKEN_TTL", 72*time.Hour),
			MaxLoginAttempts: getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:  getEnvAsDuration("LOGIN_LOCKOUT", 15*time.Minute),
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 10),
		},
		Feeds: FeedsConfig{
			HotCacheTTL:    getEnvAsDuration("HOT_CACHE_TTL", time.Hour),
			MetaTimeout:    getEnvAsDuration("META_TIMEOUT", 8*time.Second),
			FeedTimeout:    getEnvAsDuration("FEED_TIMEOUT", 10*time.Second),
			MetaMaxBytes:   getEnvAsInt64("META_MAX_BYTES", 100*1024),
			WeiboURL:       getEnv("WEIBO_HOT_URL", "https://weibo.com/ajax/side/hotSearch"),
			NewsFeedURL:    getEnv("NEWS_FEED_URL", "https://www.chinanews.com.cn/rss/scroll-news.xml"),
			WeatherBaseURL: getEnv("WEATHER_BASE_URL", "https://wttr.in"),
			IPSources: []IPSource{
				{Kind: "pconline", URL: getEnv("IP_SOURCE_PCONLINE", "https://whois.pconline.com.cn/ipJson.jsp?json=true")},
				{Kind: "baidu", URL: getEnv("IP_SOURCE_BAIDU", "https://qifu-api.baidubce.com/ip/local/geo/v1/district")},
				{Kind: "ipapi", URL: getEnv("IP_SOURCE_IPAPI", "https://ipapi.co/json/")},
			},
			UserAgent:         getEnv("FEED_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"),
			PingTimeout:       getEnvAsDuration("PING_TIMEOUT", 5*time.Second),
			DefaultPingTarget: getEnv("PING_DEFAULT_TARGET", "8.8.8.8"),
		},
		Upload: UploadConfig{
			MaxFileSize:       getEnvAsInt64("MAX_FILE_SIZE", 50*1024*1024),
			ImageExtensions:   []string{".png", ".jpg", ".jpeg", ".svg", ".webp", ".gif"},
			MusicExtensions:   []string{".mp3", ".wav", ".ogg", ".m4a", ".flac"},
			IconExtensions:    []string{".png", ".jpg", ".jpeg", ".svg", ".webp", ".gif", ".ico"},
			MaxImageDimension: getEnvAsInt("MAX_IMAGE_DIMENSION", 8192),
		},
		RateLimit: RateLimitConfig{
			Capacity:     getEnvAsInt64("RATE_LIMIT_CAPACITY", 300),
			RefillRate:   getEnvAsInt64("RATE_LIMIT_REFILL", 20),
			RefillPeriod: getEnvAsDuration("RATE_LIMIT_PERIOD", time.Second),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.BodyLimit <= 0 {
		errors = append(errors, "body limit (BODY_LIMIT) must be > 0")
	}

	if c.Storage.DataDir == "" {
		errors = append(errors, "data directory (DATA_DIR) is required")
	}
	if c.Storage.UsersDir == "" {
		errors = append(errors, "users directory (USERS_DIR) is required")
	}

	if len(c.Auth.SecretKey) < 16 {
		errors = append(errors, "secret key (SECRET_KEY) must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		errors = append(errors, "token TTL must be > 0")
	}
	if c.Auth.MaxLoginAttempts <= 0 {
		errors = append(errors, "max login attempts must be > 0")
	}
	if c.Auth.LockoutDuration <= 0 {
		errors = append(errors, "login lockout duration must be > 0")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errors = append(errors, fmt.Sprintf("invalid bcrypt cost: %d (must be 4-31)", c.Auth.BcryptCost))
	}

	if c.Feeds.HotCacheTTL <= 0 {
		errors = append(errors, "hot cache TTL must be > 0")
	}
	if c.Feeds.MetaTimeout <= 0 || c.Feeds.FeedTimeout <= 0 {
		errors = append(errors, "feed timeouts must be > 0")
	}
	if c.Feeds.MetaMaxBytes <= 0 {
		errors = append(errors, "meta max bytes must be > 0")
	}

	if c.Upload.MaxFileSize <= 0 {
		errors = append(errors, fmt.Sprintf("invalid max file size: %d (must be > 0)", c.Upload.MaxFileSize))
	}

	if c.RateLimit.Capacity <= 0 {
		errors = append(errors, "rate limit capacity must be > 0")
	}
	if c.RateLimit.RefillRate <= 0 {
		errors = append(errors, "rate limit refill rate must be > 0")
	}
	if c.RateLimit.RefillPeriod <= 0 {
		errors = append(errors, "rate limit refill period must be > 0")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PrintSummary logs a summary of the loaded configuration
func (c *Config) PrintSummary() {
	fmt.Println("Configuration Summary:")
	fmt.Printf("  Server: %s\n", c.ServerAddress())
	fmt.Printf("  Data dir: %s\n", c.Storage.DataDir)
	fmt.Printf("  Secret key: %s\n", maskSecret(c.Auth.SecretKey))
	fmt.Printf("  Token TTL: %s\n", c.Auth.TokenTTL)
	fmt.Printf("  Login lockout: %d attempts / %s\n", c.Auth.MaxLoginAttempts, c.Auth.LockoutDuration)
	fmt.Printf("  Trusted proxies: %s\n", strings.Join(c.Server.TrustedProxies, ", "))
	fmt.Printf("  Hot cache TTL: %s\n", c.Feeds.HotCacheTTL)
	if c.Redis.Address != "" {
		fmt.Printf("  Redis: %s (DB: %d)\n", c.Redis.Address, c.Redis.DB)
	} else {
		fmt.Println("  Redis: disabled (in-memory rate limiting)")
	}
	fmt.Printf("  Rate Limit: %d requests/%s (capacity: %d)\n",
		c.RateLimit.RefillRate, c.RateLimit.RefillPeriod, c.RateLimit.Capacity)
}

func maskSecret(s string) string {
	if len(s) < 8 {
		return "***"
	}
	return s[:4] + "****"
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Helper functions to read environment variables with defaults
func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	valStr := os.Getenv(key)
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
