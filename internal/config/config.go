package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maltedev/mercadona-scraper/internal/models"
	"github.com/spf13/viper"
)

const EnvPrefix = "MERCADONA"

type Config struct {
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Output   OutputConfig   `mapstructure:"output"`
	Image    ImageConfig    `mapstructure:"image"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ScraperConfig struct {
	CatalogURL        string        `mapstructure:"catalog_url"`
	PostalCode        string        `mapstructure:"postal_code"`
	SkipNonFood       bool          `mapstructure:"skip_non_food"`
	NonFood           []string      `mapstructure:"non_food"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ProductSettle     time.Duration `mapstructure:"product_settle"`
	SubcategorySettle time.Duration `mapstructure:"subcategory_settle"`
	CategorySettle    time.Duration `mapstructure:"category_settle"`
	SettleJitter      time.Duration `mapstructure:"settle_jitter"`
	NavigationRetries int           `mapstructure:"navigation_retries"`
}

type OutputConfig struct {
	RecordsFile string `mapstructure:"records_file"`
	Delimiter   string `mapstructure:"delimiter"`
	ErrorLog    string `mapstructure:"error_log"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

// DelimiterRune returns the record separator. Validate guarantees it is a
// single rune.
func (o OutputConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(o.Delimiter)
	return r
}

type ImageConfig struct {
	ThumbnailSize int `mapstructure:"thumbnail_size"`
	FullSize      int `mapstructure:"full_size"`
}

type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	AcceptLanguage string        `mapstructure:"accept_language"`
	Locale         string        `mapstructure:"locale"`
	TimezoneID     string        `mapstructure:"timezone"`
	UserAgent      string        `mapstructure:"user_agent"`
	ProxyServer    string        `mapstructure:"proxy_server"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Stream       string        `mapstructure:"stream"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.catalog_url", "https://tienda.mercadona.es/categories")
	v.SetDefault("scraper.postal_code", "23009")
	v.SetDefault("scraper.skip_non_food", true)
	v.SetDefault("scraper.non_food", models.DefaultNonFood)
	v.SetDefault("scraper.wait_timeout", 10*time.Second)
	v.SetDefault("scraper.poll_interval", 250*time.Millisecond)
	v.SetDefault("scraper.product_settle", 3*time.Second)
	v.SetDefault("scraper.subcategory_settle", 3*time.Second)
	v.SetDefault("scraper.category_settle", 2*time.Second)
	v.SetDefault("scraper.settle_jitter", time.Duration(0))
	v.SetDefault("scraper.navigation_retries", 3)

	v.SetDefault("output.records_file", "mercadona.csv")
	v.SetDefault("output.delimiter", "$")
	v.SetDefault("output.error_log", "errors.log")
	v.SetDefault("output.snapshot_dir", "error_htmls")

	v.SetDefault("image.thumbnail_size", 300)
	v.SetDefault("image.full_size", 1600)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.timeout", 30*time.Second)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.accept_language", "es-ES,es;q=0.9,en;q=0.8")
	v.SetDefault("browser.locale", "es-ES")
	v.SetDefault("browser.timezone", "Europe/Madrid")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.proxy_server", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "mercadona")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "stream:mercadona_products")
	v.SetDefault("redis.poll_interval", 5*time.Second)
	v.SetDefault("redis.batch_size", 100)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8085)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// New returns a viper instance with defaults and environment binding but no
// config file. Callers may bind flags to it before calling Decode.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads defaults, the optional YAML file at path and MERCADONA_*
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Decode unmarshals and validates v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if !isPostalCode(c.Scraper.PostalCode) {
		errs = append(errs, fmt.Errorf("scraper.postal_code must be five digits, got %q", c.Scraper.PostalCode))
	}
	if c.Scraper.CatalogURL == "" {
		errs = append(errs, errors.New("scraper.catalog_url is required"))
	}
	if c.Scraper.WaitTimeout <= 0 {
		errs = append(errs, errors.New("scraper.wait_timeout must be positive"))
	}
	if c.Scraper.PollInterval <= 0 {
		errs = append(errs, errors.New("scraper.poll_interval must be positive"))
	}
	if c.Scraper.ProductSettle < 0 || c.Scraper.SubcategorySettle < 0 || c.Scraper.CategorySettle < 0 || c.Scraper.SettleJitter < 0 {
		errs = append(errs, errors.New("settle delays cannot be negative"))
	}

	if utf8.RuneCountInString(c.Output.Delimiter) != 1 {
		errs = append(errs, fmt.Errorf("output.delimiter must be a single character, got %q", c.Output.Delimiter))
	} else if c.Output.Delimiter == "," {
		errs = append(errs, errors.New("output.delimiter cannot be a comma"))
	}
	if c.Output.RecordsFile == "" {
		errs = append(errs, errors.New("output.records_file is required"))
	}
	if c.Output.ErrorLog == "" {
		errs = append(errs, errors.New("output.error_log is required"))
	}

	if c.Image.ThumbnailSize <= 0 || c.Image.FullSize <= 0 {
		errs = append(errs, errors.New("image sizes must be positive"))
	}

	if c.Browser.Timeout <= 0 {
		errs = append(errs, errors.New("browser.timeout must be positive"))
	}

	if c.Database.Enabled && c.Database.URL == "" {
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required when the database is enabled"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required when the database is enabled"))
		}
	}

	if c.Redis.Enabled {
		if !c.Database.Enabled {
			errs = append(errs, errors.New("redis relay requires database.enabled"))
		}
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
		}
		if c.Redis.PollInterval <= 0 {
			errs = append(errs, errors.New("redis.poll_interval must be positive"))
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}

	return errors.Join(errs...)
}

func isPostalCode(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
