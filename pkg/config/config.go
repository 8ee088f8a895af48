package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Source   SourceConfig
	Fetcher  FetcherConfig
	Parser   ParserConfig
	Search   SearchConfig
	Snapshot SnapshotConfig
	SQLite   SQLiteConfig
	Server   ServerConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type SourceConfig struct {
	Path         string
	LinkKeywords []string
	HeaderRow    int
}

type FetcherConfig struct {
	Dir         string
	Workers     int
	MaxAttempts int
	TimeoutSec  int
}

// ParserConfig carries the validation patterns for identifier and
// class-code cells. They are configuration rather than constants so
// the swap heuristic can be tuned against real source documents.
type ParserConfig struct {
	IDPattern      string
	ClassPattern   string
	NameKeywords   []string
	IDKeywords     []string
	ClassKeywords  []string
	ScoreKeywords  []string
	OrdinalKeyword string
}

type SearchConfig struct {
	MaxResults int
}

type SnapshotConfig struct {
	Dir   string
	Merge bool
}

type SQLiteConfig struct {
	Path string
}

type ServerConfig struct {
	Host                 string
	Port                 int
	ReadTimeout          int
	WriteTimeout         int
	MaxRequestsPerMinute int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/nrl-tracker")

	viper.SetEnvPrefix("NRL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("source.path", "data/danhsachct.xlsx")
	viper.SetDefault("source.linkKeywords", []string{"link", "sheet"})
	viper.SetDefault("source.headerRow", 2)

	viper.SetDefault("fetcher.dir", "data/downloaded")
	viper.SetDefault("fetcher.workers", 4)
	viper.SetDefault("fetcher.maxAttempts", 3)
	viper.SetDefault("fetcher.timeoutSec", 30)

	viper.SetDefault("parser.idPattern", `^\d{8,}$`)
	viper.SetDefault("parser.classPattern", `^\d{2}\p{L}+\d*$`)
	viper.SetDefault("parser.nameKeywords", []string{"họ", "tên"})
	viper.SetDefault("parser.idKeywords", []string{"mssv", "mã sv", "mã sinh viên"})
	viper.SetDefault("parser.classKeywords", []string{"lớp", "trường"})
	viper.SetDefault("parser.scoreKeywords", []string{"nrl", "điểm"})
	viper.SetDefault("parser.ordinalKeyword", "stt")

	viper.SetDefault("search.maxResults", 10)

	viper.SetDefault("snapshot.dir", "data")
	viper.SetDefault("snapshot.merge", true)

	viper.SetDefault("sqlite.path", "data/tracker.db")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.maxRequestsPerMinute", 120)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 300)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
