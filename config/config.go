package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Antom       AntomConfig       `mapstructure:"antom"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// AntomConfig 支付网关配置，sandbox / production 由 Production 切换
type AntomConfig struct {
	Production     bool   `mapstructure:"production"`
	ClientID       string `mapstructure:"client_id"`
	KeyVersion     string `mapstructure:"key_version"`
	PrivateKey     string `mapstructure:"private_key"`      // PEM 内容
	PrivateKeyPath string `mapstructure:"private_key_path"` // 或 PEM 文件路径
	PublicKey      string `mapstructure:"public_key"`       // 网关公钥，为空时用私钥对应公钥验签
	BaseURL        string `mapstructure:"base_url"`
	SandboxPath    string `mapstructure:"sandbox_path"`
	ProductionPath string `mapstructure:"production_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	NotifyURL      string `mapstructure:"notify_url"`
	NotifyPath     string `mapstructure:"notify_path"` // 验签时使用的回调路径
	RedirectURL    string `mapstructure:"redirect_url"`
}

// BasePath 当前环境的 API 前缀
func (c AntomConfig) BasePath() string {
	if c.Production {
		if c.ProductionPath != "" {
			return c.ProductionPath
		}
		return "/ams/api/v1"
	}
	if c.SandboxPath != "" {
		return c.SandboxPath
	}
	return "/ams/sandbox/api/v1"
}

type LedgerConfig struct {
	RefreshIntervalDays    int `mapstructure:"refresh_interval_days"`
	RefreshMinDurationDays int `mapstructure:"refresh_min_duration_days"`
	RefreshCheckHours      int `mapstructure:"refresh_check_hours"`
}

type QueueConfig struct {
	ReconcileQueue string `mapstructure:"reconcile_queue"`
	MaxWorkers     int    `mapstructure:"max_workers"`
}

type IdempotencyConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

func Load(configPath string) (*Config, error) {
	// 优先读取 config.local.yaml（包含真实密钥，不提交到 git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("antom.key_version", "1")
	viper.SetDefault("antom.base_url", "https://open-sea-global.alipay.com")
	viper.SetDefault("antom.timeout_seconds", 30)
	viper.SetDefault("antom.notify_path", "/api/v1/payment/notify")
	viper.SetDefault("ledger.refresh_interval_days", 30)
	viper.SetDefault("ledger.refresh_min_duration_days", 30)
	viper.SetDefault("ledger.refresh_check_hours", 24)
	viper.SetDefault("queue.reconcile_queue", "payment_reconcile")
	viper.SetDefault("queue.max_workers", 2)
	viper.SetDefault("idempotency.ttl_hours", 24)
}
