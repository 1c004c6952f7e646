package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketWebhook string
	UseSSL        bool
	Region        string
}

type SecurityConfig struct {
	// Secret, audience and issuer of the externally issued bearer
	// credential (Supabase-style HS256 JWT).
	JWTSecret   string
	JWTAudience string
	JWTIssuer   string
}

type LiveKitConfig struct {
	APIKey    string
	APISecret string
	URL       string
	TokenTTL  time.Duration
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

type EntitlementConfig struct {
	// TrialSecondsLimit is the cumulative free allowance for users
	// without a usable subscription.
	TrialSecondsLimit int
	// PastDueGrace is how long after next_billing_at a past_due
	// subscription keeps access.
	PastDueGrace time.Duration
	// UsageResetGuard is the minimum gap between two billing-cycle
	// usage resets; duplicate charged deliveries inside it are ignored.
	UsageResetGuard time.Duration
}

type AgentConfig struct {
	Command     string
	Args        []string
	StopTimeout time.Duration
}

type JobsConfig struct {
	StaleSessionAge time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	LiveKit          LiveKitConfig
	Razorpay         RazorpayConfig
	Entitlement      EntitlementConfig
	Agent            AgentConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("VOICELINE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "" {
		return fmt.Errorf("livekit.apikey and livekit.apisecret are required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwtsecret is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketwebhook", "voiceline-webhook-archive")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtaudience", "authenticated")

	v.SetDefault("livekit.url", "wss://localhost:7880")
	v.SetDefault("livekit.tokenttl", "6h")

	v.SetDefault("entitlement.trialsecondslimit", 150)
	v.SetDefault("entitlement.pastduegrace", "72h")
	v.SetDefault("entitlement.usageresetguard", "600h") // 25 days

	v.SetDefault("agent.command", "python")
	v.SetDefault("agent.args", "agent.py")
	v.SetDefault("agent.stoptimeout", "5s")

	v.SetDefault("jobs.stalesessionage", "6h")
}
