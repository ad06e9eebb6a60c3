package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig namespace for every setting.
const EnvPrefix = "savdo"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Password  PasswordConfig
	OTP       OTPConfig
	Order     OrderConfig
	SMS       SMSConfig
	Outbox    OutboxConfig
	RateLimit RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SAVDO_APP_ENV" required:"true"`
	Port         string `envconfig:"SAVDO_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SAVDO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SAVDO_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"SAVDO_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SAVDO_DB_DSN"`

	Host     string `envconfig:"SAVDO_DB_HOST"`
	Port     int    `envconfig:"SAVDO_DB_PORT" default:"5432"`
	User     string `envconfig:"SAVDO_DB_USER"`
	Password string `envconfig:"SAVDO_DB_PASSWORD"`
	Name     string `envconfig:"SAVDO_DB_NAME"`
	SSLMode  string `envconfig:"SAVDO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SAVDO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SAVDO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SAVDO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SAVDO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SAVDO_REDIS_URL"`
	Address      string        `envconfig:"SAVDO_REDIS_ADDR"`
	Password     string        `envconfig:"SAVDO_REDIS_PASSWORD"`
	DB           int           `envconfig:"SAVDO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SAVDO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SAVDO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SAVDO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SAVDO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SAVDO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SAVDO_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SAVDO_JWT_ISSUER" default:"savdo"`
	ExpirationMinutes      int    `envconfig:"SAVDO_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"SAVDO_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// AccessTokenTTLSeconds is the expires_in value surfaced to clients.
func (j JWTConfig) AccessTokenTTLSeconds() int {
	return j.ExpirationMinutes * 60
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SAVDO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SAVDO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SAVDO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SAVDO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SAVDO_ARGON_KEY_LEN" default:"32"`
}

type OTPConfig struct {
	TTL time.Duration `envconfig:"SAVDO_OTP_TTL" default:"5m"`
}

type OrderConfig struct {
	ShippingFee string `envconfig:"SAVDO_ORDER_SHIPPING_FEE" default:"5.00"`
}

type SMSConfig struct {
	BaseURL     string        `envconfig:"SAVDO_SMS_BASE_URL" default:"https://notify.eskiz.uz/api"`
	Email       string        `envconfig:"SAVDO_SMS_EMAIL"`
	Password    string        `envconfig:"SAVDO_SMS_PASSWORD"`
	Sender      string        `envconfig:"SAVDO_SMS_SENDER" default:"4546"`
	CallbackURL string        `envconfig:"SAVDO_SMS_CALLBACK_URL"`
	Timeout     time.Duration `envconfig:"SAVDO_SMS_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"SAVDO_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"SAVDO_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"SAVDO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsPort  string        `envconfig:"SAVDO_OUTBOX_METRICS_PORT" default:"9090"`
}

type RateLimitConfig struct {
	AuthWindow     time.Duration `envconfig:"SAVDO_RATE_LIMIT_AUTH_WINDOW" default:"1m"`
	AuthPhoneLimit int           `envconfig:"SAVDO_RATE_LIMIT_AUTH_PHONE_LIMIT" default:"5"`
	AuthIPLimit    int           `envconfig:"SAVDO_RATE_LIMIT_AUTH_IP_LIMIT" default:"20"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for env, val := range map[string]string{
		"SAVDO_DB_HOST": db.Host,
		"SAVDO_DB_USER": db.User,
		"SAVDO_DB_NAME": db.Name,
	} {
		if val == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either SAVDO_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
