package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Cart         CartConfig
	Cron         CronConfig
	Import       ImportConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"PARTSDESK_APP_ENV" required:"true"`
	Port         string   `envconfig:"PARTSDESK_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PARTSDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PARTSDESK_LOG_WARN_STACK" default:"false"`
	Location     string   `envconfig:"PARTSDESK_APP_LOCATION" default:"Local"`
	CORSOrigins  []string `envconfig:"PARTSDESK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// TimeLocation resolves the location used for calendar-aligned reporting.
func (a AppConfig) TimeLocation() *time.Location {
	if a.Location == "" || strings.EqualFold(a.Location, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Location)
	if err != nil {
		return time.Local
	}
	return loc
}

type ServiceConfig struct {
	Kind string `envconfig:"PARTSDESK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PARTSDESK_DB_DSN"`
	Driver string `envconfig:"PARTSDESK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PARTSDESK_DB_HOST"`
	LegacyPort     int    `envconfig:"PARTSDESK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PARTSDESK_DB_USER"`
	LegacyPassword string `envconfig:"PARTSDESK_DB_PASSWORD"`
	LegacyName     string `envconfig:"PARTSDESK_DB_NAME"`
	LegacySSLMode  string `envconfig:"PARTSDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARTSDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARTSDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARTSDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARTSDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PARTSDESK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PARTSDESK_REDIS_ADDR"`
	Password     string        `envconfig:"PARTSDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARTSDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARTSDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARTSDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARTSDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARTSDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARTSDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PARTSDESK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PARTSDESK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PARTSDESK_JWT_EXPIRATION_MINUTES" required:"true"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PARTSDESK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PARTSDESK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PARTSDESK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PARTSDESK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PARTSDESK_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PARTSDESK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PARTSDESK_AUTO_MIGRATE" default:"false"`
}

type CartConfig struct {
	// TTL of zero disables the abandoned-cart sweep.
	TTL time.Duration `envconfig:"PARTSDESK_CART_TTL" default:"0"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PARTSDESK_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"PARTSDESK_CRON_LOCK_TTL" default:"10m"`
}

type ImportConfig struct {
	MaxUploadMB int           `envconfig:"PARTSDESK_IMPORT_MAX_UPLOAD_MB" default:"50"`
	LockTTL     time.Duration `envconfig:"PARTSDESK_IMPORT_LOCK_TTL" default:"30m"`
}

type RateLimitConfig struct {
	LoginWindow    time.Duration `envconfig:"PARTSDESK_LOGIN_RATE_WINDOW" default:"1m"`
	LoginIPLimit   int           `envconfig:"PARTSDESK_LOGIN_RATE_IP_LIMIT" default:"20"`
	LoginUserLimit int           `envconfig:"PARTSDESK_LOGIN_RATE_USER_LIMIT" default:"5"`
}

// MaxUploadBytes returns the import body limit in bytes.
func (i ImportConfig) MaxUploadBytes() int64 {
	if i.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return int64(i.MaxUploadMB) << 20
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
