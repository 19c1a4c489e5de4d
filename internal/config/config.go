package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Server configures the faked HMC.
type Server struct {
	Addr     string
	HMCName  string
	Store    string // "memory" | "mysql"
	LogLevel string

	DBHost         string
	DBPort         string
	DBName         string
	DBUser         string
	DBPassword     string
	DBCharset      string
	DBCollation    string
	DBTimeout      string
	DBReadTimeout  string
	DBWriteTimeout string
	DBLockName     string
	DBLockTimeout  int

	JWTSecret  string
	SessionTTL time.Duration

	AdminUserID   string
	AdminPassword string
	SeedFile      string

	JobRetention time.Duration
	ReapInterval time.Duration
}

// LoadServer reads the faked HMC configuration from the environment.
func LoadServer() Server {
	return Server{
		Addr:     getenv("FAKEHMC_ADDR", ":6794"),
		HMCName:  getenv("FAKEHMC_NAME", "fakehmc"),
		Store:    strings.ToLower(getenv("FAKEHMC_STORE", "memory")),
		LogLevel: LogLevel(),

		DBHost:         getenv("DB_HOST", "db"),
		DBPort:         getenv("DB_PORT", "3306"),
		DBName:         getenv("DB_NAME", "fakehmc"),
		DBUser:         getenv("DB_USER", "appuser"),
		DBPassword:     getenv("DB_PASSWORD", "apppass"),
		DBCharset:      getenv("DB_CHARSET", "utf8mb4"),
		DBCollation:    getenv("DB_COLLATION", "utf8mb4_unicode_ci"),
		DBTimeout:      getenv("DB_TIMEOUT", "5s"),
		DBReadTimeout:  getenv("DB_READ_TIMEOUT", "5s"),
		DBWriteTimeout: getenv("DB_WRITE_TIMEOUT", "5s"),
		DBLockName:     getenv("DB_LOCK_NAME", "fakehmc-schema"),
		DBLockTimeout:  atoi(getenv("DB_LOCK_TIMEOUT", "10"), 10),

		JWTSecret:  getenv("FAKEHMC_JWT_SECRET", "change-me-in-prod"),
		SessionTTL: duration(getenv("FAKEHMC_SESSION_TTL", "1h"), time.Hour),

		AdminUserID:   getenv("FAKEHMC_ADMIN_USERID", "admin"),
		AdminPassword: os.Getenv("FAKEHMC_ADMIN_PASSWORD"),
		SeedFile:      os.Getenv("FAKEHMC_SEED_FILE"),

		JobRetention: duration(getenv("FAKEHMC_JOB_RETENTION", "10m"), 10*time.Minute),
		ReapInterval: duration(getenv("FAKEHMC_REAP_INTERVAL", "1m"), time.Minute),
	}
}

// DSN returns the MySQL data source name for the SQL store.
func (c Server) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.DBUser
	cfg.Passwd = c.DBPassword
	cfg.Net = "tcp"
	cfg.Addr = c.DBHost + ":" + c.DBPort
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = c.DBCharset
	cfg.Params["collation"] = c.DBCollation
	cfg.Params["timeout"] = c.DBTimeout
	cfg.Params["readTimeout"] = c.DBReadTimeout
	cfg.Params["writeTimeout"] = c.DBWriteTimeout
	return cfg.FormatDSN()
}

// Client holds the defaults of the zhmc command line client that are not
// exposed as flags.
type Client struct {
	Port            int
	JobPollInterval time.Duration
	JobTimeout      time.Duration
	StatusTimeout   time.Duration
	AnsibleForks    int
}

// LoadClient reads the client defaults from the environment.
func LoadClient() Client {
	return Client{
		Port:            atoi(getenv("ZHMC_PORT", "6794"), 6794),
		JobPollInterval: duration(getenv("ZHMC_JOB_POLL_INTERVAL", "1s"), time.Second),
		JobTimeout:      duration(getenv("ZHMC_JOB_TIMEOUT", "15m"), 15*time.Minute),
		StatusTimeout:   duration(getenv("ZHMC_STATUS_TIMEOUT", "5m"), 5*time.Minute),
		AnsibleForks:    EnvForks(5),
	}
}

// LogLevel reads the LOG_LEVEL environment variable, defaulting to "info".
func LogLevel() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if v == "" {
		return "info"
	}
	return v
}

// EnvForks parses ANSIBLE_FORKS from the environment with a default fallback.
func EnvForks(def int) int {
	if v := strings.TrimSpace(os.Getenv("ANSIBLE_FORKS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
