package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"gradeflow"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address  string `envconfig:"GRADEFLOW_ADDRESS" default:":3443"`
	LogLevel string `envconfig:"GRADEFLOW_LOG_LEVEL" default:"info"`
	Oracle   oracleConfig
}

// oracleConfig carries the scoring oracle endpoint and the rate budget the
// dispatcher enforces. The defaults mirror the oracle's published limits:
// 5 requests per minute, so one call every 12 seconds.
type oracleConfig struct {
	URL            string        `envconfig:"GRADEFLOW_ORACLE_URL" default:"http://localhost:8090/v1/score"`
	APIKey         string        `envconfig:"GRADEFLOW_ORACLE_API_KEY" default:""`
	Model          string        `envconfig:"GRADEFLOW_ORACLE_MODEL" default:"grader-large"`
	RequestTimeout time.Duration `envconfig:"GRADEFLOW_ORACLE_REQUEST_TIMEOUT" default:"5m"`
	MinInterval    time.Duration `envconfig:"GRADEFLOW_ORACLE_MIN_INTERVAL" default:"12s"`
	MaxAttempts    int           `envconfig:"GRADEFLOW_ORACLE_MAX_ATTEMPTS" default:"3"`
	BackoffBase    time.Duration `envconfig:"GRADEFLOW_ORACLE_BACKOFF_BASE" default:"15s"`
	RateLimitFloor time.Duration `envconfig:"GRADEFLOW_ORACLE_RATE_LIMIT_FLOOR" default:"30s"`
	QueueDepth     int           `envconfig:"GRADEFLOW_ORACLE_QUEUE_DEPTH" default:"64"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}
