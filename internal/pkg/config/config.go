package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection,
//   vSphere credentials) and security settings
// - default: Values common across all environments (poll interval, grace
//   window, duration bounds)
// -----------------------------------------------------------------------------

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	CORS      CORSConfig
	Log       LogConfig
	JWT       JWTConfig
	Booking   BookingConfig
	Scheduler SchedulerConfig
	Compute   ComputeConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
}

type JWTConfig struct {
	Secret              string `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenDuration string `envconfig:"JWT_ACCESS_TOKEN_DURATION" default:"24h"`
}

// BookingConfig bounds accepted reservation windows and controls whether a
// freshly created booking is approved without an operator action.
type BookingConfig struct {
	MinDuration      time.Duration `envconfig:"BOOKING_MIN_DURATION" default:"30m"`
	MaxDuration      time.Duration `envconfig:"BOOKING_MAX_DURATION" default:"6h"`
	AutoApprove      bool          `envconfig:"BOOKING_AUTO_APPROVE" default:"false"`
	AllowPastWindows bool          `envconfig:"BOOKING_ALLOW_PAST_WINDOWS" default:"false"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `envconfig:"SCHEDULER_POLL_INTERVAL" default:"5s"`
	MisfireGrace time.Duration `envconfig:"SCHEDULER_MISFIRE_GRACE" default:"5m"`
	Workers      int           `envconfig:"SCHEDULER_WORKERS" default:"4"`
	QueueSize    int           `envconfig:"SCHEDULER_QUEUE_SIZE" default:"128"`
}

// ComputeConfig identifies the shared lab VM and the disk template the
// workflow clones for each booking.
type ComputeConfig struct {
	VSphereURL      string `envconfig:"VSPHERE_URL" required:"true"`
	VSphereUser     string `envconfig:"VSPHERE_USER" required:"true"`
	VSpherePassword string `envconfig:"VSPHERE_PASSWORD" required:"true"`
	VSphereInsecure bool   `envconfig:"VSPHERE_INSECURE" default:"false"`
	TargetVM        string `envconfig:"COMPUTE_TARGET_VM" required:"true"`
	Datastore       string `envconfig:"COMPUTE_DATASTORE" required:"true"`
	SourceDiskPath  string `envconfig:"COMPUTE_SOURCE_DISK_PATH" required:"true"`
	ResourceType    string `envconfig:"COMPUTE_RESOURCE_TYPE" default:"kali"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		JWT: JWTConfig{
			Secret:              "test-secret",
			AccessTokenDuration: "1h",
		},
		Booking: BookingConfig{
			MinDuration: 30 * time.Minute,
			MaxDuration: 6 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 50 * time.Millisecond,
			MisfireGrace: 5 * time.Minute,
			Workers:      2,
		},
	}
}
