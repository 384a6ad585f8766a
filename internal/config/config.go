package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	kconfig "github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-sql-driver/mysql"
)

const envPrefix = "RAILWAY_"

type Config struct {
	HTTPAddr    string      `json:"http_addr"`
	GRPCAddr    string      `json:"grpc_addr"`
	LogLevel    string      `json:"log_level"`
	AdminAPIKey string      `json:"admin_api_key"`
	MySQL       MySQL       `json:"mysql"`
	Redis       Redis       `json:"redis"`
	Reservation Reservation `json:"reservation"`
	SPIFFE      SPIFFE      `json:"spiffe"`
}

type MySQL struct {
	Addr               string `json:"addr"`
	User               string `json:"user"`
	Password           string `json:"password"`
	Database           string `json:"database"`
	MaxOpenConns       int    `json:"max_open_conns"`
	MaxIdleConns       int    `json:"max_idle_conns"`
	ConnMaxLifetimeSec int    `json:"conn_max_lifetime_sec"`
	LockWaitTimeoutSec int    `json:"lock_wait_timeout_sec"`
}

// Redis with an empty Addr disables the sold-out cache.
type Redis struct {
	Addr     string `json:"addr"`
	PoolSize int    `json:"pool_size"`
}

type Reservation struct {
	UnitTimeoutSec int `json:"unit_timeout_sec"`
}

// SPIFFE enables mTLS on the gRPC listener when every field is set.
type SPIFFE struct {
	TrustDomain string `json:"trust_domain"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	BundleFile  string `json:"bundle_file"`
}

func Default() *Config {
	return &Config{
		HTTPAddr: ":8080",
		GRPCAddr: ":50051",
		LogLevel: "info",
		MySQL: MySQL{
			Addr:               "localhost:3306",
			User:               "root",
			Password:           "root",
			Database:           "railway",
			MaxOpenConns:       50,
			MaxIdleConns:       25,
			ConnMaxLifetimeSec: 300,
			LockWaitTimeoutSec: 5,
		},
		Redis: Redis{
			PoolSize: 100,
		},
		Reservation: Reservation{
			UnitTimeoutSec: 10,
		},
	}
}

// Load layers defaults, the optional YAML/JSON file at path and RAILWAY_*
// environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		c := kconfig.New(kconfig.WithSource(file.NewSource(path)))
		defer c.Close()

		if err := c.Load(); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := c.Scan(cfg); err != nil {
			return nil, fmt.Errorf("scan config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.GRPCAddr, "GRPC_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.AdminAPIKey, "ADMIN_API_KEY")

	setString(&c.MySQL.Addr, "MYSQL_ADDR")
	setString(&c.MySQL.User, "MYSQL_USER")
	setString(&c.MySQL.Password, "MYSQL_PASSWORD")
	setString(&c.MySQL.Database, "MYSQL_DATABASE")
	setString(&c.Redis.Addr, "REDIS_ADDR")

	setString(&c.SPIFFE.TrustDomain, "SPIFFE_TRUST_DOMAIN")
	setString(&c.SPIFFE.CertFile, "SPIFFE_CERT_FILE")
	setString(&c.SPIFFE.KeyFile, "SPIFFE_KEY_FILE")
	setString(&c.SPIFFE.BundleFile, "SPIFFE_BUNDLE_FILE")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.MySQL.MaxOpenConns, "MYSQL_MAX_OPEN_CONNS"},
		{&c.MySQL.MaxIdleConns, "MYSQL_MAX_IDLE_CONNS"},
		{&c.MySQL.LockWaitTimeoutSec, "MYSQL_LOCK_WAIT_TIMEOUT_SEC"},
		{&c.Redis.PoolSize, "REDIS_POOL_SIZE"},
		{&c.Reservation.UnitTimeoutSec, "UNIT_TIMEOUT_SEC"},
	}
	for _, v := range ints {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func (c *Config) Validate() error {
	if c.MySQL.Addr == "" || c.MySQL.Database == "" {
		return fmt.Errorf("mysql addr and database are required")
	}
	if c.MySQL.LockWaitTimeoutSec < 1 {
		return fmt.Errorf("mysql.lock_wait_timeout_sec must be at least 1")
	}
	// The store's lock wait has to expire before the unit deadline so a
	// contended row surfaces as a lock timeout rather than a cancelled query.
	if c.Reservation.UnitTimeoutSec <= c.MySQL.LockWaitTimeoutSec {
		return fmt.Errorf("reservation.unit_timeout_sec (%d) must exceed mysql.lock_wait_timeout_sec (%d)",
			c.Reservation.UnitTimeoutSec, c.MySQL.LockWaitTimeoutSec)
	}
	return nil
}

// DSN sets innodb_lock_wait_timeout on every pooled session, bounding how
// long a reservation waits for a contended seat counter.
func (m MySQL) DSN() string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = m.Addr
	cfg.User = m.User
	cfg.Passwd = m.Password
	cfg.DBName = m.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{
		"innodb_lock_wait_timeout": strconv.Itoa(m.LockWaitTimeoutSec),
	}
	return cfg.FormatDSN()
}

func (m MySQL) ConnMaxLifetime() time.Duration {
	return time.Duration(m.ConnMaxLifetimeSec) * time.Second
}

func (r Reservation) UnitTimeout() time.Duration {
	return time.Duration(r.UnitTimeoutSec) * time.Second
}

func (s SPIFFE) Enabled() bool {
	return s.TrustDomain != "" && s.CertFile != "" && s.KeyFile != "" && s.BundleFile != ""
}
