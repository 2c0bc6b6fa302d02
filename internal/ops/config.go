package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/yanun0323/errors"

	"powertrade/internal/model"
	"powertrade/internal/product"
	"powertrade/pkg/conn"
)

const (
	defaultLockTimeoutMillis = 5000
	defaultQueueCapacity     = 256
	defaultSweepInterval     = 30 * time.Second
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Postgres PostgresConfig  `json:"postgres"`
	Lock     LockConfig      `json:"lock"`
	Notify   NotifyConfig    `json:"notify"`
	Expiry   ExpiryConfig    `json:"expiry"`
	Profiler ProfilerConfig  `json:"profiler"`
	Products []ProductConfig `json:"products"`
}

// PostgresConfig describes the database connection.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// LockConfig bounds advisory lock waits.
type LockConfig struct {
	TimeoutMillis int64 `json:"timeoutMillis"`
}

// NotifyConfig sizes the lifecycle event queue.
type NotifyConfig struct {
	QueueCapacity int `json:"queueCapacity"`
}

// ExpiryConfig controls the validUntil sweep.
type ExpiryConfig struct {
	SweepIntervalSeconds int `json:"sweepIntervalSeconds"`
}

// ProfilerConfig enables continuous profiling when a server address is set.
type ProfilerConfig struct {
	ServerAddress   string `json:"serverAddress"`
	ApplicationName string `json:"applicationName"`
}

// ProductConfig is a catalog seed entry.
type ProductConfig struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	DeliveryFrom string `json:"deliveryFrom"`
	DeliveryTo   string `json:"deliveryTo"`
	IsActive     bool   `json:"isActive"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Postgres      conn.Option
	LockTimeout   int64
	QueueCapacity int
	SweepInterval time.Duration
	Profiler      ProfilerConfig
	Products      []model.Product
}

// Load reads a JSON config file and resolves defaults.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config")
	}

	products, err := resolveProducts(cfg.Products)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{
		Postgres: conn.Option{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		},
		LockTimeout:   cfg.Lock.TimeoutMillis,
		QueueCapacity: cfg.Notify.QueueCapacity,
		SweepInterval: time.Duration(cfg.Expiry.SweepIntervalSeconds) * time.Second,
		Profiler:      cfg.Profiler,
		Products:      products,
	}
	if loaded.LockTimeout <= 0 {
		loaded.LockTimeout = defaultLockTimeoutMillis
	}
	if loaded.QueueCapacity <= 0 {
		loaded.QueueCapacity = defaultQueueCapacity
	}
	if loaded.SweepInterval <= 0 {
		loaded.SweepInterval = defaultSweepInterval
	}
	return loaded, nil
}

func resolveProducts(entries []ProductConfig) ([]model.Product, error) {
	out := make([]model.Product, 0, len(entries))
	for _, entry := range entries {
		if _, err := product.Parse(entry.Symbol); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("product %q", entry.Symbol))
		}
		p := model.Product{
			Symbol:   entry.Symbol,
			Name:     entry.Name,
			Profile:  product.ProfileOf(entry.Symbol),
			IsActive: entry.IsActive,
		}
		if entry.DeliveryFrom != "" {
			from, err := time.Parse(time.RFC3339, entry.DeliveryFrom)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("product %q deliveryFrom", entry.Symbol))
			}
			p.DeliveryFrom = from
		}
		if entry.DeliveryTo != "" {
			to, err := time.Parse(time.RFC3339, entry.DeliveryTo)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("product %q deliveryTo", entry.Symbol))
			}
			p.DeliveryTo = to
		}
		out = append(out, p)
	}
	return out, nil
}
