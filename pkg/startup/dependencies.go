package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/redis"
)

const (
	DatabaseDependencyName = "database"
	RedisDependencyName    = "redis"
	KafkaDependencyName    = "kafka"
)

type DatabaseConfig struct {
	DSN             string
	DatabaseName    string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migration       database.MigrationConfig
}

// DatabaseDependency connects to postgres and applies migrations.
type DatabaseDependency struct {
	config DatabaseConfig
	logger ectologger.Logger
	db     *sqlx.DB
}

func NewDatabaseDependency(config DatabaseConfig, logger ectologger.Logger) *DatabaseDependency {
	return &DatabaseDependency{config: config, logger: logger}
}

func (d *DatabaseDependency) GetName() string {
	return DatabaseDependencyName
}

func (d *DatabaseDependency) DependsOn() []string {
	return nil
}

func (d *DatabaseDependency) Start(ctx context.Context) error {
	db, err := sqlx.Open("postgres", d.config.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(d.config.MaxOpenConns)
	db.SetMaxIdleConns(d.config.MaxIdleConns)
	db.SetConnMaxLifetime(d.config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("pinging database: %w", err)
	}

	migrations := database.NewMigrationService(d.logger, &d.config.Migration)
	if err := migrations.MigratePostgres(db.DB, d.config.DatabaseName); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrating database: %w", err)
	}

	d.db = db
	return nil
}

func (d *DatabaseDependency) Stop(_ context.Context) error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// DB returns the connection pool once Start has succeeded.
func (d *DatabaseDependency) DB() *sqlx.DB {
	return d.db
}

type RedisDependency struct {
	client *redis.Client
}

func NewRedisDependency(client *redis.Client) *RedisDependency {
	return &RedisDependency{client: client}
}

func (d *RedisDependency) GetName() string {
	return RedisDependencyName
}

func (d *RedisDependency) DependsOn() []string {
	return nil
}

func (d *RedisDependency) Start(ctx context.Context) error {
	return d.client.Connect(ctx)
}

func (d *RedisDependency) Stop(_ context.Context) error {
	return d.client.Close()
}

// KafkaDependency waits for a broker to answer before events are published.
type KafkaDependency struct {
	producer *kafka.Producer
}

func NewKafkaDependency(producer *kafka.Producer) *KafkaDependency {
	return &KafkaDependency{producer: producer}
}

func (d *KafkaDependency) GetName() string {
	return KafkaDependencyName
}

func (d *KafkaDependency) DependsOn() []string {
	return nil
}

func (d *KafkaDependency) Start(ctx context.Context) error {
	return d.producer.Ping(ctx)
}

func (d *KafkaDependency) Stop(_ context.Context) error {
	return d.producer.Close()
}
