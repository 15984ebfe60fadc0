package config

import (
	"errors"
	"strconv"
	"time"

	"github.com/crossmesh/datashare/internal/logger"
)

// Config is the top-level configuration shared by the datashare binaries.
type Config struct {
	Domain        DomainConfig   `yaml:"domain"`
	Logging       logger.Config  `yaml:"logging"`
	Server        ServerConfig   `yaml:"server"`
	Redis         RedisConfig    `yaml:"redis"`
	Database      DatabaseConfig `yaml:"database"`
	Collaborators CollabConfig   `yaml:"collaborators"`
	Workflow      WorkflowConfig `yaml:"workflow"`
}

// DomainConfig identifies the domain this service runs in.
// Identifiers are explicit configuration, never read from ambient state.
type DomainConfig struct {
	ID     string `yaml:"id"     env:"DOMAIN_ID"`
	Region string `yaml:"region" env:"DOMAIN_REGION"`
}

// ServerConfig holds the admin HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" env:"SERVER_HOST"`
	Port         int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// SetDefaults applies default values for ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
}

// RedisConfig holds the event channel connection configuration.
type RedisConfig struct {
	Address  string `yaml:"address"  env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"`
}

// SetDefaults applies default values for RedisConfig.
func (c *RedisConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = "localhost:6379"
	}
}

// DatabaseConfig holds the PostgreSQL domain registry configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host"     env:"DB_HOST"`
	Port     int    `yaml:"port"     env:"DB_PORT"`
	User     string `yaml:"user"     env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode"  env:"DB_SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

// SetDefaults applies default values for DatabaseConfig.
func (c *DatabaseConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// CollabConfig holds base URLs for the external collaborator services.
type CollabConfig struct {
	CatalogURL     string        `yaml:"catalog_url"     env:"CATALOG_URL"`
	PermissionsURL string        `yaml:"permissions_url" env:"PERMISSIONS_URL"`
	CrawlerURL     string        `yaml:"crawler_url"     env:"CRAWLER_URL"`
	Timeout        time.Duration `yaml:"timeout"         env:"COLLAB_TIMEOUT"`
}

// SetDefaults applies default values for CollabConfig.
func (c *CollabConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// WorkflowConfig holds tunables for the workflow state machines.
type WorkflowConfig struct {
	// InitialDelay lets catalog state propagate before the refresh
	// workflow starts touching resource links.
	InitialDelay time.Duration `yaml:"initial_delay" env:"WORKFLOW_INITIAL_DELAY"`
	// PollInterval is the fixed wait between crawl job status polls.
	PollInterval time.Duration `yaml:"poll_interval" env:"WORKFLOW_POLL_INTERVAL"`
	// CrawlConcurrency caps concurrent crawl branches per execution.
	CrawlConcurrency int `yaml:"crawl_concurrency" env:"WORKFLOW_CRAWL_CONCURRENCY"`
	// AdminPrincipal is the administrative principal granted full access
	// to resource-link tables before crawling.
	AdminPrincipal string `yaml:"admin_principal" env:"WORKFLOW_ADMIN_PRINCIPAL"`
}

// SetDefaults applies default values for WorkflowConfig.
func (c *WorkflowConfig) SetDefaults() {
	if c.InitialDelay == 0 {
		c.InitialDelay = 15 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.CrawlConcurrency == 0 {
		c.CrawlConcurrency = 2
	}
}

// SetDefaults applies defaults to all sections.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	c.Redis.SetDefaults()
	c.Database.SetDefaults()
	c.Collaborators.SetDefaults()
	c.Workflow.SetDefaults()
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.Domain.ID == "" {
		return errors.New("domain.id is required")
	}
	return nil
}
