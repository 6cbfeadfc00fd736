package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-marketplace-sync/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// NATSConfig holds NATS JetStream configuration. An empty URL disables lifecycle notifications.
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// ContractConfig describes one escrow contract to reconcile
type ContractConfig struct {
	Address    string `mapstructure:"address"`
	ABIPath    string `mapstructure:"abi_path"`
	EventName  string `mapstructure:"event_name"`
	StartBlock uint64 `mapstructure:"start_block"`
}

// EthereumConfig holds Ethereum-specific configuration
type EthereumConfig struct {
	RPCURL    string           `mapstructure:"rpc_url"`
	ChainID   domain.Chain     `mapstructure:"chain_id"`
	Contracts []ContractConfig `mapstructure:"contracts"`

	// RPCRequestsPerSecond caps calls to the node per contract, zero means unlimited
	RPCRequestsPerSecond float64 `mapstructure:"rpc_requests_per_second"`

	// Single contract shortcut for environment-only deployments
	ContractAddress string `mapstructure:"contract_address"`
	ABIPath         string `mapstructure:"abi_path"`
	EventName       string `mapstructure:"event_name"`
	StartBlock      uint64 `mapstructure:"start_block"`
}

// ReconcilerConfig holds the reconciliation loop settings
type ReconcilerConfig struct {
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	MaxBlockRange          uint64        `mapstructure:"max_block_range"`
	Confirmations          uint64        `mapstructure:"confirmations"`
	OrphanSweepInterval    time.Duration `mapstructure:"orphan_sweep_interval"`
	OrphanSweepBatch       int           `mapstructure:"orphan_sweep_batch"`
	OrphanMaxAttempts      int           `mapstructure:"orphan_max_attempts"`
	RelistOnComplete       bool          `mapstructure:"relist_on_complete"`
	BackoffInitialInterval time.Duration `mapstructure:"backoff_initial_interval"`
	BackoffMaxInterval     time.Duration `mapstructure:"backoff_max_interval"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// CORSConfig holds the allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MarketplaceReconcilerConfig holds configuration for the reconciler service
type MarketplaceReconcilerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
}

// APIConfig holds configuration for API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Auth       AuthConfig     `mapstructure:"auth"`
	CORS       CORSConfig     `mapstructure:"cors"`
}

// CtlConfig holds configuration for the operator CLI
type CtlConfig struct {
	BaseConfig     `mapstructure:",squash"`
	Database       DatabaseConfig `mapstructure:"database"`
	Ethereum       EthereumConfig `mapstructure:"ethereum"`
	MigrationsPath string         `mapstructure:"migrations_path"`
}

// LoadReconcilerConfig loads configuration for the reconciler service
func LoadReconcilerConfig(configFile string, envPath string) (*MarketplaceReconcilerConfig, error) {
	v := configureViper("reconciler", configFile, envPath)

	// Set defaults
	setDatabaseDefaults(v)
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "MARKETPLACE_TRANSACTIONS")
	v.SetDefault("nats.connection_name", "marketplace-reconciler")
	v.SetDefault("ethereum.chain_id", string(domain.ChainEthereumMainnet))
	v.SetDefault("reconciler.poll_interval", "5s")
	v.SetDefault("reconciler.max_block_range", 2000)
	v.SetDefault("reconciler.confirmations", 0)
	v.SetDefault("reconciler.orphan_sweep_interval", "1m")
	v.SetDefault("reconciler.orphan_sweep_batch", 100)
	v.SetDefault("reconciler.orphan_max_attempts", 10)
	v.SetDefault("reconciler.relist_on_complete", true)
	v.SetDefault("reconciler.backoff_initial_interval", "1s")
	v.SetDefault("reconciler.backoff_max_interval", "1m")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg MarketplaceReconcilerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if err := cfg.Database.validate(); err != nil {
		return nil, err
	}
	if cfg.Ethereum.RPCURL == "" {
		return nil, errors.New("ethereum.rpc_url is required")
	}
	if err := cfg.Ethereum.normalize(); err != nil {
		return nil, err
	}
	if len(cfg.Ethereum.Contracts) == 0 {
		return nil, errors.New("at least one contract is required (ethereum.contracts or ethereum.contract_address)")
	}
	if cfg.Reconciler.MaxBlockRange == 0 {
		return nil, errors.New("reconciler.max_block_range must be positive")
	}

	return &cfg, nil
}

// LoadAPIConfig loads configuration for API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	setDatabaseDefaults(v)
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "MARKETPLACE_TRANSACTIONS")
	v.SetDefault("nats.connection_name", "marketplace-api")
	v.SetDefault("cors.allowed_origins", []string{"*"})

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg APIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Database.validate(); err != nil {
		return nil, err
	}
	if cfg.Auth.JWTPublicKey != "" {
		if _, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.Auth.JWTPublicKey)); err != nil {
			return nil, fmt.Errorf("auth.jwt_public_key is not a valid RSA public key: %w", err)
		}
	}

	return &cfg, nil
}

// LoadCtlConfig loads configuration for the operator CLI
func LoadCtlConfig(configFile string, envPath string) (*CtlConfig, error) {
	v := configureViper("marketctl", configFile, envPath)

	setDatabaseDefaults(v)
	v.SetDefault("database.max_open_conns", 2)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("ethereum.chain_id", string(domain.ChainEthereumMainnet))
	v.SetDefault("migrations_path", "db/migrations")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg CtlConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Database.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ethereum.normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "10m")
}

// readConfig reads the config file, falling back to environment variables when there is none
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/reconciler/, cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("FF_MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	commonKeys := []string{
		"debug",
		"sentry_dsn",
		"migrations_path",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Ethereum
		"ethereum.rpc_url",
		"ethereum.chain_id",
		"ethereum.rpc_requests_per_second",
		"ethereum.contract_address",
		"ethereum.abi_path",
		"ethereum.event_name",
		"ethereum.start_block",
		// Reconciler
		"reconciler.poll_interval",
		"reconciler.max_block_range",
		"reconciler.confirmations",
		"reconciler.orphan_sweep_interval",
		"reconciler.orphan_sweep_batch",
		"reconciler.orphan_max_attempts",
		"reconciler.relist_on_complete",
		"reconciler.backoff_initial_interval",
		"reconciler.backoff_max_interval",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// CORS
		"cors.allowed_origins",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// normalize folds the single contract shortcut into Contracts and validates every entry
func (c *EthereumConfig) normalize() error {
	if !domain.IsValidChain(c.ChainID) {
		return fmt.Errorf("unsupported ethereum.chain_id: %s", c.ChainID)
	}

	if c.ContractAddress != "" {
		c.Contracts = append(c.Contracts, ContractConfig{
			Address:    c.ContractAddress,
			ABIPath:    c.ABIPath,
			EventName:  c.EventName,
			StartBlock: c.StartBlock,
		})
	}

	seen := make(map[string]struct{}, len(c.Contracts))
	for i := range c.Contracts {
		address := strings.TrimSpace(c.Contracts[i].Address)
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid contract address: %q", c.Contracts[i].Address)
		}
		address = strings.ToLower(address)
		if _, ok := seen[address]; ok {
			return fmt.Errorf("contract %s is configured twice", address)
		}
		seen[address] = struct{}{}
		c.Contracts[i].Address = address
	}

	return nil
}

func (c *DatabaseConfig) validate() error {
	if c.Host == "" {
		return errors.New("database.host is required")
	}
	if c.DBName == "" {
		return errors.New("database.dbname is required")
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the database connection string in URL form, as expected by golang-migrate
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}
