// Package config builds the immutable Settings snapshot every BackyDB
// component reads from. Settings is assembled once, at job construction
// time, from an optional backy.toml file overlaid by environment
// variables (§6, §9 "Global mutable state ... is captured once").
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Settings holds every configuration value the core and its ambient stack
// read. Once built by Load, a Settings value is never mutated; components
// that need per-job overrides receive a copy carrying the overridden
// fields (see orchestrator.BackupJob/RestoreJob).
type Settings struct {
	// Server configuration (admin/status HTTP surface).
	ServerHost       string
	ServerPort       int
	CORSAllowOrigins string

	// Database configuration (§6 "database").
	DBDriver             string
	DBConnectionString   string
	DBMaxOpenConnections int
	DBMaxIdleConnections int
	DBConnMaxLifetime    time.Duration
	MultipleFiles        bool
	Features             map[string]bool

	// Compression configuration (§6 "compression").
	Compression     bool
	CompressionType string

	// Security configuration (§6 "security").
	Encryption bool
	SecType    string // "keystore" | "kms"
	Provider   string // "local" | "gcp" | "aws"
	KeySize    int

	// Integrity configuration (§6 "integrity").
	IntegrityCheck bool
	IntegrityType  string

	// Storage configuration (§6 "storage").
	StorageType string
	LocalPath   string
	AWSS3Bucket string
	AWSRegion   string

	// Restore-only.
	BackupPath string

	// Key Provider configuration.
	KMSProvider          string
	KMSKeyURI            string
	LocalKeyStorePath    string
	PrivateKeyPassword   string
	GoogleProjectID      string
	GoogleCredentialPath string

	// Logging.
	LogLevel    string
	LoggingPath string

	// Pipeline tuning (§5).
	FanOut           int
	ChunkSize        int
	PipelineBuffer   int
	KMSTimeout       time.Duration
	StorageTimeout   time.Duration
	HeartbeatPeriod  time.Duration
	RetryMaxAttempts int

	// Integrity secret (§6 "INTEGRITY_PASSWORD").
	IntegritySecret string

	// Metrics.
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsPort      int

	// Job bookkeeping (backy_jobs table, §DOMAIN STACK ADDITIONS). Deliberately
	// a separate connection from DBDriver/DBConnectionString: that pair names
	// the database BEING backed up, and bookkeeping rows must not land inside
	// the backup target itself. Empty MetadataDBConnectionString disables job
	// tracking; the admin HTTP surface's /jobs endpoints then report 503.
	MetadataDBDriver           string
	MetadataDBConnectionString string
}

// Load loads Settings from an optional backy.toml file (searched upward
// from the working directory) overlaid by environment variables; an env
// var always wins over the file, and the file always wins over the
// built-in default, matching the precedence the teacher's config.Load
// gives environment over defaults. Only server_host, server_port,
// db_driver and db_connection_string are read from the file; every other
// setting comes from its environment variable or built-in default alone.
func Load() *Settings {
	loadDotEnv()
	fileDefaults := loadTOMLDefaults()

	return &Settings{
		ServerHost:       env.GetString("SERVER_HOST", fileDefaults.getString("server_host", "0.0.0.0")),
		ServerPort:       env.GetInt("SERVER_PORT", fileDefaults.getInt("server_port", 8080)),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		DBDriver: env.GetString("DB_DRIVER", fileDefaults.getString("db_driver", "mysql")),
		DBConnectionString: env.GetString(
			"DB_CONNECTION_STRING",
			fileDefaults.getString("db_connection_string", ""),
		),
		DBMaxOpenConnections: env.GetInt("DB_MAX_OPEN_CONNECTIONS", 10),
		DBMaxIdleConnections: env.GetInt("DB_MAX_IDLE_CONNECTIONS", 5),
		DBConnMaxLifetime:    env.GetDuration("DB_CONN_MAX_LIFETIME", 5, time.Minute),
		MultipleFiles:        env.GetBool("MULTIPLE_FILES", false),
		Features:             defaultFeatures(),

		Compression:     env.GetBool("COMPRESSION", false),
		CompressionType: env.GetString("COMPRESSION_TYPE", "tar"),

		Encryption: env.GetBool("ENCRYPTION", false),
		SecType:    env.GetString("SECURITY_TYPE", "keystore"),
		Provider:   env.GetString("SECURITY_PROVIDER", "local"),
		KeySize:    env.GetInt("KEY_SIZE", 4096),

		IntegrityCheck: env.GetBool("INTEGRITY_CHECK", false),
		IntegrityType:  env.GetString("INTEGRITY_TYPE", "checksum"),

		StorageType: env.GetString("STORAGE_TYPE", "local"),
		LocalPath:   env.GetString("LOCAL_PATH", "./backups"),
		AWSS3Bucket: env.GetString("AWS_S3_BUCKET", ""),
		AWSRegion:   env.GetString("AWS_REGION", ""),

		BackupPath: env.GetString("BACKUP_PATH", ""),

		KMSProvider:          env.GetString("KMS_PROVIDER", ""),
		KMSKeyURI:            env.GetString("KMS_KEY_URI", ""),
		LocalKeyStorePath:    env.GetString("LOCAL_KEY_STORE_PATH", "./keystore"),
		PrivateKeyPassword:   env.GetString("PRIVATE_KEY_PASSWORD", ""),
		GoogleProjectID:      env.GetString("GCP_PROJECT_ID", ""),
		GoogleCredentialPath: env.GetString("GOOGLE_APPLICATION_CREDENTIALS", ""),

		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LoggingPath: env.GetString("LOGGING_PATH", ""),

		FanOut:           env.GetInt("FAN_OUT", 4),
		ChunkSize:        env.GetInt("CHUNK_SIZE_BYTES", 64*1024),
		PipelineBuffer:   env.GetInt("PIPELINE_BUFFER_CHUNKS", 8),
		KMSTimeout:       env.GetDuration("KMS_TIMEOUT", 30, time.Second),
		StorageTimeout:   env.GetDuration("STORAGE_TIMEOUT", 5, time.Minute),
		HeartbeatPeriod:  env.GetDuration("HEARTBEAT_PERIOD", 10, time.Second),
		RetryMaxAttempts: env.GetInt("RETRY_MAX_ATTEMPTS", 3),

		IntegritySecret: env.GetString("INTEGRITY_PASSWORD", ""),

		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "backydb"),
		MetricsPort:      env.GetInt("METRICS_PORT", 9090),

		MetadataDBDriver:           env.GetString("METADATA_DB_DRIVER", "postgres"),
		MetadataDBConnectionString: env.GetString("METADATA_DB_CONNECTION_STRING", ""),
	}
}

// defaultFeatures returns the default object-category feature set (§6):
// tables and data on, everything else off.
func defaultFeatures() map[string]bool {
	return map[string]bool{
		"tables":     true,
		"data":       true,
		"views":      false,
		"functions":  false,
		"procedures": false,
		"triggers":   false,
		"events":     false,
	}
}

// loadDotEnv searches for a .env file recursively from the current
// directory up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}

// tomlDefaults is the raw table decoded from backy.toml, used only to
// seed defaults that environment variables then override.
type tomlDefaults map[string]any

func (d tomlDefaults) getString(key, fallback string) string {
	if d == nil {
		return fallback
	}
	if v, ok := d[key].(string); ok {
		return v
	}
	return fallback
}

func (d tomlDefaults) getInt(key string, fallback int) int {
	if d == nil {
		return fallback
	}
	if v, ok := d[key].(int64); ok {
		return int(v)
	}
	return fallback
}

// loadTOMLDefaults searches for backy.toml next to .env (same upward walk)
// and decodes it loosely; a missing or malformed file yields empty
// defaults rather than an error, since environment variables remain the
// authoritative contract (§6).
func loadTOMLDefaults() tomlDefaults {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}

	dir := cwd
	for {
		path := filepath.Join(dir, "backy.toml")
		if _, err := os.Stat(path); err == nil {
			var decoded tomlDefaults
			if _, err := toml.DecodeFile(path, &decoded); err == nil {
				return decoded
			}
			return nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
