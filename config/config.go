package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DataPath     string
	ArtifactDir  string
	RegistryPath string
	BundlePath   string
	ModelVariant string
	VariantsFile string

	HTTPAddr    string
	CORSOrigins []string

	LogLevel  string
	LogFormat string

	EvalSampleSize int
	ReportCSVPath  string
	ReportXLSXPath string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxWorkers int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DataPath:     getEnv("DATA_PATH", "./data/vehicles.csv"),
		ArtifactDir:  getEnv("ARTIFACT_DIR", "./artifacts"),
		RegistryPath: getEnv("REGISTRY_PATH", "./artifacts/registry.db"),
		BundlePath:   getEnv("BUNDLE_PATH", ""),
		ModelVariant: getEnv("MODEL_VARIANT", VariantFinetuned),
		VariantsFile: getEnv("VARIANTS_FILE", "./variants.yaml"),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		EvalSampleSize: getEnvInt("EVAL_SAMPLE_SIZE", 10000),
		ReportCSVPath:  getEnv("REPORT_CSV_PATH", ""),
		ReportXLSXPath: getEnv("REPORT_XLSX_PATH", ""),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "carprice"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "carprice123"),
		PostgresDB:       getEnv("POSTGRES_DB", "carprice_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxWorkers: getEnvInt("MAX_WORKERS", runtime.NumCPU()),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
