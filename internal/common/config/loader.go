package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like PASS_ASSETS_ROOT.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if not found.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the project root so
// the loader behaves the same from `go test` subdirectories and from the
// compiled binary.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pass-server"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10
	}
	if cfg.Pass.AssetsRoot == "" {
		cfg.Pass.AssetsRoot = "assets"
	}
	if cfg.Pass.TemplateFile == "" {
		cfg.Pass.TemplateFile = "templates/pass.json"
	}
	if cfg.Pass.ImagesDir == "" {
		cfg.Pass.ImagesDir = "images"
	}
	if cfg.Pass.WorkDir == "" {
		cfg.Pass.WorkDir = filepath.Join(os.TempDir(), "walletpass")
	}
	if len(cfg.Pass.RequiredAssets) == 0 {
		cfg.Pass.RequiredAssets = []string{"icon.png", "icon@2x.png", "logo.png"}
	}
	if len(cfg.Pass.OptionalAssets) == 0 {
		cfg.Pass.OptionalAssets = []string{"logo@2x.png", "strip.png", "strip@2x.png"}
	}
	if cfg.Credentials.CertEnvVar == "" {
		cfg.Credentials.CertEnvVar = "WALLET_SIGNER_CERT"
	}
	if cfg.Credentials.KeyEnvVar == "" {
		cfg.Credentials.KeyEnvVar = "WALLET_SIGNER_KEY"
	}
	if cfg.Credentials.ChainEnvVar == "" {
		cfg.Credentials.ChainEnvVar = "WALLET_SIGNER_CHAIN"
	}
	if cfg.Credentials.CertFile == "" {
		cfg.Credentials.CertFile = "certs/signerCert.pem"
	}
	if cfg.Credentials.KeyFile == "" {
		cfg.Credentials.KeyFile = "certs/signerKey.pem"
	}
	if cfg.Credentials.ChainFile == "" {
		cfg.Credentials.ChainFile = "certs/chain.pem"
	}
	if cfg.Registry.SSLMode == "" {
		cfg.Registry.SSLMode = "disable"
	}
	if cfg.Registry.MaxConnections == 0 {
		cfg.Registry.MaxConnections = 10
	}
	if cfg.Registry.MaxIdle == 0 {
		cfg.Registry.MaxIdle = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if cfg.Registry.Enabled && cfg.Registry.Host == "" {
		return fmt.Errorf("registry enabled but no host configured")
	}
	return nil
}
