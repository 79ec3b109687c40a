package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Pass        PassConfig        `mapstructure:"pass"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // seconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds
}

// PassConfig holds the process-wide, read-only resources of the pass
// pipeline: the template, the static image assets and the staging work root.
type PassConfig struct {
	AssetsRoot     string   `mapstructure:"assets_root"`
	TemplateFile   string   `mapstructure:"template_file"`
	ImagesDir      string   `mapstructure:"images_dir"`
	WorkDir        string   `mapstructure:"work_dir"`
	RequiredAssets []string `mapstructure:"required_assets"`
	OptionalAssets []string `mapstructure:"optional_assets"`
}

// CredentialsConfig names the environment variables and on-disk file names
// the credential providers consult. Environment wins when fully populated.
type CredentialsConfig struct {
	CertEnvVar  string `mapstructure:"cert_env_var"`
	KeyEnvVar   string `mapstructure:"key_env_var"`
	ChainEnvVar string `mapstructure:"chain_env_var"`
	CertFile    string `mapstructure:"cert_file"`
	KeyFile     string `mapstructure:"key_file"`
	ChainFile   string `mapstructure:"chain_file"`
}

type RegistryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
}

// GetDSN returns the PostgreSQL connection string.
func (r RegistryConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		r.Host, r.Port, r.User, r.Password, r.Database, r.SSLMode,
	)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
