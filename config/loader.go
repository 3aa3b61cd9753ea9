package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "AIOLI_"

// FileSystem abstracts file operations for the loader (swapped in tests).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem on the OS.
type RealFileSystem struct{}

func (*RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (*RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds loader dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption customizes LoadInto.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// LoadInto loads configuration into cfg: YAML file first, then a .env file,
// then AIOLI_-prefixed environment variables, later sources overriding
// earlier ones. Missing files are not an error.
func LoadInto(cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}
	if lc.ConfigFile == "" {
		lc.ConfigFile = findFirst(lc.FileSystem, "./config.yml", "./config.yaml", "./config/config.yml", "../config/config.yml")
	}
	if lc.EnvFile == "" {
		lc.EnvFile = findFirst(lc.FileSystem, "./.env", "../.env")
	}

	v := viper.New()

	if lc.ConfigFile != "" && lc.FileSystem.Exists(lc.ConfigFile) {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", lc.ConfigFile, err)
		}
	}

	if lc.EnvFile != "" && lc.FileSystem.Exists(lc.EnvFile) {
		if err := lc.FileSystem.LoadEnv(lc.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", lc.EnvFile, err)
		}
	}

	bindEnvVars(v)

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func findFirst(fs FileSystem, paths ...string) string {
	for _, path := range paths {
		if fs.Exists(path) {
			return path
		}
	}
	return ""
}

// bindEnvVars sets every AIOLI_-prefixed environment variable on Viper
// under each plausible nested key, so Unmarshal sees them. Viper's
// AutomaticEnv does not surface unknown keys to Unmarshal, hence the
// explicit binding.
func bindEnvVars(v *viper.Viper) {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		for _, variant := range keyVariants(strings.TrimPrefix(key, envPrefix)) {
			v.Set(variant, value)
		}
	}
}

// keyVariants renders an env key as every dotted/underscored path it could
// mean, e.g. DISCOVERY_CACHE_TTL -> discovery.cache.ttl, discovery.cache_ttl,
// discovery_cache.ttl, discovery_cache_ttl.
func keyVariants(envKey string) []string {
	parts := strings.Split(strings.ToLower(envKey), "_")
	if len(parts) > 8 {
		return []string{strings.Join(parts, "_")}
	}
	variants := []string{parts[0]}
	for _, part := range parts[1:] {
		next := make([]string, 0, len(variants)*2)
		for _, prefix := range variants {
			next = append(next, prefix+"."+part, prefix+"_"+part)
		}
		variants = next
	}
	return variants
}
