// Package config loads the framework configuration from YAML files and
// environment variables via Viper, with .env support for local
// development. Environment variables use the AIOLI_ prefix with
// underscore-separated paths (e.g. AIOLI_DISCOVERY_STRATEGY).
package config
