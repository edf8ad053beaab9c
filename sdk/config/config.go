// Package config provides the public SDK configuration API.
//
// It re-exports the server configuration types and helpers so external
// projects can embed the gateway without importing internal packages.
package config

import internalconfig "github.com/cliforge/codeassist-gateway/internal/config"

type SDKConfig = internalconfig.SDKConfig

type Config = internalconfig.Config

type StreamingConfig = internalconfig.StreamingConfig
type StoreConfig = internalconfig.StoreConfig
type PoolConfig = internalconfig.PoolConfig
type IPGuardConfig = internalconfig.IPGuardConfig
type SignatureCacheConfig = internalconfig.SignatureCacheConfig
type OpenAICompatibility = internalconfig.OpenAICompatibility
type OpenAICompatibilityModel = internalconfig.OpenAICompatibilityModel

const (
	DefaultPanelGitHubRepository = internalconfig.DefaultPanelGitHubRepository
)

func LoadConfig(configFile string) (*Config, error) { return internalconfig.LoadConfig(configFile) }

func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	return internalconfig.LoadConfigOptional(configFile, optional)
}

func SaveConfigPreserveComments(configFile string, cfg *Config) error {
	return internalconfig.SaveConfigPreserveComments(configFile, cfg)
}
