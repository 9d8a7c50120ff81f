// Package config loads service configuration from YAML files and the
// environment. Files are resolved from conventional locations (cmd/<service>/,
// config/, repository root), .env files are loaded on top, and environment
// variables override everything.
//
// Services embed ServiceConfig and call LoadConfig with their own struct:
//
//	type Config struct {
//		config.ServiceConfig `mapstructure:",squash"`
//		Broker               broker.Config `mapstructure:"broker"`
//	}
//
//	var cfg Config
//	if err := config.LoadConfig("autoquant", &cfg); err != nil {
//		log.Fatal(err)
//	}
//	cfg.ApplyDefaults()
package config
