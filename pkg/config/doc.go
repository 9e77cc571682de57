// Package config loads application configuration from the environment and
// from YAML files.
//
// Load parses environment variables into any struct annotated with `env`
// tags (github.com/caarlos0/env/v11). The default .env file, when present, is
// read once via github.com/joho/godotenv before the first parse. LoadEnv reads
// additional .env files explicitly.
//
// LoadYAML decodes structured files such as the named queue registry with
// gopkg.in/yaml.v3, expanding ${VAR} references first so secrets can stay in
// the environment:
//
//	queues:
//	  default:
//	    handler: redis
//	    url: ${REDIS_URL}
//
// Errors wrap the sentinels in this package and can be matched with errors.Is.
package config
