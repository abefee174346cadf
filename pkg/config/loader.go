package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Load parses environment variables into the provided struct, after merging
// any dotenv files given. Variables already present in the process
// environment win over values from the files, and missing files are skipped.
//
// Example:
//
//	type Config struct {
//	    Port     int    `env:"PORT" envDefault:"4242"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any, dotenvFiles ...string) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load dotenv %s: %w", f, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
