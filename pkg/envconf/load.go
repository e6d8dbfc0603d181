// Package envconf fills config structs from the environment.
//
// Fields use envconfig tags:
//
//	Port     uint16     `envconfig:"PORT" default:"3001"`
//	LogLevel slog.Level `envconfig:"APP_LOG_LEVEL" default:"INFO"`
//	Address  string     `envconfig:"ADDRESS" required:"true"`
//
// Nested structs are walked; a tagged field inside one is found by its bare
// tag name as well as the prefixed form. Any type implementing
// encoding.TextUnmarshaler is supported.
package envconf

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DotEnvFile is read before the environment, if present. Variables already
// set in the environment win.
const DotEnvFile = ".env"

// Load reads DotEnvFile (when it exists) and then populates dst.
func Load(dst any) error {
	return LoadFiles(dst, DotEnvFile)
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped.
func LoadFiles(dst any, files ...string) error {
	if dst == nil {
		return errors.New("destination is nil")
	}

	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	err := envconfig.Process("", dst)
	if err != nil {
		return fmt.Errorf("process env: %w", err)
	}

	return nil
}
