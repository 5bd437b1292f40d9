// Package squad parses squad command flags and composes the service
// entrypoint.
package squad

import (
	"context"
	"flag"
	"fmt"

	"github.com/ytchou/focus-squad/internal/app"
	"github.com/ytchou/focus-squad/internal/auth/token"
	entrypoint "github.com/ytchou/focus-squad/internal/platform/cmd"
)

// Config holds squad command configuration.
type Config struct {
	HTTPAddr        string `env:"FOCUS_SQUAD_HTTP_ADDR"        envDefault:":8080"`
	GRPCHealthAddr  string `env:"FOCUS_SQUAD_GRPC_HEALTH_ADDR" envDefault:":8081"`
	DataDir         string `env:"FOCUS_SQUAD_DATA_DIR"         envDefault:"data"`
	PresenceEnabled bool   `env:"FOCUS_SQUAD_PRESENCE_ENABLED" envDefault:"true"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCHealthAddr, "grpc-health-addr", cfg.GRPCHealthAddr, "gRPC health listen address")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for sqlite database files")
	fs.BoolVar(&cfg.PresenceEnabled, "presence-enabled", cfg.PresenceEnabled, "enable the presence classifier")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the squad app and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSquad, func(context.Context) error {
		tokenConfig, err := token.LoadConfigFromEnv(nil)
		if err != nil {
			return fmt.Errorf("load token config: %w", err)
		}
		if err := app.Run(ctx, app.Config{
			HTTPAddr:        cfg.HTTPAddr,
			GRPCHealthAddr:  cfg.GRPCHealthAddr,
			DataDir:         cfg.DataDir,
			PresenceEnabled: cfg.PresenceEnabled,
			Token:           tokenConfig,
		}); err != nil {
			return fmt.Errorf("serve squad: %w", err)
		}
		return nil
	})
}
