package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/esc-funnel/internal/config"
	"github.com/wolfman30/esc-funnel/internal/funnel"
	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// Tenants is the resolved tenant set for one process.
type Tenants struct {
	Default  tenant.Config
	Registry *tenant.Registry
	Source   string
}

// Lookup resolves a slug, falling back to the default configuration.
func (t Tenants) Lookup(slug string) tenant.Config {
	if cfg, ok := t.Registry.Lookup(slug); ok {
		return cfg
	}
	return t.Default
}

// BuildTenants loads tenants from TENANTS_FILE, then DATABASE_URL, then the
// built-in entries. Every entry's variant is checked before serving.
func BuildTenants(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (Tenants, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var (
		out Tenants
		err error
	)
	switch {
	case strings.TrimSpace(cfg.TenantsFile) != "":
		out.Source = "file"
		out.Default, out.Registry, err = tenant.LoadFile(cfg.TenantsFile)
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		out.Source = "postgres"
		out.Default = tenant.DefaultConfig()
		out.Registry, err = loadFromPostgres(ctx, cfg.DatabaseURL)
	default:
		out.Source = "builtin"
		out.Default = tenant.DefaultConfig()
		out.Registry = tenant.BuiltinRegistry()
	}
	if err != nil {
		return Tenants{}, fmt.Errorf("bootstrap: load tenants from %s: %w", out.Source, err)
	}
	// A tenants file owns its default; otherwise the env picks the list.
	if out.Source != "file" && strings.TrimSpace(cfg.ClickUpDefaultListID) != "" {
		out.Default.Destination.ListID = strings.TrimSpace(cfg.ClickUpDefaultListID)
	}
	return finishTenants(out, logger)
}

func loadFromPostgres(ctx context.Context, databaseURL string) (*tenant.Registry, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	// The registry is read once at startup.
	defer pool.Close()
	return tenant.NewPostgresSource(pool).Load(ctx)
}

func finishTenants(out Tenants, logger *logging.Logger) (Tenants, error) {
	if err := funnel.CheckVariants(append([]tenant.Config{out.Default}, out.Registry.Entries()...)...); err != nil {
		return Tenants{}, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("tenants loaded", "source", out.Source, "count", out.Registry.Len())
	return out, nil
}
