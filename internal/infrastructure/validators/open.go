package validators

import (
	"context"
	"fmt"
	"strings"

	"avaxdash/internal/domain"
	"avaxdash/internal/infrastructure/mysql"
	"avaxdash/internal/infrastructure/sqlite"
)

type Source interface {
	ListValidators(ctx context.Context) ([]domain.Validator, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open picks the registry backend by DSN scheme: sqlite://<path> or
// mysql://<driver dsn>. An empty DSN serves the placeholder set. SQL
// registries are seeded with the placeholder set when empty.
func Open(ctx context.Context, dsn string) (Source, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nopSource{NewStatic(Placeholder())}, nil
	}
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok || rest == "" {
		return nil, fmt.Errorf("validators dsn %q must look like <scheme>://<target>", dsn)
	}
	switch strings.ToLower(scheme) {
	case "sqlite":
		repo, err := sqlite.NewRepository(ctx, rest, Placeholder())
		if err != nil {
			return nil, fmt.Errorf("open sqlite validators registry: %w", err)
		}
		return repo, nil
	case "mysql":
		repo, err := mysql.NewRepository(ctx, rest, Placeholder())
		if err != nil {
			return nil, fmt.Errorf("open mysql validators registry: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported validators dsn scheme %q", scheme)
	}
}

type nopSource struct {
	*Static
}

func (nopSource) Ping(context.Context) error { return nil }

func (nopSource) Close() error { return nil }
