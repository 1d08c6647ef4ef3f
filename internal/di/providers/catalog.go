package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/shelfmarkapp/shelfmark-server/internal/config"
	"github.com/shelfmarkapp/shelfmark-server/internal/store/sqlite"
)

// CatalogHandle wraps the sqlite catalog with shutdown capability.
type CatalogHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *CatalogHandle) Shutdown() error {
	return h.Close()
}

// ProvideCatalog provides the sqlite-backed catalog store.
func ProvideCatalog(i do.Injector) (*CatalogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	db, err := sqlite.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}

	log.Info("Catalog database initialized", "path", cfg.Database.Path)

	return &CatalogHandle{Store: db}, nil
}
