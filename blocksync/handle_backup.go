package blocksync

import (
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
)

func (g *Engine) handleExport(e echo.Context) error {
	data, err := g.store.ExportAll(time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return e.JSON(http.StatusInternalServerError, makeErrorJson("export failed"))
	}
	return e.JSON(http.StatusOK, data)
}

func (g *Engine) handleImport(e echo.Context) error {
	var data BackupData
	if err := e.Bind(&data); err != nil {
		return e.JSON(http.StatusBadRequest, makeErrorJson("failed to bind backup data"))
	}

	// backups from older extension builds carried locale-formatted timestamps
	if data.ExportedAt != "" {
		if t, err := dateparse.ParseAny(data.ExportedAt); err == nil {
			g.logger.Info("importing backup", "exported-at", t, "age", time.Since(t).Round(time.Second))
		} else {
			g.logger.Warn("backup has unparseable exportedAt", "exported-at", data.ExportedAt)
		}
	}

	if err := g.store.ImportAll(&data); err != nil {
		g.emitStoreError("importing backup", err)
		return e.JSON(http.StatusInternalServerError, makeErrorJson("import failed"))
	}

	g.logger.Info("backup imported", "memberships", len(data.Memberships), "lists", len(data.SyncStates))
	return e.NoContent(http.StatusOK)
}

func (g *Engine) handleLogout(e echo.Context) error {
	if err := g.Logout(); err != nil {
		return e.JSON(http.StatusInternalServerError, makeErrorJson("logout failed"))
	}
	return e.NoContent(http.StatusOK)
}
