package blocksync

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rFoxen/BlueskyModerationExtension-sub001/control/api"
)

func (g *Engine) handleLoadList(e echo.Context) error {
	var input api.LoadListInput
	if err := e.Bind(&input); err != nil || input.ListUri == "" {
		return e.JSON(http.StatusBadRequest, makeErrorJson("listUri is required"))
	}

	// the walk outlives the request; progress and completion arrive as events
	go func() {
		if err := g.LoadBlockedUsers(context.Background(), input.ListUri); err != nil {
			g.logger.Error("load failed", "list", input.ListUri, "error", err)
		}
	}()

	return e.NoContent(http.StatusAccepted)
}

func (g *Engine) handleRefreshList(e echo.Context) error {
	var input api.LoadListInput
	if err := e.Bind(&input); err != nil || input.ListUri == "" {
		return e.JSON(http.StatusBadRequest, makeErrorJson("listUri is required"))
	}

	go func() {
		if err := g.RefreshBlockedUsers(context.Background(), input.ListUri); err != nil {
			g.logger.Error("refresh failed", "list", input.ListUri, "error", err)
		}
	}()

	return e.NoContent(http.StatusAccepted)
}

func (g *Engine) handleCancelSync(e echo.Context) error {
	g.CancelSync()
	return e.NoContent(http.StatusOK)
}

func (g *Engine) handleSelectLists(e echo.Context) error {
	var input api.SelectListsInput
	if err := e.Bind(&input); err != nil {
		return e.JSON(http.StatusBadRequest, makeErrorJson("failed to bind request"))
	}
	g.SetActiveLists(input.ListUris)
	return e.NoContent(http.StatusOK)
}

func (g *Engine) handleListStatus(e echo.Context) error {
	listUri := e.QueryParam("list")
	if listUri == "" {
		return e.JSON(http.StatusBadRequest, makeErrorJson("list is required"))
	}

	state, err := g.store.GetSyncState(listUri)
	if err != nil {
		return e.JSON(http.StatusInternalServerError, makeErrorJson("failed to read sync state"))
	}
	count, err := g.store.CountByList(listUri)
	if err != nil {
		return e.JSON(http.StatusInternalServerError, makeErrorJson("failed to count cached users"))
	}

	return e.JSON(http.StatusOK, api.ListStatus{
		ListUri:          listUri,
		Count:            count,
		ProcessedCursors: state.ProcessedCursors,
		NextCursor:       state.NextCursor,
		IsComplete:       state.IsComplete,
	})
}
