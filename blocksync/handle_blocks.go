package blocksync

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rFoxen/BlueskyModerationExtension-sub001/control/api"
)

func membershipToApi(rec ListMembership) api.BlockedUser {
	return api.BlockedUser{
		Id:         rec.ID,
		ListUri:    rec.ListUri,
		UserHandle: rec.UserHandle,
		Did:        rec.Did,
		RecordUri:  rec.RecordUri,
		Position:   rec.Position,
	}
}

func (g *Engine) handleBlock(e echo.Context) error {
	ctx := e.Request().Context()

	var input api.BlockInput
	if err := e.Bind(&input); err != nil || input.UserHandle == "" || input.ListUri == "" {
		return e.JSON(http.StatusBadRequest, makeErrorJson("userHandle and listUri are required"))
	}

	if err := g.AddBlockedUser(ctx, input.UserHandle, input.ListUri); err != nil {
		return e.JSON(http.StatusBadGateway, makeErrorJson("failed to block user"))
	}

	rec, err := g.store.GetByHandle(input.ListUri, input.UserHandle)
	if err != nil || rec == nil {
		return e.NoContent(http.StatusOK)
	}
	return e.JSON(http.StatusOK, membershipToApi(*rec))
}

func (g *Engine) handleUnblock(e echo.Context) error {
	ctx := e.Request().Context()

	var input api.BlockInput
	if err := e.Bind(&input); err != nil || input.UserHandle == "" || input.ListUri == "" {
		return e.JSON(http.StatusBadRequest, makeErrorJson("userHandle and listUri are required"))
	}

	if err := g.RemoveBlockedUser(ctx, input.UserHandle, input.ListUri); err != nil {
		return e.JSON(http.StatusBadGateway, makeErrorJson("failed to unblock user"))
	}

	return e.NoContent(http.StatusOK)
}

func (g *Engine) handleCheckBlocked(e echo.Context) error {
	handle := e.QueryParam("handle")
	if handle == "" {
		return e.JSON(http.StatusBadRequest, makeErrorJson("handle is required"))
	}

	lists := e.QueryParams()["list"]
	var (
		blocked bool
		err     error
	)
	if len(lists) > 0 {
		blocked, err = g.IsUserBlockedIn(handle, lists)
	} else {
		blocked, err = g.IsUserBlocked(handle)
	}
	if err != nil {
		return e.JSON(http.StatusInternalServerError, makeErrorJson("failed to check block state"))
	}

	return e.JSON(http.StatusOK, api.CheckBlockedResult{
		UserHandle: NormalizeHandle(handle),
		Blocked:    blocked,
	})
}

func (g *Engine) handleSearch(e echo.Context) error {
	listUri := e.QueryParam("list")
	if listUri == "" {
		return e.JSON(http.StatusBadRequest, makeErrorJson("list is required"))
	}

	page, _ := strconv.Atoi(e.QueryParam("page"))
	pageSize, _ := strconv.Atoi(e.QueryParam("pageSize"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 25
	}

	recs, total, err := g.store.SearchByHandle(listUri, e.QueryParam("q"), page, pageSize)
	if err != nil {
		return e.JSON(http.StatusInternalServerError, makeErrorJson("search failed"))
	}

	result := api.SearchResult{
		Users:    make([]api.BlockedUser, 0, len(recs)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, rec := range recs {
		result.Users = append(result.Users, membershipToApi(rec))
	}
	return e.JSON(http.StatusOK, result)
}

func (g *Engine) handleReport(e echo.Context) error {
	ctx := e.Request().Context()

	var input api.ReportInput
	if err := e.Bind(&input); err != nil || input.UserHandle == "" {
		return e.JSON(http.StatusBadRequest, makeErrorJson("userHandle is required"))
	}

	if err := g.ReportUser(ctx, input.UserHandle, input.ReasonType, input.Reason); err != nil {
		return e.JSON(http.StatusBadGateway, makeErrorJson("failed to report user"))
	}

	return e.NoContent(http.StatusOK)
}
