package blocksync

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func (g *Engine) handleAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(e echo.Context) error {
		auth := e.Request().Header.Get("authorization")
		pts := strings.Split(auth, " ")
		if len(pts) == 2 {
			if g.apiKey == pts[1] {
				return next(e)
			}
		}
		// websockets from the extension cannot set headers; allow the key as
		// a query param on those
		if e.QueryParam("key") == g.apiKey && g.apiKey != "" {
			return next(e)
		}
		return e.JSON(http.StatusForbidden, makeErrorJson("unauthorized"))
	}
}

func (g *Engine) addRoutes() {

	g.echo.GET("/_health", func(e echo.Context) error {
		return e.String(http.StatusOK, "healthy")
	})

	grp := g.echo.Group("")
	grp.Use(g.handleAuthMiddleware)

	grp.POST("/lists/load", g.handleLoadList)
	grp.POST("/lists/refresh", g.handleRefreshList)
	grp.POST("/lists/cancel", g.handleCancelSync)
	grp.POST("/lists/select", g.handleSelectLists)
	grp.GET("/lists/status", g.handleListStatus)

	grp.POST("/blocks", g.handleBlock)
	grp.DELETE("/blocks", g.handleUnblock)
	grp.GET("/blocks/check", g.handleCheckBlocked)
	grp.GET("/blocks/search", g.handleSearch)

	grp.POST("/reports", g.handleReport)

	grp.GET("/backup", g.handleExport)
	grp.POST("/backup", g.handleImport)

	grp.POST("/session/logout", g.handleLogout)

	grp.GET("/events", g.handleEvents)
}

type RequestError struct {
	Error string `json:"error"`
}

func makeErrorJson(error string) RequestError {
	return RequestError{
		Error: error,
	}
}
