package frontend

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

//go:embed dist
var embeddedFiles embed.FS

// FrontendService serves the embedded chat page.
type FrontendService struct{}

func NewFrontendService() *FrontendService {
	return &FrontendService{}
}

func (*FrontendService) Serve(e *echo.Echo) {
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:   5,
		Skipper: isBackendPath,
	}))

	skipper := func(c echo.Context) bool {
		if isBackendPath(c) {
			return true
		}
		c.Response().Header().Set("X-Content-Type-Options", "nosniff")
		// Never cache the page.
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache, no-store, must-revalidate")
		return false
	}

	e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Filesystem: getFileSystem("dist"),
		HTML5:      true,
		Skipper:    skipper,
	}))
}

func isBackendPath(c echo.Context) bool {
	p := c.Request().URL.Path
	for _, prefix := range []string{"/api", "/metrics", "/chat-apps"} {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func getFileSystem(path string) http.FileSystem {
	sub, err := fs.Sub(embeddedFiles, path)
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
