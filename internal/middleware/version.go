package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// APIVersion describes one published version of the archive API.
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active", "deprecated", "sunset"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// VersionMiddleware resolves and advertises API versions
type VersionMiddleware struct {
	supportedVersions map[string]APIVersion
	defaultVersion    string
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		supportedVersions: map[string]APIVersion{
			"v1": {
				Version: "v1",
				Status:  "active",
				Message: "Current stable storage API",
			},
		},
		defaultVersion: "v1",
	}
}

// VersionHeader adds version information to response headers
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Response().Header()
			header.Set("X-API-Version", version)

			if ver, exists := vm.supportedVersions[version]; exists {
				if ver.Status == "deprecated" && ver.SunsetDate != nil {
					header.Set("X-API-Deprecated", "true")
					header.Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
					header.Set("Warning", fmt.Sprintf("299 docarchive \"This API version is deprecated and will be removed on %s\"",
						ver.SunsetDate.Format("2006-01-02")))
				}
				header.Set("X-API-Message", ver.Message)
			}

			return next(c)
		}
	}
}

// VersionRoute creates a version-specific route group
func (vm *VersionMiddleware) VersionRoute(e *echo.Echo, version string) *echo.Group {
	group := e.Group("/" + version)
	group.Use(vm.VersionHeader(version))
	return group
}

// APIVersionResolver rejects unknown version prefixes and records the
// resolved version under "api_version".
func (vm *VersionMiddleware) APIVersionResolver() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			version := extractVersionFromPath(c.Request().URL.Path)
			if version == "" {
				c.Set("api_version", vm.defaultVersion)
				return next(c)
			}
			if ver, supported := vm.supportedVersions[version]; !supported || ver.Status == "sunset" {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error":              "Unsupported API version",
					"supported_versions": strings.Join(vm.GetSupportedVersions(), ", "),
				})
			}
			c.Set("api_version", version)
			return next(c)
		}
	}
}

// extractVersionFromPath returns "vN" for paths like /vN or /vN/...
func extractVersionFromPath(path string) string {
	if !strings.HasPrefix(path, "/v") {
		return ""
	}
	segment := strings.TrimPrefix(path, "/v")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	n, err := strconv.Atoi(segment)
	if err != nil || n < 0 {
		return ""
	}
	return "v" + strconv.Itoa(n)
}

// GetSupportedVersions lists active and deprecated versions in order.
func (vm *VersionMiddleware) GetSupportedVersions() []string {
	var versions []string
	for version, info := range vm.supportedVersions {
		if info.Status == "active" || info.Status == "deprecated" {
			versions = append(versions, version)
		}
	}
	sort.Strings(versions)
	return versions
}

func (vm *VersionMiddleware) GetCurrentVersion() string {
	return vm.defaultVersion
}

// AddVersion registers or replaces a version
func (vm *VersionMiddleware) AddVersion(version string, status string, message string, sunsetDate *time.Time) {
	vm.supportedVersions[version] = APIVersion{
		Version:    version,
		Status:     status,
		SunsetDate: sunsetDate,
		Message:    message,
	}
}
