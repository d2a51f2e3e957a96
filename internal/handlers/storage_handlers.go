package handlers

import (
	"net/http"

	"docarchive/internal/common"
	"docarchive/internal/config"
	"docarchive/internal/models"
	"docarchive/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StorageHandlers exposes the storage tree, allocation and administration
// operations over HTTP.
type StorageHandlers struct {
	allocator services.CapacityAllocator
	admin     services.StorageAdminService
	tree      services.StorageTreeService
	logger    *zap.Logger
}

func NewStorageHandlers(
	allocator services.CapacityAllocator,
	admin services.StorageAdminService,
	tree services.StorageTreeService,
	logger *zap.Logger,
) *StorageHandlers {
	return &StorageHandlers{
		allocator: allocator,
		admin:     admin,
		tree:      tree,
		logger:    logger,
	}
}

// AllocationRequest names the scope to allocate in; FileID is only read by
// AllocateForFile.
type AllocationRequest struct {
	DepartmentID    int64  `json:"department_id"`
	SubDepartmentID *int64 `json:"sub_department_id"`
	FileID          int64  `json:"file_id"`
}

func (r *AllocationRequest) scope() models.Scope {
	return models.Scope{DepartmentID: r.DepartmentID, SubDepartmentID: r.SubDepartmentID}
}

// EditCapacityRequest is the payload of PUT /units/:id/capacity
type EditCapacityRequest struct {
	FolderCapacity *int `json:"folder_capacity"`
}

// GetTree returns the forest of one scope.
func (h *StorageHandlers) GetTree(c echo.Context) error {
	departmentID, subDepartmentID, err := scopeQuery(c)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	scope := models.Scope{DepartmentID: departmentID, SubDepartmentID: subDepartmentID}
	forest, err := h.tree.GetTree(c.Request().Context(), scope)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"department_id":     departmentID,
		"sub_department_id": subDepartmentID,
		"tree":              forest,
	})
}

// Allocate finds a folder with space under the administrator policy.
func (h *StorageHandlers) Allocate(c echo.Context) error {
	var req AllocationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	allocation, err := h.allocator.Allocate(c.Request().Context(), req.scope(), config.CallerAdmin)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"storage_location_id": allocation.StorageLocationID,
		"full_path":           allocation.FullPath,
	})
}

// AllocateForFile allocates under the upload policy and assigns the file.
func (h *StorageHandlers) AllocateForFile(c echo.Context) error {
	var req AllocationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.FileID <= 0 {
		return common.SendValidationError(c, "file_id", "file_id must be positive")
	}

	allocation, err := h.allocator.AllocateForFile(c.Request().Context(), req.scope(), req.FileID, config.CallerUpload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, allocation)
}

// AddUnit creates a single storage unit.
func (h *StorageHandlers) AddUnit(c echo.Context) error {
	var req models.AddUnitRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	id, err := h.admin.AddUnit(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, map[string]int64{"storage_location_id": id})
}

// EditCapacity changes the capacity of a folder.
func (h *StorageHandlers) EditCapacity(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req EditCapacityRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.FolderCapacity == nil {
		return common.SendValidationError(c, "folder_capacity", "folder_capacity is required")
	}

	if err := h.admin.EditCapacity(c.Request().Context(), id, *req.FolderCapacity); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"storage_location_id": id,
		"folder_capacity":     *req.FolderCapacity,
	})
}

// DeleteUnit removes a storage unit with no children.
func (h *StorageHandlers) DeleteUnit(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if err := h.admin.DeleteUnit(c.Request().Context(), id); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// GetFilesIn lists the files stored at a location.
func (h *StorageHandlers) GetFilesIn(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	files, err := h.tree.GetFilesIn(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, files)
}

// GetAncestry returns the chain from the room down to the location.
func (h *StorageHandlers) GetAncestry(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	ancestry, err := h.tree.AncestryOf(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, ancestry)
}

// RemoveFileLocation detaches a file from its folder.
func (h *StorageHandlers) RemoveFileLocation(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if err := h.admin.RemoveFileFromLocation(c.Request().Context(), id); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// RegisterRoutes mounts the storage routes on a protected group.
func (h *StorageHandlers) RegisterRoutes(g *echo.Group) {
	storage := g.Group("/storage")
	storage.GET("/tree", h.GetTree)
	storage.POST("/allocations", h.Allocate)
	storage.POST("/allocations/files", h.AllocateForFile)
	storage.POST("/units", h.AddUnit)
	storage.PUT("/units/:id/capacity", h.EditCapacity)
	storage.DELETE("/units/:id", h.DeleteUnit)
	storage.GET("/units/:id/files", h.GetFilesIn)
	storage.GET("/units/:id/ancestry", h.GetAncestry)

	g.DELETE("/files/:id/location", h.RemoveFileLocation)
}
