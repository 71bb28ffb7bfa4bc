// handlers.go implements project management endpoints. A project is the
// index-side entity that releases and trusted publishers attach to; names are
// unique after normalization.
package projects

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/package-index/package-index/internal/config"
	"github.com/package-index/package-index/internal/db/models"
	"github.com/package-index/package-index/internal/db/repositories"
	"github.com/package-index/package-index/internal/validation"
)

// ProjectHandlers handles project management endpoints
type ProjectHandlers struct {
	cfg         *config.Config
	db          *sql.DB
	projectRepo *repositories.ProjectRepository
}

// NewProjectHandlers creates a new ProjectHandlers instance
func NewProjectHandlers(cfg *config.Config, db *sql.DB) *ProjectHandlers {
	return &ProjectHandlers{
		cfg:         cfg,
		db:          db,
		projectRepo: repositories.NewProjectRepository(db),
	}
}

// CreateProjectRequest represents the request to create a new project
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// @Summary      Create project
// @Description  Create a new project on the index. The name must satisfy the index naming rules and be unique after normalization.
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        body  body  CreateProjectRequest  true  "Project name"
// @Success      201  {object}  map[string]interface{}  "project: models.Project"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      409  {object}  map[string]interface{}  "Project with this name already exists"
// @Failure      422  {object}  map[string]interface{}  "errors: map of field name to message"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/projects [post]
// CreateProjectHandler creates a new project
// POST /api/v1/projects
func (h *ProjectHandlers) CreateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if err := validation.ValidateIndexProjectName(req.Name); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"errors": gin.H{"name": err.Error()},
			})
			return
		}

		// Check if a project with the same normalized name already exists
		exists, err := h.projectRepo.Exists(c.Request.Context(), req.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check existing project",
			})
			return
		}
		if exists {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Project with this name already exists",
			})
			return
		}

		project := &models.Project{Name: req.Name}
		if err := h.projectRepo.Create(c.Request.Context(), project); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create project",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"project": project,
		})
	}
}

// @Summary      List projects
// @Description  Get a paginated list of all projects.
// @Tags         Projects
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "projects: []models.Project, pagination: {page, per_page, total}"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/projects [get]
// ListProjectsHandler lists all projects with pagination
// GET /api/v1/projects?page=1&per_page=20
func (h *ProjectHandlers) ListProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Parse pagination parameters
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		offset := (page - 1) * perPage

		projects, err := h.projectRepo.List(c.Request.Context(), perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list projects",
			})
			return
		}

		total, err := h.projectRepo.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to count projects",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"projects": projects,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// @Summary      Get project
// @Description  Retrieve a project by name. The lookup uses the normalized name, so any spelling that normalizes to the same value resolves to the same project.
// @Tags         Projects
// @Produce      json
// @Param        name  path  string  true  "Project name"
// @Success      200  {object}  map[string]interface{}  "project: models.Project"
// @Failure      404  {object}  map[string]interface{}  "Project not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/projects/{name} [get]
// GetProjectHandler retrieves a project by name
// GET /api/v1/projects/:name
func (h *ProjectHandlers) GetProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := h.projectRepo.GetByName(c.Request.Context(), c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve project",
			})
			return
		}
		if project == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Project not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"project": project,
		})
	}
}
