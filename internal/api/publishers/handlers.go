// handlers.go implements the trusted publisher registration endpoints. A
// registration binds an ActiveState organization, project and actor to an
// index project; the pending variant reserves a project name that has no
// release yet.
package publishers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/package-index/package-index/internal/config"
	"github.com/package-index/package-index/internal/db/models"
	"github.com/package-index/package-index/internal/db/repositories"
	forms "github.com/package-index/package-index/internal/publishers"
	"github.com/package-index/package-index/internal/telemetry"
	"github.com/package-index/package-index/internal/validation"
)

// PublisherHandlers handles trusted publisher management endpoints
type PublisherHandlers struct {
	cfg           *config.Config
	db            *sql.DB
	resolver      forms.Resolver
	projectRepo   *repositories.ProjectRepository
	publisherRepo *repositories.PublisherRepository
}

// NewPublisherHandlers creates a new PublisherHandlers instance
func NewPublisherHandlers(cfg *config.Config, db *sql.DB, resolver forms.Resolver) *PublisherHandlers {
	return &PublisherHandlers{
		cfg:           cfg,
		db:            db,
		resolver:      resolver,
		projectRepo:   repositories.NewProjectRepository(db),
		publisherRepo: repositories.NewPublisherRepository(db),
	}
}

// RegisterPublisherRequest represents the request to register a publisher
// for an existing index project.
type RegisterPublisherRequest struct {
	IndexProject string `json:"index_project"`
	Organization string `json:"organization"`
	Project      string `json:"project"`
	Actor        string `json:"actor"`
}

// @Summary      Register trusted publisher
// @Description  Register an ActiveState trusted publisher for an existing project. Organization and actor names are resolved to stable platform identifiers before the registration is stored.
// @Tags         Publishers
// @Accept       json
// @Produce      json
// @Param        body  body  RegisterPublisherRequest  true  "Target index project and ActiveState identity"
// @Success      201  {object}  map[string]interface{}  "publisher: models.ActiveStatePublisher"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      409  {object}  map[string]interface{}  "Publisher already registered"
// @Failure      422  {object}  map[string]interface{}  "errors: map of field name to message"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/publishers/activestate [post]
// RegisterPublisherHandler registers a publisher for an existing project
// POST /api/v1/publishers/activestate
func (h *PublisherHandlers) RegisterPublisherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterPublisherRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		form := forms.NewForm(h.resolver, forms.FormData{
			Organization: req.Organization,
			Project:      req.Project,
			Actor:        req.Actor,
		})
		valid := form.Validate(c.Request.Context())

		// The target project is checked alongside the form fields so the
		// caller sees every problem in one response.
		fieldErrors := form.Errors
		project, err := h.projectRepo.GetByName(c.Request.Context(), req.IndexProject)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve project",
			})
			return
		}
		if project == nil {
			fieldErrors["index_project"] = "Project not found on this index"
		}

		if !valid || project == nil {
			telemetry.PublisherRegistrationsTotal.WithLabelValues("project", "rejected").Inc()
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"errors": fieldErrors,
			})
			return
		}

		// Check if an identical registration already exists
		exists, err := h.publisherRepo.Exists(c.Request.Context(),
			project.ID, req.Organization, req.Project, req.Actor)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check existing publisher",
			})
			return
		}
		if exists {
			telemetry.PublisherRegistrationsTotal.WithLabelValues("project", "rejected").Inc()
			c.JSON(http.StatusConflict, gin.H{
				"error": "This publisher is already registered for the project",
			})
			return
		}

		pub := &models.ActiveStatePublisher{
			ProjectID:              project.ID,
			Organization:           req.Organization,
			OrganizationID:         form.OrganizationID,
			ActiveStateProjectName: req.Project,
			Actor:                  req.Actor,
			ActorID:                form.ActorID,
		}
		if err := h.publisherRepo.Create(c.Request.Context(), pub); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create publisher",
			})
			return
		}

		telemetry.PublisherRegistrationsTotal.WithLabelValues("project", "accepted").Inc()
		c.JSON(http.StatusCreated, gin.H{
			"publisher": pub,
		})
	}
}

// RegisterPendingPublisherRequest represents the request to register a
// pending publisher, reserving a project name ahead of its first release.
type RegisterPendingPublisherRequest struct {
	ProjectName  string `json:"project_name"`
	Organization string `json:"organization"`
	Project      string `json:"project"`
	Actor        string `json:"actor"`
}

// @Summary      Register pending trusted publisher
// @Description  Register an ActiveState trusted publisher for a project that does not exist yet. The project name is checked for availability and the registration is converted when the first release arrives.
// @Tags         Publishers
// @Accept       json
// @Produce      json
// @Param        body  body  RegisterPendingPublisherRequest  true  "Project name to reserve and ActiveState identity"
// @Success      201  {object}  map[string]interface{}  "publisher: models.PendingActiveStatePublisher"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      409  {object}  map[string]interface{}  "Pending publisher already registered"
// @Failure      422  {object}  map[string]interface{}  "errors: map of field name to message"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/publishers/activestate/pending [post]
// RegisterPendingPublisherHandler registers a publisher for an unclaimed project name
// POST /api/v1/publishers/activestate/pending
func (h *PublisherHandlers) RegisterPendingPublisherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterPendingPublisherRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		form := forms.NewPendingForm(h.resolver, h.projectRepo, forms.PendingFormData{
			FormData: forms.FormData{
				Organization: req.Organization,
				Project:      req.Project,
				Actor:        req.Actor,
			},
			ProjectName: req.ProjectName,
		})
		if !form.Validate(c.Request.Context()) {
			telemetry.PublisherRegistrationsTotal.WithLabelValues("pending", "rejected").Inc()
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"errors": form.Errors,
			})
			return
		}

		normalized := validation.NormalizeProjectName(req.ProjectName)

		// Check if an identical pending registration already exists
		exists, err := h.publisherRepo.PendingExists(c.Request.Context(),
			normalized, req.Organization, req.Project, req.Actor)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check existing pending publisher",
			})
			return
		}
		if exists {
			telemetry.PublisherRegistrationsTotal.WithLabelValues("pending", "rejected").Inc()
			c.JSON(http.StatusConflict, gin.H{
				"error": "This publisher is already registered for the project name",
			})
			return
		}

		pub := &models.PendingActiveStatePublisher{
			ProjectName:            req.ProjectName,
			NormalizedProjectName:  normalized,
			Organization:           req.Organization,
			OrganizationID:         form.OrganizationID,
			ActiveStateProjectName: req.Project,
			Actor:                  req.Actor,
			ActorID:                form.ActorID,
		}
		if err := h.publisherRepo.CreatePending(c.Request.Context(), pub); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create pending publisher",
			})
			return
		}

		telemetry.PublisherRegistrationsTotal.WithLabelValues("pending", "accepted").Inc()
		c.JSON(http.StatusCreated, gin.H{
			"publisher": pub,
		})
	}
}

// @Summary      List trusted publishers
// @Description  List all publishers registered for a project.
// @Tags         Publishers
// @Produce      json
// @Param        project  query  string  true  "Index project name"
// @Success      200  {object}  map[string]interface{}  "project: string, publishers: []models.ActiveStatePublisher"
// @Failure      400  {object}  map[string]interface{}  "Project name is required"
// @Failure      404  {object}  map[string]interface{}  "Project not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/publishers/activestate [get]
// ListPublishersHandler lists publishers registered for a project
// GET /api/v1/publishers/activestate?project=name
func (h *PublisherHandlers) ListPublishersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("project")
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Project name is required",
			})
			return
		}

		project, err := h.projectRepo.GetByName(c.Request.Context(), name)
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

		publishers, err := h.publisherRepo.ListByProject(c.Request.Context(), project.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list publishers",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"project":    project.Name,
			"publishers": publishers,
		})
	}
}

// @Summary      List pending trusted publishers
// @Description  Get a paginated list of pending publisher registrations.
// @Tags         Publishers
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "publishers: []models.PendingActiveStatePublisher, pagination: {page, per_page}"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/publishers/activestate/pending [get]
// ListPendingPublishersHandler lists pending publisher registrations with pagination
// GET /api/v1/publishers/activestate/pending?page=1&per_page=20
func (h *PublisherHandlers) ListPendingPublishersHandler() gin.HandlerFunc {
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

		publishers, err := h.publisherRepo.ListPending(c.Request.Context(), perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list pending publishers",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"publishers": publishers,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
			},
		})
	}
}

// @Summary      Remove trusted publisher
// @Description  Remove a publisher registration by its ID.
// @Tags         Publishers
// @Produce      json
// @Param        id  path  string  true  "Publisher ID"
// @Success      200  {object}  map[string]interface{}  "message: Publisher removed successfully"
// @Failure      404  {object}  map[string]interface{}  "Publisher not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/publishers/activestate/{id} [delete]
// DeletePublisherHandler removes a publisher registration
// DELETE /api/v1/publishers/activestate/:id
func (h *PublisherHandlers) DeletePublisherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := h.publisherRepo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete publisher",
			})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Publisher not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Publisher removed successfully",
		})
	}
}

// @Summary      Remove pending trusted publisher
// @Description  Remove a pending publisher registration by its ID.
// @Tags         Publishers
// @Produce      json
// @Param        id  path  string  true  "Pending publisher ID"
// @Success      200  {object}  map[string]interface{}  "message: Pending publisher removed successfully"
// @Failure      404  {object}  map[string]interface{}  "Pending publisher not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/publishers/activestate/pending/{id} [delete]
// DeletePendingPublisherHandler removes a pending publisher registration
// DELETE /api/v1/publishers/activestate/pending/:id
func (h *PublisherHandlers) DeletePendingPublisherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := h.publisherRepo.DeletePending(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete pending publisher",
			})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Pending publisher not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Pending publisher removed successfully",
		})
	}
}
