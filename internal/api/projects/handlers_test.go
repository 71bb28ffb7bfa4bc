package projects

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/package-index/package-index/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errDB = errors.New("database connection lost")

var projectCols = []string{"id", "name", "normalized_name", "created_at"}

func sampleProjectRow() *sqlmock.Rows {
	return sqlmock.NewRows(projectCols).
		AddRow("proj-1", "My-Package", "my-package", time.Now())
}

func newProjectRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewProjectHandlers(&config.Config{}, db)

	r := gin.New()
	r.POST("/projects", h.CreateProjectHandler())
	r.GET("/projects", h.ListProjectsHandler())
	r.GET("/projects/:name", h.GetProjectHandler())
	return mock, r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateProject_Success(t *testing.T) {
	mock, r := newProjectRouter(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("my-package").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO projects").
		WithArgs("My-Package", "my-package").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("proj-1", time.Now()))

	w := postJSON(r, "/projects", CreateProjectRequest{Name: "My-Package"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201: body=%s", w.Code, w.Body.String())
	}
}

func TestCreateProject_NameTaken(t *testing.T) {
	mock, r := newProjectRouter(t)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	w := postJSON(r, "/projects", CreateProjectRequest{Name: "My-Package"})

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: body=%s", w.Code, w.Body.String())
	}
}

func TestCreateProject_BadName(t *testing.T) {
	// A name failing the format rules never reaches the database.
	_, r := newProjectRouter(t)

	w := postJSON(r, "/projects", CreateProjectRequest{Name: "-bad-"})

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422: body=%s", w.Code, w.Body.String())
	}
}

func TestCreateProject_MissingName(t *testing.T) {
	_, r := newProjectRouter(t)

	w := postJSON(r, "/projects", map[string]string{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListProjects_Success(t *testing.T) {
	mock, r := newProjectRouter(t)

	mock.ExpectQuery("SELECT.*FROM projects.*ORDER BY created_at").
		WithArgs(20, 0).
		WillReturnRows(sampleProjectRow())
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/projects", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
}

func TestListProjects_DBError(t *testing.T) {
	mock, r := newProjectRouter(t)

	mock.ExpectQuery("SELECT.*FROM projects.*ORDER BY created_at").
		WillReturnError(errDB)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/projects", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestGetProject_Found(t *testing.T) {
	mock, r := newProjectRouter(t)

	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WithArgs("my-package").
		WillReturnRows(sampleProjectRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/projects/My._Package", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
}

func TestGetProject_NotFound(t *testing.T) {
	mock, r := newProjectRouter(t)

	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WillReturnRows(sqlmock.NewRows(projectCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/projects/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
