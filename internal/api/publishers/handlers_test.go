package publishers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/package-index/package-index/internal/activestate"
	"github.com/package-index/package-index/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errDB = errors.New("database connection lost")

// ---------------------------------------------------------------------------
// Fakes and helpers
// ---------------------------------------------------------------------------

// fakeResolver returns canned lookup results without touching the network.
type fakeResolver struct {
	orgRecord   activestate.Record
	orgErr      error
	actorRecord activestate.Record
	actorErr    error
}

func (f *fakeResolver) LookupOrganization(ctx context.Context, orgName string) (activestate.Record, error) {
	return f.orgRecord, f.orgErr
}

func (f *fakeResolver) LookupActor(ctx context.Context, username string) (activestate.Record, error) {
	return f.actorRecord, f.actorErr
}

// happyResolver resolves any organization and actor successfully.
func happyResolver() *fakeResolver {
	return &fakeResolver{
		orgRecord:   activestate.Record{"added": "2019-07-30T16:51:08.410778+00:00"},
		actorRecord: activestate.Record{"user_id": "00000000-0000-0000-0000-000000000001"},
	}
}

func getJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v: %s", err, w.Body.String())
	}
	return resp
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// fieldError digs the message for a field out of a 422 response body.
func fieldError(t *testing.T, w *httptest.ResponseRecorder, field string) string {
	t.Helper()
	resp := getJSON(t, w)
	fields, ok := resp["errors"].(map[string]interface{})
	if !ok {
		t.Fatalf("response missing 'errors' map: %s", w.Body.String())
	}
	msg, _ := fields[field].(string)
	return msg
}

// ---------------------------------------------------------------------------
// Column definitions and row builders
// ---------------------------------------------------------------------------

var projectCols = []string{"id", "name", "normalized_name", "created_at"}
var publisherCreateCols = []string{"id", "created_at"}

func sampleProjectRow() *sqlmock.Rows {
	return sqlmock.NewRows(projectCols).
		AddRow("proj-1", "my-package", "my-package", time.Now())
}

func emptyProjectRow() *sqlmock.Rows {
	return sqlmock.NewRows(projectCols)
}

// ---------------------------------------------------------------------------
// Router helper
// ---------------------------------------------------------------------------

func newPublisherRouter(t *testing.T, resolver *fakeResolver) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewPublisherHandlers(&config.Config{}, db, resolver)

	r := gin.New()
	r.POST("/publishers/activestate", h.RegisterPublisherHandler())
	r.GET("/publishers/activestate", h.ListPublishersHandler())
	r.DELETE("/publishers/activestate/:id", h.DeletePublisherHandler())
	r.POST("/publishers/activestate/pending", h.RegisterPendingPublisherHandler())
	r.GET("/publishers/activestate/pending", h.ListPendingPublishersHandler())
	r.DELETE("/publishers/activestate/pending/:id", h.DeletePendingPublisherHandler())
	return mock, r
}

func validRequest() RegisterPublisherRequest {
	return RegisterPublisherRequest{
		IndexProject: "my-package",
		Organization: "some-org",
		Project:      "some-project",
		Actor:        "some-user",
	}
}

// ---------------------------------------------------------------------------
// RegisterPublisherHandler tests
// ---------------------------------------------------------------------------

func TestRegisterPublisher_Success(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WithArgs("my-package").
		WillReturnRows(sampleProjectRow())
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("proj-1", "some-org", "some-project", "some-user").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO activestate_publishers").
		WithArgs("proj-1", "some-org", "2019-07-30T16:51:08.410778+00:00",
			"some-project", "some-user", "00000000-0000-0000-0000-000000000001").
		WillReturnRows(sqlmock.NewRows(publisherCreateCols).AddRow("pub-1", time.Now()))

	w := postJSON(r, "/publishers/activestate", validRequest())

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: body=%s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)
	if resp["publisher"] == nil {
		t.Error("response missing 'publisher' key")
	}
}

func TestRegisterPublisher_InvalidJSON(t *testing.T) {
	_, r := newPublisherRouter(t, happyResolver())

	req := httptest.NewRequest("POST", "/publishers/activestate", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRegisterPublisher_UnknownOrganization(t *testing.T) {
	resolver := happyResolver()
	resolver.orgRecord = nil
	resolver.orgErr = &activestate.LookupError{
		Kind:    activestate.ErrNotFound,
		Message: "ActiveState organization not found",
	}
	mock, r := newPublisherRouter(t, resolver)

	// Project lookup still happens so the response covers every field.
	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WillReturnRows(sampleProjectRow())

	w := postJSON(r, "/publishers/activestate", validRequest())

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: body=%s", w.Code, w.Body.String())
	}
	if msg := fieldError(t, w, "organization"); msg != "ActiveState organization not found" {
		t.Errorf("organization error = %q, want not-found message", msg)
	}
}

func TestRegisterPublisher_UnknownIndexProject(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WillReturnRows(emptyProjectRow())

	w := postJSON(r, "/publishers/activestate", validRequest())

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: body=%s", w.Code, w.Body.String())
	}
	if msg := fieldError(t, w, "index_project"); msg == "" {
		t.Error("expected an index_project error")
	}
}

func TestRegisterPublisher_Duplicate(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WillReturnRows(sampleProjectRow())
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	w := postJSON(r, "/publishers/activestate", validRequest())

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterPublisher_FormatErrorSkipsLookup(t *testing.T) {
	// An organization that fails the format check must produce a field error
	// even when the platform would have answered.
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WillReturnRows(sampleProjectRow())

	req := validRequest()
	req.Organization = "no"
	w := postJSON(r, "/publishers/activestate", req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: body=%s", w.Code, w.Body.String())
	}
	if msg := fieldError(t, w, "organization"); msg == "" {
		t.Error("expected an organization format error")
	}
}

func TestRegisterPublisher_ProjectLookupDBError(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WillReturnError(errDB)

	w := postJSON(r, "/publishers/activestate", validRequest())

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// ---------------------------------------------------------------------------
// RegisterPendingPublisherHandler tests
// ---------------------------------------------------------------------------

func validPendingRequest() RegisterPendingPublisherRequest {
	return RegisterPendingPublisherRequest{
		ProjectName:  "My-New-Package",
		Organization: "some-org",
		Project:      "some-project",
		Actor:        "some-user",
	}
}

func TestRegisterPendingPublisher_Success(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	// Availability check inside the form, then the duplicate check and insert.
	mock.ExpectQuery("SELECT EXISTS.*FROM projects").
		WithArgs("my-new-package").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS.*FROM pending_activestate_publishers").
		WithArgs("my-new-package", "some-org", "some-project", "some-user").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO pending_activestate_publishers").
		WithArgs("My-New-Package", "my-new-package", "some-org",
			"2019-07-30T16:51:08.410778+00:00", "some-project", "some-user",
			"00000000-0000-0000-0000-000000000001").
		WillReturnRows(sqlmock.NewRows(publisherCreateCols).AddRow("pend-1", time.Now()))

	w := postJSON(r, "/publishers/activestate/pending", validPendingRequest())

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterPendingPublisher_NameTaken(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT EXISTS.*FROM projects").
		WithArgs("my-new-package").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	w := postJSON(r, "/publishers/activestate/pending", validPendingRequest())

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: body=%s", w.Code, w.Body.String())
	}
	if msg := fieldError(t, w, "project_name"); msg != "This project name is already in use" {
		t.Errorf("project_name error = %q, want in-use message", msg)
	}
}

func TestRegisterPendingPublisher_Duplicate(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT EXISTS.*FROM projects").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS.*FROM pending_activestate_publishers").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	w := postJSON(r, "/publishers/activestate/pending", validPendingRequest())

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterPendingPublisher_BadProjectName(t *testing.T) {
	// A malformed project name fails the format check, so the availability
	// query is never issued.
	_, r := newPublisherRouter(t, happyResolver())

	req := validPendingRequest()
	req.ProjectName = "-leading-dash"
	w := postJSON(r, "/publishers/activestate/pending", req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: body=%s", w.Code, w.Body.String())
	}
	if msg := fieldError(t, w, "project_name"); msg == "" {
		t.Error("expected a project_name format error")
	}
}

func TestRegisterPendingPublisher_ActorUnavailable(t *testing.T) {
	resolver := happyResolver()
	resolver.actorRecord = nil
	resolver.actorErr = &activestate.LookupError{
		Kind:    activestate.ErrUnavailable,
		Message: "Unexpected timeout from ActiveState. Try again in a few minutes",
	}
	mock, r := newPublisherRouter(t, resolver)

	mock.ExpectQuery("SELECT EXISTS.*FROM projects").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	w := postJSON(r, "/publishers/activestate/pending", validPendingRequest())

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: body=%s", w.Code, w.Body.String())
	}
	if msg := fieldError(t, w, "actor"); msg != "Unexpected timeout from ActiveState. Try again in a few minutes" {
		t.Errorf("actor error = %q, want timeout message", msg)
	}
}

// ---------------------------------------------------------------------------
// ListPublishersHandler tests
// ---------------------------------------------------------------------------

func TestListPublishers_Success(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WithArgs("my-package").
		WillReturnRows(sampleProjectRow())
	mock.ExpectQuery("SELECT.*FROM activestate_publishers.*WHERE project_id").
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "organization", "organization_id",
			"activestate_project_name", "actor", "actor_id", "created_at",
		}).AddRow("pub-1", "proj-1", "some-org", "org-id", "some-project", "some-user", "user-id", time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/publishers/activestate?project=my-package", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)
	if resp["publishers"] == nil {
		t.Error("response missing 'publishers' key")
	}
}

func TestListPublishers_MissingProjectParam(t *testing.T) {
	_, r := newPublisherRouter(t, happyResolver())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/publishers/activestate", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListPublishers_ProjectNotFound(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT.*FROM projects.*WHERE normalized_name").
		WillReturnRows(emptyProjectRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/publishers/activestate?project=missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListPendingPublishers_Success(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectQuery("SELECT.*FROM pending_activestate_publishers.*ORDER BY created_at").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_name", "normalized_project_name", "organization", "organization_id",
			"activestate_project_name", "actor", "actor_id", "created_at",
		}).AddRow("pend-1", "My-New-Package", "my-new-package", "some-org", "org-id",
			"some-project", "some-user", "user-id", time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/publishers/activestate/pending", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)
	if resp["pagination"] == nil {
		t.Error("response missing 'pagination' key")
	}
}

// ---------------------------------------------------------------------------
// Delete handler tests
// ---------------------------------------------------------------------------

func TestDeletePublisher_Success(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectExec("DELETE FROM activestate_publishers").
		WithArgs("pub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/publishers/activestate/pub-1", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
}

func TestDeletePublisher_NotFound(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectExec("DELETE FROM activestate_publishers").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/publishers/activestate/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeletePendingPublisher_NotFound(t *testing.T) {
	mock, r := newPublisherRouter(t, happyResolver())

	mock.ExpectExec("DELETE FROM pending_activestate_publishers").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/publishers/activestate/pending/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
