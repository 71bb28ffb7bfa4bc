// Package publishers implements trusted publisher registration forms for the
// ActiveState CI/CD platform. A form is a transient per-request object: it is
// constructed with the submitted field values, validated once, and then either
// discarded (on failure) or read for the resolved platform identifiers the
// registration workflow persists.
package publishers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/package-index/package-index/internal/activestate"
	"github.com/package-index/package-index/internal/validation"
)

// Field names used as keys in the Errors map and in API responses.
const (
	FieldOrganization = "organization"
	FieldProject      = "project"
	FieldActor        = "actor"
	FieldProjectName  = "project_name"
)

// Identifier record keys returned by the ActiveState platform.
const (
	organizationIDKey = "added"
	actorIDKey        = "user_id"
)

const msgUnexpectedRemote = "Unexpected error from ActiveState. Try again"

// Resolver looks up ActiveState organizations and actors by name. The
// activestate.Client satisfies it; tests substitute deterministic fakes.
type Resolver interface {
	LookupOrganization(ctx context.Context, orgName string) (activestate.Record, error)
	LookupActor(ctx context.Context, username string) (activestate.Record, error)
}

// ProjectFactory reports whether a project name is already taken on the
// index. Used by the pending publisher form, which reserves a name before any
// release exists.
type ProjectFactory interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// FormData carries the submitted field values for a publisher registration.
type FormData struct {
	Organization string `json:"organization"`
	Project      string `json:"project"`
	Actor        string `json:"actor"`
}

// Form validates a trusted publisher registration against an existing
// project. After a successful Validate, OrganizationID and ActorID hold the
// platform-assigned identifiers; a failed Validate leaves both empty.
type Form struct {
	data     FormData
	resolver Resolver

	// Errors maps field name to the user-facing message for that field.
	// Populated by Validate; empty means the form is valid.
	Errors map[string]string

	OrganizationID string
	ActorID        string
}

// NewForm creates a form over the submitted data.
func NewForm(resolver Resolver, data FormData) *Form {
	return &Form{
		data:     data,
		resolver: resolver,
		Errors:   make(map[string]string),
	}
}

// Data returns the submitted field values.
func (f *Form) Data() FormData {
	return f.data
}

// Validate runs format checks on every field, then resolves the organization
// and actor against the platform. A field that fails its format check never
// triggers a remote lookup. Returns true when no field has an error.
func (f *Form) Validate(ctx context.Context) bool {
	f.reset()
	f.validateFormats()
	f.resolveIdentities(ctx)
	return len(f.Errors) == 0
}

func (f *Form) reset() {
	f.Errors = make(map[string]string)
	f.OrganizationID = ""
	f.ActorID = ""
}

func (f *Form) validateFormats() {
	if err := validation.ValidateOrganizationName(f.data.Organization); err != nil {
		f.Errors[FieldOrganization] = err.Error()
	}
	if err := validation.ValidateActiveStateProjectName(f.data.Project); err != nil {
		f.Errors[FieldProject] = err.Error()
	}
	if err := validation.ValidateActorName(f.data.Actor); err != nil {
		f.Errors[FieldActor] = err.Error()
	}
}

// resolveIdentities performs the remote lookups. Each field is resolved
// independently so a user correcting their submission sees every problem in
// one round trip, the same way per-field validators behave.
func (f *Form) resolveIdentities(ctx context.Context) {
	if _, failed := f.Errors[FieldOrganization]; !failed {
		record, err := f.resolver.LookupOrganization(ctx, f.data.Organization)
		if err != nil {
			f.Errors[FieldOrganization] = lookupErrorMessage(err)
		} else if id, ok := record[organizationIDKey].(string); ok && id != "" {
			f.OrganizationID = id
		} else {
			slog.Warn("organization record missing identifier", "organization", f.data.Organization)
			f.Errors[FieldOrganization] = msgUnexpectedRemote
		}
	}

	if _, failed := f.Errors[FieldActor]; !failed {
		record, err := f.resolver.LookupActor(ctx, f.data.Actor)
		if err != nil {
			f.Errors[FieldActor] = lookupErrorMessage(err)
		} else if id, ok := record[actorIDKey].(string); ok && id != "" {
			f.ActorID = id
		} else {
			slog.Warn("actor record missing identifier", "actor", f.data.Actor)
			f.Errors[FieldActor] = msgUnexpectedRemote
		}
	}

	// A form with any error must not hand identifiers downstream.
	if len(f.Errors) > 0 {
		f.OrganizationID = ""
		f.ActorID = ""
	}
}

// lookupErrorMessage extracts the user-safe message from a lookup failure.
func lookupErrorMessage(err error) string {
	var lookupErr *activestate.LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Message
	}
	return msgUnexpectedRemote
}

// PendingFormData carries the submitted field values for a pending publisher
// registration, which additionally names the index project to reserve.
type PendingFormData struct {
	FormData
	ProjectName string `json:"project_name"`
}

// PendingForm validates a trusted publisher registration that reserves a
// project name ahead of its first release.
type PendingForm struct {
	Form
	projectName string
	projects    ProjectFactory
}

// NewPendingForm creates a pending publisher form over the submitted data.
func NewPendingForm(resolver Resolver, projects ProjectFactory, data PendingFormData) *PendingForm {
	return &PendingForm{
		Form:        *NewForm(resolver, data.FormData),
		projectName: data.ProjectName,
		projects:    projects,
	}
}

// ProjectName returns the index project name the registration would reserve.
func (f *PendingForm) ProjectName() string {
	return f.projectName
}

// Validate extends Form.Validate with the project name check: format first,
// then a local uniqueness test against the index. The uniqueness check runs
// regardless of how the remote lookups turn out.
func (f *PendingForm) Validate(ctx context.Context) bool {
	f.reset()
	f.validateFormats()
	f.validateProjectName(ctx)
	f.resolveIdentities(ctx)
	return len(f.Errors) == 0
}

func (f *PendingForm) validateProjectName(ctx context.Context) {
	if err := validation.ValidateIndexProjectName(f.projectName); err != nil {
		f.Errors[FieldProjectName] = err.Error()
		return
	}
	exists, err := f.projects.Exists(ctx, f.projectName)
	if err != nil {
		slog.Error("project name availability check failed", "project_name", f.projectName, "error", err)
		f.Errors[FieldProjectName] = "Unable to verify project name availability. Try again"
		return
	}
	if exists {
		f.Errors[FieldProjectName] = "This project name is already in use"
	}
}
