// names.go validates the user-submitted identifiers on a trusted publisher
// registration: ActiveState organization names, project names, actor usernames,
// and the index-side project name used by the pending variant.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// orgAndActorNameRe matches valid ActiveState organization URL names and
	// actor usernames: 3-40 alphanumerics and dashes.
	orgAndActorNameRe = regexp.MustCompile(`^[a-zA-Z0-9-]{3,40}$`)

	// activeStateProjectRe additionally allows dots in ActiveState project names.
	activeStateProjectRe = regexp.MustCompile(`^[.a-zA-Z0-9-]{3,40}$`)

	// indexProjectNameRe matches valid package index project names: must start
	// and end with an alphanumeric, with dots, underscores, and dashes allowed
	// in between.
	indexProjectNameRe = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9])$`)

	doubleDashRe = regexp.MustCompile(`--+`)

	// separatorRunRe collapses runs of dots, underscores, and dashes when
	// normalizing index project names.
	separatorRunRe = regexp.MustCompile(`[-_.]+`)
)

// NormalizeProjectName canonicalizes an index project name for uniqueness
// comparison: separator runs collapse to a single dash and the result is
// lowercased, so "My._.Package" and "my-package" refer to the same project.
func NormalizeProjectName(name string) string {
	return strings.ToLower(separatorRunRe.ReplaceAllString(name, "-"))
}

// ValidateOrganizationName checks an ActiveState organization URL name.
func ValidateOrganizationName(name string) error {
	if name == "" {
		return fmt.Errorf("organization name cannot be empty")
	}
	if !orgAndActorNameRe.MatchString(name) {
		return fmt.Errorf("invalid organization name: %s", name)
	}
	return validateDashes(name)
}

// ValidateActorName checks an ActiveState actor username. Usernames share the
// organization name character set and length limits.
func ValidateActorName(name string) error {
	if name == "" {
		return fmt.Errorf("actor username cannot be empty")
	}
	if !orgAndActorNameRe.MatchString(name) {
		return fmt.Errorf("invalid actor username: %s", name)
	}
	return validateDashes(name)
}

// ValidateActiveStateProjectName checks an ActiveState project name.
func ValidateActiveStateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if !activeStateProjectRe.MatchString(name) {
		return fmt.Errorf("invalid project name: %s", name)
	}
	return validateDashes(name)
}

// ValidateIndexProjectName checks a package index project name (the name the
// pending publisher will claim once its first release is uploaded).
func ValidateIndexProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if !indexProjectNameRe.MatchString(name) {
		return fmt.Errorf("invalid project name: %s", name)
	}
	return nil
}

// validateDashes rejects double-dash runs and leading or trailing dashes,
// which the ActiveState platform does not allow in names.
func validateDashes(name string) error {
	if doubleDashRe.MatchString(name) {
		return fmt.Errorf("double dashes are not allowed in the name")
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("leading or trailing dashes are not allowed in the name")
	}
	return nil
}
