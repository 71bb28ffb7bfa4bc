// Package models - publisher.go defines the trusted publisher models for the
// ActiveState integration. A publisher row records the resolved platform
// identifiers alongside the submitted names, so later authentication can match
// on stable IDs even if the display names change upstream.
package models

import "time"

// ActiveStatePublisher represents a trusted publisher registration bound to an
// existing project.
type ActiveStatePublisher struct {
	ID                     string
	ProjectID              string
	Organization           string // Submitted organization URL name
	OrganizationID         string // Platform-assigned organization identifier
	ActiveStateProjectName string
	Actor                  string // Submitted actor username
	ActorID                string // Platform-assigned actor identifier
	CreatedAt              time.Time
}

// PendingActiveStatePublisher represents a trusted publisher registration that
// reserves an index project name ahead of its first release. On first upload
// the pending row is converted into a project plus a regular publisher.
type PendingActiveStatePublisher struct {
	ID                     string
	ProjectName            string
	NormalizedProjectName  string
	Organization           string
	OrganizationID         string
	ActiveStateProjectName string
	Actor                  string
	ActorID                string
	CreatedAt              time.Time
}
