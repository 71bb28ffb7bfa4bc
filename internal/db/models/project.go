// Package models - project.go defines the Project model representing a package
// on the index, identified by a display name and a normalized name used for
// uniqueness checks.
package models

import "time"

// Project represents a package project on the index
type Project struct {
	ID             string
	Name           string // Name as submitted (display form)
	NormalizedName string // Canonical form used for uniqueness
	CreatedAt      time.Time
}
