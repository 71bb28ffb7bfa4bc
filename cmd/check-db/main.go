// Package main is a diagnostic tool for testing database connectivity and
// inspecting live index data. It connects to the database, queries the
// projects and activestate_publishers tables, and prints a summary to stdout.
// The binary exits with a non-zero code on any failure so it can be embedded
// in health checks or CI/CD pipeline steps to gate deployments on a reachable,
// populated database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	if dbPassword == "" {
		dbPassword = "index"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=index password=%s dbname=package_index sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	// Check projects
	fmt.Println("=== PROJECTS ===")
	rows, err := db.Query("SELECT id, name, normalized_name FROM projects")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, normalized string
		if err := rows.Scan(&id, &name, &normalized); err != nil {
			log.Printf("Warning: failed to scan project row: %v", err)
			continue
		}
		fmt.Printf("Project: %s (normalized: %s, ID: %s)\n", name, normalized, id)
	}

	// Check publishers
	fmt.Println("\n=== TRUSTED PUBLISHERS ===")
	rows2, err := db.Query("SELECT id, project_id, organization, activestate_project_name, actor FROM activestate_publishers")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows2.Close()

	count := 0
	for rows2.Next() {
		var id, projectID, organization, asProject, actor string
		if err := rows2.Scan(&id, &projectID, &organization, &asProject, &actor); err != nil {
			log.Printf("Warning: failed to scan publisher row: %v", err)
			continue
		}
		fmt.Printf("Publisher: %s/%s by %s (Project ID: %s, ID: %s)\n", organization, asProject, actor, projectID, id)
		count++
	}

	if count == 0 {
		fmt.Println("No publishers found!")
	}

	// Pending registrations are worth surfacing too; a large backlog means
	// reserved names are not being claimed.
	var pending int
	if err := db.QueryRow("SELECT COUNT(*) FROM pending_activestate_publishers").Scan(&pending); err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("\nPending publisher registrations: %d\n", pending)
}
