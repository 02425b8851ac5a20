// Package types provides shared types used across multiple packages.
// This package has no dependencies on other library packages to avoid import cycles.
package types

import "time"

// Priority controls where freshly extracted content is placed.
type Priority string

const (
	// PriorityHigh always places content in the hot tier.
	PriorityHigh Priority = "high"
	// PriorityLow places content in the hot tier only while it is under its
	// memory budget.
	PriorityLow Priority = "low"
)

// ParsePriority converts a string to a Priority.
// Returns PriorityLow if the string is not recognized.
func ParsePriority(s string) Priority {
	switch s {
	case "high":
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// Book identifies a source document. It is what the catalog hands to the
// cache when content has to be extracted.
type Book struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	FilePath   string    `json:"file_path"`
	MimeType   string    `json:"mime_type,omitempty"`
	Popularity int       `json:"popularity,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Metadata describes extracted content. It travels with every cache tier.
type Metadata struct {
	Title                string `json:"title"`
	Author               string `json:"author,omitempty"`
	FileSizeBytes        int64  `json:"fileSizeBytes"`
	TotalWords           int    `json:"totalWords"`
	ExtractionDurationMs int64  `json:"extractionDurationMs"`
	MimeType             string `json:"mimeType,omitempty"`
}
