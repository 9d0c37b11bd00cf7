// Package domain contains core domain types for the pzero application.
package domain

import (
	"time"
)

// Project represents a persisted unit of conversation and generated-file state.
type Project struct {
	ProjectID string    `json:"project_id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Context   string    `json:"context"`
	TurnCount int       `json:"turn_count"`
	FileCount int       `json:"file_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasFiles returns true if at least one generation has committed a file set.
func (p *Project) HasFiles() bool {
	return p.FileCount > 0
}

// ArchiveName returns the download filename for the project's archive.
func (p *Project) ArchiveName() string {
	name := sanitizeName(p.Name)
	if name == "" {
		name = "project"
	}
	return name + ".zip"
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	dash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
			dash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			dash = false
		default:
			if !dash && len(out) > 0 {
				out = append(out, '-')
				dash = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	const maxLen = 40
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return string(out)
}
