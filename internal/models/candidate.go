package models

import "time"

// Candidate represents a prospective student moving through the admission
// pipeline.
type Candidate struct {
	ID              string     `db:"id" json:"id"`
	FullName        string     `db:"full_name" json:"full_name"`
	RequestedLevel  string     `db:"requested_level" json:"requested_level"`
	GuardianName    string     `db:"guardian_name" json:"guardian_name"`
	GuardianContact string     `db:"guardian_contact" json:"guardian_contact"`
	BirthDate       *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Address         string     `db:"address" json:"address"`
	PriorSchool     string     `db:"prior_school" json:"prior_school"`
	Notes           string     `db:"notes" json:"notes"`
	FitScore        int        `db:"fit_score" json:"fit_score"`
	Stage           Stage      `db:"stage" json:"stage"`
	Documents       []Document `db:"-" json:"documents,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// DocumentStatus marks verification progress of an attached document.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "PENDING"
	DocumentStatusVerified DocumentStatus = "VERIFIED"
)

// Document is evidence attached to a candidate. It has no lifecycle of its
// own; it is owned by the referencing candidate.
type Document struct {
	ID          string         `db:"id" json:"id"`
	CandidateID string         `db:"candidate_id" json:"candidate_id"`
	Type        string         `db:"type" json:"type"`
	Status      DocumentStatus `db:"status" json:"status"`
	UploadedAt  time.Time      `db:"uploaded_at" json:"uploaded_at"`
}

// CandidateFilter encapsulates allowed search parameters for listing
// candidates.
type CandidateFilter struct {
	Stage     Stage
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
