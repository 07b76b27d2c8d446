package models

import "time"

// Student represents a permanent enrollment record created when a candidate
// completes the admission pipeline. CandidateID links the record back to the
// originating candidate and is unique: a candidate can produce at most one
// student.
type Student struct {
	ID           string    `db:"id" json:"id"`
	CandidateID  string    `db:"candidate_id" json:"candidate_id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Grade        string    `db:"grade" json:"grade"`
	GuardianName string    `db:"guardian_name" json:"guardian_name"`
	EnrolledAt   time.Time `db:"enrolled_at" json:"enrolled_at"`
	BalanceOwed  float64   `db:"balance_owed" json:"balance_owed"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Grade     string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
