package domain

import "time"

// User is a registry-level (global) account holder.
type User struct {
	UserID      string
	OrgID       string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// Account is one provider account belonging to a user.
type Account struct {
	AccountID      string
	UserID         string
	Provider       string
	ProviderSubj   string
	Email          string
	Status         string
	CreatedAt      time.Time
}

// APIKey is a registry-level API credential for a user.
type APIKey struct {
	KeyID     string
	UserID    string
	CreatedAt time.Time
}

// DeletionRequestStatus is the closed set of deletion-request states.
type DeletionRequestStatus string

const (
	DeletionPending    DeletionRequestStatus = "pending"
	DeletionProcessing DeletionRequestStatus = "processing"
	DeletionCompleted  DeletionRequestStatus = "completed"
	DeletionFailed     DeletionRequestStatus = "failed"
)

// DeletionRequest tracks the lifecycle of one cascading-deletion run.
type DeletionRequest struct {
	RequestID   string
	UserID      string
	Status      DeletionRequestStatus
	RequestedAt time.Time
	ScheduledAt *time.Time
	CompletedAt *time.Time
}

// DeletionSummary holds the PII-free counts surfaced on a deletion
// certificate.
type DeletionSummary struct {
	EventsDeleted                int `json:"events_deleted"`
	MirrorsDeleted               int `json:"mirrors_deleted"`
	JournalEntriesDeleted        int `json:"journal_entries_deleted"`
	RelationshipRecordsDeleted   int `json:"relationship_records_deleted"`
	D1RowsDeleted                int `json:"d1_rows_deleted"`
	R2ObjectsDeleted             int `json:"r2_objects_deleted"`
	ProviderDeletionsEnqueued    int `json:"provider_deletions_enqueued"`
}

// DeletionCertificate is the signed, PII-free proof a cascading deletion
// completed.
type DeletionCertificate struct {
	CertID          string
	EntityType      string
	EntityID        string
	DeletedAt       time.Time
	ProofHash       string
	Signature       string
	DeletionSummary DeletionSummary
}
