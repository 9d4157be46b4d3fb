// Package model defines the operations-dashboard records shown on the board.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is a lifecycle stage token.
type Status string

// Default lifecycle statuses. Tenants may configure others.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// DefaultStatuses lists the built-in statuses in board order.
func DefaultStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusArchived}
}

// Kind identifies which dashboard list a record belongs to.
type Kind string

const (
	KindProject Kind = "project"
	KindProcess Kind = "process"
	KindTask    Kind = "task"
	KindRoutine Kind = "routine"
)

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindProject, KindProcess, KindTask, KindRoutine:
		return true
	}
	return false
}

// Record is a single dashboard item: a project, process, task or routine.
type Record struct {
	ID          string     `json:"id"`
	Tenant      string     `json:"tenant,omitempty"`
	Kind        Kind       `json:"kind"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Category    string     `json:"category,omitempty"`
	Sector      string     `json:"sector,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

// Validate checks the fields every record must carry.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record id is required")
	}
	if strings.TrimSpace(string(r.Status)) == "" {
		return fmt.Errorf("record %s: status is required", r.ID)
	}
	if r.Kind != "" && !r.Kind.IsValid() {
		return fmt.Errorf("record %s: unknown kind %q", r.ID, r.Kind)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("record %s: created_at is required", r.ID)
	}
	return nil
}

// Board and filter accessors.

func (r Record) ItemID() string           { return r.ID }
func (r Record) ItemStatus() string       { return string(r.Status) }
func (r Record) ItemCategory() string     { return r.Category }
func (r Record) ItemSector() string       { return r.Sector }
func (r Record) ItemOwner() string        { return r.Owner }
func (r Record) ItemName() string         { return r.Name }
func (r Record) ItemDescription() string  { return r.Description }
func (r Record) ItemDueDate() *time.Time  { return r.DueDate }
func (r Record) ItemCreatedAt() time.Time { return r.CreatedAt }
