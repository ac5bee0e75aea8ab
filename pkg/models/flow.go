// Package models defines the core domain models for chatbot flow execution.
package models

import "time"

// FlowStatus represents the lifecycle state of a flow.
type FlowStatus string

const (
	FlowStatusDraft    FlowStatus = "draft"    // Editable, not triggerable
	FlowStatusActive   FlowStatus = "active"   // Triggerable by inbound messages
	FlowStatusInactive FlowStatus = "inactive" // Retired, kept for audit
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s FlowStatus) IsValid() bool {
	switch s {
	case FlowStatusDraft, FlowStatusActive, FlowStatusInactive:
		return true
	default:
		return false
	}
}

// Flow represents a named conversation automation definition. The engine
// only reads flows; their lifecycle is owned by the editor/API callers.
type Flow struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"               validate:"required,min=3"`
	Description       string         `json:"description"`
	Status            FlowStatus     `json:"status"             validate:"required"`
	TriggerConditions map[string]any `json:"trigger_conditions"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedBy         string         `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
