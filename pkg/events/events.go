// Package events defines the lifecycle notifications published by the
// execution engine.
package events

import (
	"time"

	"github.com/zapflow/zapflow/pkg/models"
)

type EventType string

// Topic is the single stream all execution events go through.
const Topic = "zapflow.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	NodeExecutedEvent       EventType = "node.executed"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionResumedEvent   EventType = "execution.resumed"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	FlowID      string         `json:"flow_id"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ContactNumber string `json:"contact_number,omitempty"`
	StartNodeID   string `json:"start_node_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type NodeExecuted struct {
	BaseEvent

	NodeID   string           `json:"node_id"`
	NodeType models.NodeType  `json:"node_type"`
	Status   models.LogStatus `json:"status"`
	Duration time.Duration    `json:"duration"`
}

func (e NodeExecuted) GetType() EventType {
	return NodeExecutedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Steps    int           `json:"steps"`
	Duration time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	NodeID   string        `json:"node_id,omitempty"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionResumed struct {
	BaseEvent

	NodeID string `json:"node_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}
