package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/zapflow/zapflow/pkg/engine"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
	"github.com/zapflow/zapflow/pkg/protocol"
)

// Execution implements execution control: starting runs, dry runs, resuming,
// and audit queries.
type Execution struct {
	persistence persistence.Persistence
	engine      *engine.Engine
}

// NewExecution creates a new execution service.
func NewExecution(persist persistence.Persistence, eng *engine.Engine) *Execution {
	return &Execution{persistence: persist, engine: eng}
}

// Start runs a flow for a contact. Only active flows are runnable.
func (s *Execution) Start(ctx context.Context, flowID, channelID, contact string, initialContext map[string]any) (*models.FlowExecution, error) {
	flow, err := s.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	if flow == nil {
		return nil, persistence.NewFlowError("Start", flowID, ErrFlowNotFound)
	}

	if flow.Status != models.FlowStatusActive {
		return nil, fmt.Errorf("%w: flow %s is %s", ErrFlowNotActive, flowID, flow.Status)
	}

	return s.engine.StartExecution(ctx, flowID, channelID, contact, initialContext)
}

// Test dry-runs a flow against the given adapters, normally mocks. Draft
// flows are testable; that is the point of a dry run.
func (s *Execution) Test(ctx context.Context, flowID, inputMessage, contact string, extraContext map[string]any, adapters protocol.Adapters) (*models.FlowExecution, error) {
	return s.engine.TestExecution(ctx, flowID, inputMessage, contact, extraContext, adapters)
}

// Resume continues a paused execution.
func (s *Execution) Resume(ctx context.Context, executionID string) (*models.FlowExecution, error) {
	return s.engine.Resume(ctx, executionID)
}

// Get returns one execution.
func (s *Execution) Get(ctx context.Context, executionID string) (*models.FlowExecution, error) {
	return s.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

// Logs returns the ordered step history of an execution.
func (s *Execution) Logs(ctx context.Context, executionID string) ([]*models.FlowExecutionLog, error) {
	_, err := s.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return s.persistence.LogRepository().ListByExecution(ctx, executionID)
}

// MatchTrigger returns the first active flow whose trigger conditions match
// the inbound message, or nil when none do. Supported conditions:
//
//	keywords: list of substrings, any match fires
//	exact:    full-message match, case insensitive
//	any:      true fires on every message (catch-all flows)
func (s *Execution) MatchTrigger(ctx context.Context, message string) (*models.Flow, error) {
	flows, err := s.persistence.FlowRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	normalized := strings.ToLower(strings.TrimSpace(message))

	for _, flow := range flows {
		if flow.Status != models.FlowStatusActive {
			continue
		}

		if matchesTrigger(flow.TriggerConditions, normalized) {
			return flow, nil
		}
	}

	return nil, nil
}

func matchesTrigger(conditions map[string]any, message string) bool {
	if len(conditions) == 0 {
		return false
	}

	if catchAll, ok := conditions["any"].(bool); ok && catchAll {
		return true
	}

	if exact, ok := conditions["exact"].(string); ok && exact != "" {
		if strings.EqualFold(strings.TrimSpace(exact), message) {
			return true
		}
	}

	if keywords, ok := conditions["keywords"].([]any); ok {
		for _, raw := range keywords {
			keyword, ok := raw.(string)
			if !ok || keyword == "" {
				continue
			}

			if strings.Contains(message, strings.ToLower(keyword)) {
				return true
			}
		}
	}

	return false
}
