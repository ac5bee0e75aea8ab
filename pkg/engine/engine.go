// Package engine orchestrates flow executions: it loads a graph snapshot,
// walks it node by node through the registered executors, and persists a log
// row plus the execution state after every step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zapflow/zapflow/pkg/eventbus"
	"github.com/zapflow/zapflow/pkg/events"
	"github.com/zapflow/zapflow/pkg/executors"
	"github.com/zapflow/zapflow/pkg/graph"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/otelhelper"
	"github.com/zapflow/zapflow/pkg/persistence"
	"github.com/zapflow/zapflow/pkg/protocol"
)

// Config bounds a single execution run.
type Config struct {
	// MaxSteps is the traversal ceiling. The graph format permits cycles,
	// so every run is capped.
	MaxSteps int

	// NodeTimeout bounds each executor invocation.
	NodeTimeout time.Duration

	// RetryAttempts is the total number of tries for a step that fails
	// with an AdapterError. Non-adapter errors never retry.
	RetryAttempts int

	// RetryDelay is slept between retries.
	RetryDelay time.Duration
}

// DefaultConfig returns the standard execution bounds.
func DefaultConfig() Config {
	return Config{
		MaxSteps:      100,
		NodeTimeout:   30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.MaxSteps <= 0 {
		c.MaxSteps = defaults.MaxSteps
	}

	if c.NodeTimeout <= 0 {
		c.NodeTimeout = defaults.NodeTimeout
	}

	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaults.RetryAttempts
	}

	if c.RetryDelay < 0 {
		c.RetryDelay = defaults.RetryDelay
	}

	return c
}

// Engine runs flow executions. It is the sole writer of FlowExecution rows;
// executors only compute results.
type Engine struct {
	persistence persistence.Persistence
	registry    *executors.Registry
	eventBus    eventbus.EventBus
	locker      ExecutionLocker
	logger      *slog.Logger
	tracer      trace.Tracer
	config      Config
}

// NewEngine wires an engine. The registry carries the production adapters;
// TestExecution swaps it for one built from caller-supplied mocks.
func NewEngine(
	persist persistence.Persistence,
	registry *executors.Registry,
	eventBus eventbus.EventBus,
	locker ExecutionLocker,
	logger *slog.Logger,
	config Config,
) *Engine {
	return &Engine{
		persistence: persist,
		registry:    registry,
		eventBus:    eventBus,
		locker:      locker,
		logger:      logger,
		tracer:      otel.Tracer("zapflow/engine"),
		config:      config.withDefaults(),
	}
}

// StartExecution creates an execution for a flow and runs it to a terminal
// status. The returned execution carries the terminal state; traversal
// failures are reflected there, not in the error return, so callers always
// get the execution ID once the row exists.
func (e *Engine) StartExecution(ctx context.Context, flowID, channelID, contact string, initialContext map[string]any) (*models.FlowExecution, error) {
	return e.start(ctx, flowID, channelID, contact, initialContext, nil, e.registry)
}

// TestExecution runs a flow as a dry run with the supplied adapters,
// normally mocks. The execution row is tagged test=true so it can be
// filtered out of production audits.
func (e *Engine) TestExecution(ctx context.Context, flowID, inputMessage, contact string, extraContext map[string]any, adapters protocol.Adapters) (*models.FlowExecution, error) {
	initialContext := map[string]any{
		executors.ContextKeyInbound: map[string]any{"content": inputMessage},
	}

	for key, value := range extraContext {
		initialContext[key] = value
	}

	metadata := map[string]any{"test": true}

	return e.start(ctx, flowID, "", contact, initialContext, metadata, executors.NewRegistry(adapters))
}

func (e *Engine) start(ctx context.Context, flowID, channelID, contact string, initialContext map[string]any, metadata map[string]any, registry *executors.Registry) (*models.FlowExecution, error) {
	ctx, span := e.tracer.Start(ctx, "engine.start_execution",
		trace.WithAttributes(attribute.String(otelhelper.FlowIDKey, flowID)))
	defer span.End()

	flow, err := e.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %s: %w", flowID, err)
	}

	if flow == nil {
		return nil, persistence.NewFlowError("StartExecution", flowID, persistence.ErrFlowNotFound)
	}

	execContext := map[string]any{
		executors.ContextKeyChannelID: channelID,
		executors.ContextKeyContact:   contact,
	}

	for key, value := range initialContext {
		execContext[key] = value
	}

	execution := &models.FlowExecution{
		FlowID:           flowID,
		WhatsAppNumberID: channelID,
		ContactNumber:    contact,
		Status:           models.ExecutionStatusRunning,
		Context:          execContext,
		Metadata:         metadata,
	}

	err = e.persistence.ExecutionRepository().Create(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execution.ID))

	// Snapshot the graph once: structure edits during the run must not
	// change this traversal.
	nodes, edges, err := e.persistence.FlowRepository().Structure(ctx, flowID)
	if err != nil {
		e.failBeforeRun(ctx, execution, fmt.Errorf("failed to load flow structure: %w", err))

		return execution, nil
	}

	g, err := graph.Build(flowID, nodes, edges)
	if err != nil {
		e.failBeforeRun(ctx, execution, err)

		return execution, nil
	}

	e.publish(ctx, execution, events.ExecutionStarted{
		BaseEvent:     e.baseEvent(events.ExecutionStartedEvent, execution),
		ContactNumber: contact,
		StartNodeID:   g.StartNode().NodeID,
	})

	e.run(ctx, g, execution, g.StartNode().NodeID, registry, 0)

	return execution, nil
}

// Resume re-enters traversal of a paused execution at its current node with
// the persisted context. Terminal executions are rejected.
func (e *Engine) Resume(ctx context.Context, executionID string) (*models.FlowExecution, error) {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return nil, persistence.NewExecutionError("Resume", executionID, persistence.ErrExecutionFinished)
	}

	if execution.Status != models.ExecutionStatusPaused {
		return nil, fmt.Errorf("%w: execution %s is %s", ErrNotPaused, executionID, execution.Status)
	}

	if execution.CurrentNodeID == "" {
		return nil, fmt.Errorf("execution %s has no current node to resume from", executionID)
	}

	nodes, edges, err := e.persistence.FlowRepository().Structure(ctx, execution.FlowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow structure: %w", err)
	}

	g, err := graph.Build(execution.FlowID, nodes, edges)
	if err != nil {
		return nil, err
	}

	node, err := g.Node(execution.CurrentNodeID)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatusRunning

	err = e.persistence.ExecutionRepository().Update(ctx, execution)
	if err != nil {
		return nil, err
	}

	e.publish(ctx, execution, events.ExecutionResumed{
		BaseEvent: e.baseEvent(events.ExecutionResumedEvent, execution),
		NodeID:    node.NodeID,
	})

	e.run(ctx, g, execution, node.NodeID, e.registry, 0)

	return execution, nil
}

// run is the traversal loop: iterative depth-first with an explicit stack,
// sequential fan-out, and a step ceiling. It never returns an error; every
// failure is converted into a logged error row plus status=failed.
func (e *Engine) run(ctx context.Context, g *graph.Graph, execution *models.FlowExecution, startNodeID string, registry *executors.Registry, stepsUsed int) {
	release, err := e.locker.Acquire(ctx, execution.ID)
	if err != nil {
		e.logger.ErrorContext(ctx, "could not acquire execution lock",
			"execution_id", execution.ID, "error", err)

		return
	}
	defer release()

	startedAt := time.Now()
	steps := stepsUsed
	stack := []string{startNodeID}

	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, err := g.Node(nodeID)
		if err != nil {
			e.failExecution(ctx, execution, nodeID, "execute", err, 0)

			return
		}

		steps++
		if steps > e.config.MaxSteps {
			err := fmt.Errorf("%w: flow %s exceeded %d steps", ErrMaxStepsExceeded, g.FlowID(), e.config.MaxSteps)
			e.failExecution(ctx, execution, node.NodeID, actionFor(node), err, 0)

			return
		}

		result, duration, err := e.executeNode(ctx, node, execution.Context, registry)
		if err != nil {
			e.failExecution(ctx, execution, node.NodeID, actionFor(node), err, duration)

			return
		}

		// The log's input is the context the node saw, captured before its
		// own output is merged in.
		inputData := copyContext(execution.Context)

		// Shallow merge, later keys win. Node B sees node A's output.
		for key, value := range result.Output {
			if execution.Context == nil {
				execution.Context = make(map[string]any)
			}

			execution.Context[key] = value
		}

		execution.CurrentNodeID = node.NodeID
		if result.Terminal {
			execution.Status = models.ExecutionStatusCompleted
		}

		logStatus := models.LogStatusSuccess
		errorMessage := ""

		if result.Warning != "" {
			logStatus = models.LogStatusWarning
			errorMessage = result.Warning
		}

		// Log row and state are durable before the next node runs.
		e.appendLog(ctx, execution, node.NodeID, actionFor(node), inputData, result.Output, logStatus, errorMessage, duration)

		err = e.persistence.ExecutionRepository().Update(ctx, execution)
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to persist execution state",
				"execution_id", execution.ID, "node_id", node.NodeID, "error", err)

			return
		}

		e.publish(ctx, execution, events.NodeExecuted{
			BaseEvent: e.baseEvent(events.NodeExecutedEvent, execution),
			NodeID:    node.NodeID,
			NodeType:  node.Type,
			Status:    logStatus,
			Duration:  duration,
		})

		if result.Terminal {
			e.publish(ctx, execution, events.ExecutionCompleted{
				BaseEvent: e.baseEvent(events.ExecutionCompletedEvent, execution),
				Steps:     steps,
				Duration:  time.Since(startedAt),
			})

			return
		}

		next := nextTargets(g.OutgoingEdges(node.NodeID), result.SelectedHandle)
		if len(next) == 0 {
			err := fmt.Errorf("%w: node %s handle %q", ErrNoMatchingEdge, node.NodeID, result.SelectedHandle)
			e.failExecution(ctx, execution, node.NodeID, actionFor(node), err, 0)

			return
		}

		// Push in reverse so the first saved edge is walked first.
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}

	// The stack drained without a terminal node: every branch ended on a
	// node with no edges and no end marker. Treat as a dead end.
	err = fmt.Errorf("%w: traversal exhausted without reaching an end node", ErrNoMatchingEdge)
	e.failExecution(ctx, execution, execution.CurrentNodeID, "execute", err, 0)
}

// executeNode runs one executor bounded by the node timeout, retrying
// adapter failures up to the configured attempt total.
func (e *Engine) executeNode(ctx context.Context, node *models.FlowNode, execContext map[string]any, registry *executors.Registry) (protocol.ExecutionResult, time.Duration, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute_node",
		attribute.String(otelhelper.NodeIDKey, node.NodeID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)))
	defer span.End()

	executor, err := registry.Resolve(node.Type)
	if err != nil {
		otelhelper.SetError(span, err)

		return protocol.ExecutionResult{}, 0, err
	}

	startedAt := time.Now()

	var result protocol.ExecutionResult

	for attempt := 1; ; attempt++ {
		nodeCtx, cancel := context.WithTimeout(ctx, e.config.NodeTimeout)
		result, err = executor.Execute(nodeCtx, node, execContext)
		timedOut := errors.Is(nodeCtx.Err(), context.DeadlineExceeded)

		cancel()

		if err == nil {
			return result, time.Since(startedAt), nil
		}

		if timedOut && ctx.Err() == nil {
			err = fmt.Errorf("%w: node %s after %s: %w", ErrNodeTimeout, node.NodeID, e.config.NodeTimeout, err)
		}

		if !protocol.IsAdapterError(err) || attempt >= e.config.RetryAttempts {
			otelhelper.SetError(span, err)

			return protocol.ExecutionResult{}, time.Since(startedAt), err
		}

		e.logger.WarnContext(ctx, "adapter call failed, retrying",
			"node_id", node.NodeID, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return protocol.ExecutionResult{}, time.Since(startedAt), ctx.Err()
		case <-time.After(e.config.RetryDelay):
		}
	}
}

// failBeforeRun marks an execution failed before any node ran, for graph
// load and validation failures. The row is never left dangling in running.
func (e *Engine) failBeforeRun(ctx context.Context, execution *models.FlowExecution, cause error) {
	e.failExecution(ctx, execution, "", "load_graph", cause, 0)
}

func (e *Engine) failExecution(ctx context.Context, execution *models.FlowExecution, nodeID, action string, cause error, duration time.Duration) {
	e.logger.ErrorContext(ctx, "execution failed",
		"execution_id", execution.ID, "node_id", nodeID, "error", cause)

	e.appendLog(ctx, execution, nodeID, action, copyContext(execution.Context), nil, models.LogStatusError, cause.Error(), duration)

	execution.Status = models.ExecutionStatusFailed

	err := e.persistence.ExecutionRepository().Update(ctx, execution)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to persist failed status",
			"execution_id", execution.ID, "error", err)
	}

	e.publish(ctx, execution, events.ExecutionFailed{
		BaseEvent: e.baseEvent(events.ExecutionFailedEvent, execution),
		NodeID:    nodeID,
		Error:     cause.Error(),
		Duration:  duration,
	})
}

func (e *Engine) appendLog(ctx context.Context, execution *models.FlowExecution, nodeID, action string, input, output map[string]any, status models.LogStatus, errorMessage string, duration time.Duration) {
	entry := &models.FlowExecutionLog{
		ExecutionID:  execution.ID,
		NodeID:       nodeID,
		Action:       action,
		InputData:    input,
		OutputData:   output,
		Status:       status,
		ErrorMessage: errorMessage,
		DurationMS:   duration.Milliseconds(),
	}

	err := e.persistence.LogRepository().Append(ctx, entry)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to append execution log",
			"execution_id", execution.ID, "node_id", nodeID, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, execution *models.FlowExecution, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	err := e.eventBus.Publish(ctx, execution.ID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish event",
			"event_type", event.GetType(), "execution_id", execution.ID, "error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, execution *models.FlowExecution) events.BaseEvent {
	id := ""
	if e.eventBus != nil {
		id = e.eventBus.GenerateID()
	}

	return events.BaseEvent{
		ID:          id,
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		FlowID:      execution.FlowID,
		ExecutionID: execution.ID,
		Metadata:    execution.Metadata,
	}
}

func copyContext(execContext map[string]any) map[string]any {
	copied := make(map[string]any, len(execContext))
	for key, value := range execContext {
		copied[key] = value
	}

	return copied
}

// nextTargets filters outgoing edges by the selected handle and returns
// their targets in saved order.
func nextTargets(edges []*models.FlowEdge, selectedHandle string) []string {
	targets := make([]string, 0, len(edges))

	for _, edge := range edges {
		if selectedHandle != "" && edge.SourceHandle != selectedHandle {
			continue
		}

		targets = append(targets, edge.Target)
	}

	return targets
}

func actionFor(node *models.FlowNode) string {
	return "execute_" + string(node.Type)
}
