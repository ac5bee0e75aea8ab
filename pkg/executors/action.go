package executors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
	"github.com/zapflow/zapflow/pkg/template"
)

// ErrUnsupportedAction is returned when an action node carries an unknown
// actionType.
var ErrUnsupportedAction = errors.New("unsupported action type")

// Action kinds accepted in node data.
const (
	ActionTypeWebhook            = "webhook"
	ActionTypeTransferChatbot    = "transfer_chatbot"
	ActionTypeTransferDepartment = "transfer_department"
	ActionTypeSetVariable        = "set_variable"
	ActionTypeWait               = "wait"
)

// Delays are clamped so a misconfigured wait node cannot hold the node
// timeout hostage.
const maxWaitDuration = 25 * time.Second

// ActionExecutor dispatches an action node to its side-effect adapter.
type ActionExecutor struct {
	webhook  protocol.WebhookCaller
	transfer protocol.TransferDispatcher
}

func NewActionExecutor(webhook protocol.WebhookCaller, transfer protocol.TransferDispatcher) *ActionExecutor {
	return &ActionExecutor{webhook: webhook, transfer: transfer}
}

func (e *ActionExecutor) Execute(ctx context.Context, node *models.FlowNode, execContext map[string]any) (protocol.ExecutionResult, error) {
	actionType, _ := node.Data["actionType"].(string)

	switch actionType {
	case ActionTypeWebhook:
		return e.executeWebhook(ctx, node, execContext)
	case ActionTypeTransferChatbot:
		return e.executeTransfer(ctx, protocol.TransferKindChatbot, node, execContext)
	case ActionTypeTransferDepartment:
		return e.executeTransfer(ctx, protocol.TransferKindDepartment, node, execContext)
	case ActionTypeSetVariable:
		return executeSetVariable(node, execContext)
	case ActionTypeWait:
		return executeWait(ctx, node)
	default:
		return protocol.ExecutionResult{}, fmt.Errorf("%w: %q on node %s", ErrUnsupportedAction, actionType, node.NodeID)
	}
}

func (e *ActionExecutor) executeWebhook(ctx context.Context, node *models.FlowNode, execContext map[string]any) (protocol.ExecutionResult, error) {
	url, _ := node.Data["url"].(string)
	if url == "" {
		return protocol.ExecutionResult{}, fmt.Errorf("webhook action on node %s has no url", node.NodeID)
	}

	method, _ := node.Data["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	payload := renderPayload(node.Data["payload"], execContext)

	response, err := e.webhook.Call(ctx, method, template.Render(url, execContext), payload)
	if err != nil {
		return protocol.ExecutionResult{}, fmt.Errorf("webhook call from node %s failed: %w", node.NodeID, err)
	}

	return protocol.ExecutionResult{
		Output: map[string]any{
			"action_executed":  true,
			"action":           ActionTypeWebhook,
			"webhook_response": response,
		},
	}, nil
}

func (e *ActionExecutor) executeTransfer(ctx context.Context, kind protocol.TransferKind, node *models.FlowNode, execContext map[string]any) (protocol.ExecutionResult, error) {
	target, _ := node.Data["target"].(string)
	if target == "" {
		return protocol.ExecutionResult{}, fmt.Errorf("transfer action on node %s has no target", node.NodeID)
	}

	contact := stringValue(execContext, ContextKeyContact)

	response, err := e.transfer.Transfer(ctx, kind, target, contact)
	if err != nil {
		return protocol.ExecutionResult{}, fmt.Errorf("transfer from node %s failed: %w", node.NodeID, err)
	}

	output := map[string]any{
		"action_executed": true,
		"action":          string(kind),
		"transfer_target": target,
	}

	for key, value := range response {
		output[key] = value
	}

	return protocol.ExecutionResult{Output: output}, nil
}

func executeSetVariable(node *models.FlowNode, execContext map[string]any) (protocol.ExecutionResult, error) {
	variable, _ := node.Data["variable"].(string)
	if variable == "" {
		return protocol.ExecutionResult{}, fmt.Errorf("set_variable action on node %s has no variable name", node.NodeID)
	}

	rawValue := node.Data["value"]
	if text, ok := rawValue.(string); ok {
		rawValue = template.Render(text, execContext)
	}

	return protocol.ExecutionResult{
		Output: map[string]any{
			"action_executed": true,
			"action":          ActionTypeSetVariable,
			variable:          rawValue,
		},
	}, nil
}

func executeWait(ctx context.Context, node *models.FlowNode) (protocol.ExecutionResult, error) {
	seconds, _ := node.Data["duration"].(float64)

	duration := time.Duration(seconds * float64(time.Second))
	if duration < 0 {
		duration = 0
	}

	if duration > maxWaitDuration {
		duration = maxWaitDuration
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return protocol.ExecutionResult{}, fmt.Errorf("wait on node %s interrupted: %w", node.NodeID, ctx.Err())
	case <-timer.C:
	}

	return protocol.ExecutionResult{
		Output: map[string]any{
			"action_executed": true,
			"action":          ActionTypeWait,
			"waited_seconds":  duration.Seconds(),
		},
	}, nil
}

// renderPayload template-substitutes every string value of a webhook
// payload map.
func renderPayload(raw any, execContext map[string]any) map[string]any {
	payload, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}
	}

	rendered := make(map[string]any, len(payload))

	for key, value := range payload {
		if text, isString := value.(string); isString {
			rendered[key] = template.Render(text, execContext)

			continue
		}

		rendered[key] = value
	}

	return rendered
}
