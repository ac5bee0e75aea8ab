package executors

import (
	"context"
	"fmt"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
	"github.com/zapflow/zapflow/pkg/template"
)

// Context keys the engine seeds when an execution starts. Executors read
// them to address outbound calls; flow authors can reference them in
// templates like any other context value. The inbound message lives under
// its own key so step outputs merged into the context can never shadow it.
const (
	ContextKeyChannelID = "whatsapp_number_id"
	ContextKeyContact   = "contact_number"
	ContextKeyInbound   = "inbound"
)

// MessageExecutor renders the node's message template against the execution
// context and delivers it through the message sender.
type MessageExecutor struct {
	sender protocol.MessageSender
}

func NewMessageExecutor(sender protocol.MessageSender) *MessageExecutor {
	return &MessageExecutor{sender: sender}
}

func (e *MessageExecutor) Execute(ctx context.Context, node *models.FlowNode, execContext map[string]any) (protocol.ExecutionResult, error) {
	rawMessage, _ := node.Data["message"].(string)
	if rawMessage == "" {
		return protocol.ExecutionResult{}, fmt.Errorf("message node %s has no message configured", node.NodeID)
	}

	content := template.Render(rawMessage, execContext)
	channelID := stringValue(execContext, ContextKeyChannelID)
	recipient := stringValue(execContext, ContextKeyContact)

	delivery, err := e.sender.Send(ctx, channelID, recipient, content)
	if err != nil {
		return protocol.ExecutionResult{}, fmt.Errorf("failed to send message from node %s: %w", node.NodeID, err)
	}

	return protocol.ExecutionResult{
		Output: map[string]any{
			"message_sent": delivery.Delivered,
			"message":      content,
			"message_id":   delivery.MessageID,
		},
	}, nil
}

func stringValue(execContext map[string]any, key string) string {
	value, _ := execContext[key].(string)

	return value
}
