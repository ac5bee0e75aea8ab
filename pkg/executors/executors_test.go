package executors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/pkg/adapters/mock"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

func TestRegistry_ResolveKnownTypes(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(mock.NewAdapters())

	for _, nodeType := range models.KnownNodeTypes {
		executor, err := registry.Resolve(nodeType)
		require.NoError(t, err, "type %s", nodeType)
		assert.NotNil(t, executor)
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(mock.NewAdapters())

	_, err := registry.Resolve(models.NodeType("teleport"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedNodeType)
}

func TestStartExecutor(t *testing.T) {
	t.Parallel()

	result, err := NewStartExecutor().Execute(context.Background(), &models.FlowNode{NodeID: "start-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Flow started", result.Output["message"])
	assert.False(t, result.Terminal)
}

func TestEndExecutor(t *testing.T) {
	t.Parallel()

	node := &models.FlowNode{NodeID: "end-1", Data: map[string]any{"reason": "resolved"}}

	result, err := NewEndExecutor().Execute(context.Background(), node, nil)
	require.NoError(t, err)
	assert.True(t, result.Terminal)
	assert.Equal(t, "Flow completed", result.Output["message"])
	assert.Equal(t, "resolved", result.Output["reason"])
}

func TestMessageExecutor_RendersTemplateAndSends(t *testing.T) {
	t.Parallel()

	sender := mock.NewSender()
	executor := NewMessageExecutor(sender)

	node := &models.FlowNode{
		NodeID: "msg-1",
		Type:   models.NodeTypeMessage,
		Data:   map[string]any{"message": "Olá {{contact.name}}, como posso ajudar?"},
	}

	execContext := map[string]any{
		ContextKeyChannelID: "556199990000",
		ContextKeyContact:   "5511988887777",
		"contact":           map[string]any{"name": "Maria"},
	}

	result, err := executor.Execute(context.Background(), node, execContext)
	require.NoError(t, err)
	assert.Equal(t, true, result.Output["message_sent"])

	messages := sender.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Olá Maria, como posso ajudar?", messages[0].Content)
	assert.Equal(t, "556199990000", messages[0].ChannelID)
	assert.Equal(t, "5511988887777", messages[0].Recipient)
}

func TestMessageExecutor_MissingMessage(t *testing.T) {
	t.Parallel()

	executor := NewMessageExecutor(mock.NewSender())
	node := &models.FlowNode{NodeID: "msg-1", Data: map[string]any{}}

	_, err := executor.Execute(context.Background(), node, map[string]any{})
	require.Error(t, err)
}

func TestMessageExecutor_SenderFailure(t *testing.T) {
	t.Parallel()

	sender := mock.NewSender()
	sender.Err = errors.New("rate limited")

	executor := NewMessageExecutor(sender)
	node := &models.FlowNode{NodeID: "msg-1", Data: map[string]any{"message": "oi"}}

	_, err := executor.Execute(context.Background(), node, map[string]any{})
	require.Error(t, err)
}

func TestActionExecutor_Webhook(t *testing.T) {
	t.Parallel()

	webhook := mock.NewWebhook()
	webhook.Response = map[string]any{"ticket_id": "T-42"}

	executor := NewActionExecutor(webhook, mock.NewTransfer())
	node := &models.FlowNode{
		NodeID: "act-1",
		Data: map[string]any{
			"actionType": ActionTypeWebhook,
			"url":        "https://crm.example.com/contacts/{{contact_number}}",
			"payload":    map[string]any{"message": "{{inbound.content}}"},
		},
	}

	execContext := map[string]any{
		ContextKeyContact: "5511988887777",
		"inbound":         map[string]any{"content": "quero suporte"},
	}

	result, err := executor.Execute(context.Background(), node, execContext)
	require.NoError(t, err)
	assert.Equal(t, true, result.Output["action_executed"])

	calls := webhook.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "POST", calls[0].Method)
	assert.Equal(t, "https://crm.example.com/contacts/5511988887777", calls[0].URL)
	assert.Equal(t, "quero suporte", calls[0].Payload["message"])
}

func TestActionExecutor_Transfer(t *testing.T) {
	t.Parallel()

	transfer := mock.NewTransfer()
	executor := NewActionExecutor(mock.NewWebhook(), transfer)

	node := &models.FlowNode{
		NodeID: "act-1",
		Data: map[string]any{
			"actionType": ActionTypeTransferDepartment,
			"target":     "billing",
		},
	}

	execContext := map[string]any{ContextKeyContact: "5511988887777"}

	result, err := executor.Execute(context.Background(), node, execContext)
	require.NoError(t, err)
	assert.Equal(t, "billing", result.Output["transfer_target"])

	requests := transfer.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, protocol.TransferKindDepartment, requests[0].Kind)
	assert.Equal(t, "5511988887777", requests[0].Contact)
}

func TestActionExecutor_SetVariable(t *testing.T) {
	t.Parallel()

	executor := NewActionExecutor(mock.NewWebhook(), mock.NewTransfer())
	node := &models.FlowNode{
		NodeID: "act-1",
		Data: map[string]any{
			"actionType": ActionTypeSetVariable,
			"variable":   "greeted",
			"value":      "yes",
		},
	}

	result, err := executor.Execute(context.Background(), node, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "yes", result.Output["greeted"])
}

func TestActionExecutor_WaitRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	executor := NewActionExecutor(mock.NewWebhook(), mock.NewTransfer())
	node := &models.FlowNode{
		NodeID: "act-1",
		Data: map[string]any{
			"actionType": ActionTypeWait,
			"duration":   float64(10),
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executor.Execute(ctx, node, map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestActionExecutor_UnknownAction(t *testing.T) {
	t.Parallel()

	executor := NewActionExecutor(mock.NewWebhook(), mock.NewTransfer())
	node := &models.FlowNode{
		NodeID: "act-1",
		Data:   map[string]any{"actionType": "launch_rocket"},
	}

	_, err := executor.Execute(context.Background(), node, map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedAction)
}
