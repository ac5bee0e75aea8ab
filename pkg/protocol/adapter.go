// Package protocol defines the contracts between the execution engine, the
// node executors, and the external capability adapters. Concrete providers
// (WhatsApp, OpenAI, department routing) live behind these interfaces so
// executions can run against mocks in tests and dry runs.
package protocol

import "context"

// DeliveryResult reports the outcome of one outbound message.
type DeliveryResult struct {
	MessageID string `json:"message_id,omitempty"`
	Delivered bool   `json:"delivered"`
	Channel   string `json:"channel,omitempty"`
}

// MessageSender delivers a message to a contact on a channel.
type MessageSender interface {
	Send(ctx context.Context, channelID, recipient, content string) (DeliveryResult, error)
}

// ChatCompleter wraps a chat-completion call: opaque system prompt and user
// content in, text out. Used by the intent condition strategy.
type ChatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// Transcriber converts an audio media reference into text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaID string) (string, error)
}

// WebhookCaller performs an outbound HTTP call for webhook actions.
type WebhookCaller interface {
	Call(ctx context.Context, method, url string, payload map[string]any) (map[string]any, error)
}

// TransferKind selects the destination type of a conversation transfer.
type TransferKind string

const (
	TransferKindChatbot    TransferKind = "chatbot"
	TransferKindDepartment TransferKind = "department"
)

// TransferDispatcher hands the conversation over to another chatbot or a
// human department.
type TransferDispatcher interface {
	Transfer(ctx context.Context, kind TransferKind, target, contact string) (map[string]any, error)
}

// Adapters bundles every external capability an execution may need.
// TestExecution swaps the whole bundle for recording mocks.
type Adapters struct {
	Sender      MessageSender
	Completer   ChatCompleter
	Transcriber Transcriber
	Webhook     WebhookCaller
	Transfer    TransferDispatcher
}
