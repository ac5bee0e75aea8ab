// Package mock provides recording, in-memory implementations of every
// capability adapter. Test executions and the CLI dry-runner use them so a
// flow can run end to end without touching WhatsApp, OpenAI, or the network.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/zapflow/zapflow/pkg/protocol"
)

// SentMessage records one Send call.
type SentMessage struct {
	ChannelID string
	Recipient string
	Content   string
}

// Sender records outbound messages instead of delivering them.
type Sender struct {
	mu       sync.Mutex
	messages []SentMessage

	// Err, when set, is returned by every Send call.
	Err error
}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(_ context.Context, channelID, recipient, content string) (protocol.DeliveryResult, error) {
	if s.Err != nil {
		return protocol.DeliveryResult{}, s.Err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, SentMessage{ChannelID: channelID, Recipient: recipient, Content: content})

	return protocol.DeliveryResult{
		MessageID: fmt.Sprintf("mock-%d", len(s.messages)),
		Delivered: true,
		Channel:   channelID,
	}, nil
}

// Messages returns a copy of everything sent so far.
func (s *Sender) Messages() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SentMessage, len(s.messages))
	copy(out, s.messages)

	return out
}

// Completer answers every completion with a fixed response.
type Completer struct {
	Response string
	Err      error
}

func NewCompleter(response string) *Completer {
	return &Completer{Response: response}
}

func (c *Completer) Complete(_ context.Context, _, _ string) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}

	return c.Response, nil
}

// Transcriber returns a fixed transcript for any media ID.
type Transcriber struct {
	Transcript string
	Err        error
}

func NewTranscriber(transcript string) *Transcriber {
	return &Transcriber{Transcript: transcript}
}

func (t *Transcriber) Transcribe(_ context.Context, _ string) (string, error) {
	if t.Err != nil {
		return "", t.Err
	}

	return t.Transcript, nil
}

// WebhookCall records one Call invocation.
type WebhookCall struct {
	Method  string
	URL     string
	Payload map[string]any
}

// Webhook records outbound webhook calls and returns a canned response.
type Webhook struct {
	mu    sync.Mutex
	calls []WebhookCall

	Response map[string]any
	Err      error
}

func NewWebhook() *Webhook {
	return &Webhook{Response: map[string]any{"ok": true}}
}

func (w *Webhook) Call(_ context.Context, method, url string, payload map[string]any) (map[string]any, error) {
	if w.Err != nil {
		return nil, w.Err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls = append(w.calls, WebhookCall{Method: method, URL: url, Payload: payload})

	return w.Response, nil
}

// Calls returns a copy of every webhook call so far.
func (w *Webhook) Calls() []WebhookCall {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]WebhookCall, len(w.calls))
	copy(out, w.calls)

	return out
}

// TransferRequest records one Transfer invocation.
type TransferRequest struct {
	Kind    protocol.TransferKind
	Target  string
	Contact string
}

// Transfer records conversation handovers.
type Transfer struct {
	mu       sync.Mutex
	requests []TransferRequest

	Err error
}

func NewTransfer() *Transfer {
	return &Transfer{}
}

func (t *Transfer) Transfer(_ context.Context, kind protocol.TransferKind, target, contact string) (map[string]any, error) {
	if t.Err != nil {
		return nil, t.Err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests = append(t.requests, TransferRequest{Kind: kind, Target: target, Contact: contact})

	return map[string]any{"transferred": true}, nil
}

// Requests returns a copy of every transfer so far.
func (t *Transfer) Requests() []TransferRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TransferRequest, len(t.requests))
	copy(out, t.requests)

	return out
}

// NewAdapters bundles a full set of mock adapters. The intent completer
// answers "no" by default so intent conditions take the false branch.
func NewAdapters() protocol.Adapters {
	return protocol.Adapters{
		Sender:      NewSender(),
		Completer:   NewCompleter("no"),
		Transcriber: NewTranscriber(""),
		Webhook:     NewWebhook(),
		Transfer:    NewTransfer(),
	}
}
