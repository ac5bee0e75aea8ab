package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/zapflow/zapflow/pkg/executors"
	"github.com/zapflow/zapflow/pkg/protocol"
	"github.com/zapflow/zapflow/pkg/services"
)

// WebhookPayload is the WhatsApp Cloud API webhook envelope, reduced to the
// fields the trigger path reads.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	Metadata WebhookMetadata  `json:"metadata"`
	Messages []InboundMessage `json:"messages"`
}

type WebhookMetadata struct {
	PhoneNumberID string `json:"phone_number_id"`
}

type InboundMessage struct {
	From  string        `json:"from"`
	Type  string        `json:"type"`
	Text  *MessageText  `json:"text,omitempty"`
	Audio *MessageAudio `json:"audio,omitempty"`
}

type MessageText struct {
	Body string `json:"body"`
}

type MessageAudio struct {
	ID string `json:"id"`
}

// WebhookHandlers receives inbound WhatsApp messages and turns them into
// flow executions via trigger matching. Audio messages are transcribed
// before matching so voice input can drive the same flows as text.
type WebhookHandlers struct {
	executionService *services.Execution
	transcriber      protocol.Transcriber
	verifyToken      string
	logger           *slog.Logger
}

func NewWebhookHandlers(
	executionService *services.Execution,
	transcriber protocol.Transcriber,
	verifyToken string,
	logger *slog.Logger,
) *WebhookHandlers {
	return &WebhookHandlers{
		executionService: executionService,
		transcriber:      transcriber,
		verifyToken:      verifyToken,
		logger:           logger.With("module", "webhook"),
	}
}

// Register mounts the webhook routes on the app.
func (h *WebhookHandlers) Register(app *fiber.App) {
	app.Get("/webhooks/whatsapp", h.Verify)
	app.Post("/webhooks/whatsapp", h.Receive)
}

// Verify answers the Cloud API subscription handshake: echo hub.challenge
// when the verify token matches.
func (h *WebhookHandlers) Verify(c fiber.Ctx) error {
	if c.Query("hub.mode") != "subscribe" || c.Query("hub.verify_token") != h.verifyToken {
		return c.SendStatus(fiber.StatusForbidden)
	}

	return c.SendString(c.Query("hub.challenge"))
}

// Receive processes inbound messages. It always answers 200 to the
// provider: delivery must not be retried because a flow failed, and every
// failure is already recorded on the execution itself.
func (h *WebhookHandlers) Receive(c fiber.Ctx) error {
	var payload WebhookPayload

	err := c.Bind().Body(&payload)
	if err != nil {
		return badRequest(c, "invalid webhook payload: "+err.Error())
	}

	if payload.Object != "whatsapp_business_account" {
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	started := 0

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, message := range change.Value.Messages {
				if h.handleMessage(c, change.Value.Metadata.PhoneNumberID, message) {
					started++
				}
			}
		}
	}

	return c.JSON(fiber.Map{"status": "ok", "executions_started": started})
}

func (h *WebhookHandlers) handleMessage(c fiber.Ctx, phoneNumberID string, message InboundMessage) bool {
	ctx := c.Context()

	content, ok := h.messageContent(c, message)
	if !ok {
		return false
	}

	flow, err := h.executionService.MatchTrigger(ctx, content)
	if err != nil {
		h.logger.ErrorContext(ctx, "trigger matching failed", "error", err)

		return false
	}

	if flow == nil {
		h.logger.DebugContext(ctx, "no flow matched inbound message", "from", message.From)

		return false
	}

	execution, err := h.executionService.Start(ctx, flow.ID, phoneNumberID, message.From, map[string]any{
		executors.ContextKeyInbound: map[string]any{
			"content": content,
			"type":    message.Type,
		},
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start execution from webhook",
			"flow_id", flow.ID, "from", message.From, "error", err)

		return false
	}

	h.logger.InfoContext(ctx, "started execution from inbound message",
		"flow_id", flow.ID, "execution_id", execution.ID, "status", execution.Status)

	return true
}

func (h *WebhookHandlers) messageContent(c fiber.Ctx, message InboundMessage) (string, bool) {
	switch message.Type {
	case "text":
		if message.Text == nil || message.Text.Body == "" {
			return "", false
		}

		return message.Text.Body, true
	case "audio":
		if message.Audio == nil || h.transcriber == nil {
			return "", false
		}

		content, err := h.transcriber.Transcribe(c.Context(), message.Audio.ID)
		if err != nil {
			h.logger.ErrorContext(c.Context(), "audio transcription failed",
				"media_id", message.Audio.ID, "error", err)

			return "", false
		}

		return content, true
	default:
		return "", false
	}
}
