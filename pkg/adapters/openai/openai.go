// Package openai backs the AI capabilities: intent condition evaluation via
// chat completions and audio transcription via Whisper.
package openai

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zapflow/zapflow/pkg/protocol"
)

// MediaDownloader resolves a channel media ID to its raw bytes. The
// WhatsApp client implements it.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, error)
}

// Client implements ChatCompleter and Transcriber on the OpenAI API.
type Client struct {
	api        *openai.Client
	model      string
	downloader MediaDownloader
}

// NewClient creates an OpenAI-backed adapter. The downloader may be nil when
// transcription is not needed.
func NewClient(apiKey, model string, downloader MediaDownloader) *Client {
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Client{
		api:        openai.NewClient(apiKey),
		model:      model,
		downloader: downloader,
	}
}

// Complete runs one chat completion and returns the assistant's text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	response, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
	})
	if err != nil {
		return "", protocol.NewAdapterError("openai", err)
	}

	if len(response.Choices) == 0 {
		return "", protocol.NewAdapterError("openai", fmt.Errorf("completion returned no choices"))
	}

	return response.Choices[0].Message.Content, nil
}

// Transcribe downloads the referenced audio and runs it through Whisper.
func (c *Client) Transcribe(ctx context.Context, mediaID string) (string, error) {
	if c.downloader == nil {
		return "", fmt.Errorf("no media downloader configured")
	}

	audio, err := c.downloader.DownloadMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}

	response, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: mediaID + ".ogg",
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", protocol.NewAdapterError("openai", err)
	}

	return response.Text, nil
}
