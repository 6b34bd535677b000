// Package tts synthesizes speech through the ElevenLabs API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/fetch"
)

// maxAudioBytes bounds the audio accepted from upstream.
const maxAudioBytes = 32 << 20

var (
	ErrNotConfigured   = errors.New("ElevenLabs API key not configured")
	ErrEmptyText       = errors.New("text is required")
	ErrTextTooLong     = errors.New("text too long")
	ErrSynthesisFailed = errors.New("failed to generate speech")
)

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Client is safe for concurrent use.
type Client struct {
	cfg    config.TTSConfig
	fetch  *fetch.Client
	logger *zap.Logger
}

func New(cfg config.TTSConfig, f *fetch.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, fetch: f, logger: logger}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// MaxTextLength is the longest text Synthesize accepts, in characters.
func (c *Client) MaxTextLength() int {
	return c.cfg.MaxTextLength
}

// Validate checks text against the length limits.
func (c *Client) Validate(text string) error {
	if text == "" {
		return ErrEmptyText
	}
	if c.cfg.MaxTextLength > 0 && len([]rune(text)) > c.cfg.MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}

// Synthesize returns MPEG audio of text spoken by the configured voice.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.Validate(text); err != nil {
		return nil, err
	}

	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode speech request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/text-to-speech/" + url.PathEscape(c.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build speech request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.fetch.Do(ctx, req)
	if err != nil {
		c.logger.Error("TTS request failed", zap.Error(err))
		return nil, ErrSynthesisFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("ElevenLabs API error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail))
		return nil, ErrSynthesisFailed
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		c.logger.Error("Failed to read TTS audio", zap.Error(err))
		return nil, ErrSynthesisFailed
	}
	return audio, nil
}
