package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to an OpenAI-compatible speech API: whisper-style
// transcription and the /audio/speech synthesis endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	sttModel   string
	ttsModel   string
	ttsVoice   string
	httpClient *http.Client
}

// OpenAIConfig carries the credentials and model choices for the client.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	STTModel string
	TTSModel string
	TTSVoice string
	Timeout  time.Duration
}

// NewOpenAIClient builds a client with sensible defaults for empty fields.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	sttModel := cfg.STTModel
	if sttModel == "" {
		sttModel = "whisper-1"
	}
	ttsModel := cfg.TTSModel
	if ttsModel == "" {
		ttsModel = "tts-1"
	}
	ttsVoice := cfg.TTSVoice
	if ttsVoice == "" {
		ttsVoice = "nova"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		sttModel:   sttModel,
		ttsModel:   ttsModel,
		ttsVoice:   ttsVoice,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Transcribe sends the utterance to the transcription endpoint.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := writer.WriteField("model", c.sttModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseError("transcription", resp)
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return payload.Text, nil
}

// Synthesize sends the reply text to the speech endpoint and returns MP3.
func (c *OpenAIClient) Synthesize(ctx context.Context, text string) (Audio, error) {
	payload := map[string]any{
		"model": c.ttsModel,
		"voice": c.ttsVoice,
		"input": text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Audio{}, fmt.Errorf("marshal synthesis payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Audio{}, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Audio{}, c.parseError("synthesis", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("read synthesis response: %w", err)
	}
	return Audio{Data: data, Format: "mp3"}, nil
}

func (c *OpenAIClient) parseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return fmt.Errorf("%s failed: status %d: %s", op, resp.StatusCode, message)
}

var (
	_ Transcriber = (*OpenAIClient)(nil)
	_ Synthesizer = (*OpenAIClient)(nil)
)
