package assistant

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brightclass/voicesession/internal/assistant"
)

type HTTPAssistant struct {
	endpointURL string
	accountID   string
	language    string
	client      *http.Client
}

func NewHTTPAssistant(endpointURL, accountID, language string) assistant.Assistant {
	return &HTTPAssistant{
		endpointURL: endpointURL,
		accountID:   accountID,
		language:    language,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type messageRequest struct {
	AccountID  string `json:"account_id"`
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
}

type messageResponse struct {
	Text  string `json:"text"`
	Audio string `json:"audio,omitempty"`
}

func (a *HTTPAssistant) SendMessage(ctx context.Context, transcript string) (assistant.Reply, error) {
	b, err := json.Marshal(messageRequest{
		AccountID:  a.accountID,
		Transcript: transcript,
		Language:   a.language,
	})
	if err != nil {
		return assistant.Reply{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpointURL, bytes.NewReader(b))
	if err != nil {
		return assistant.Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return assistant.Reply{}, fmt.Errorf("send message to assistant: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return assistant.Reply{}, fmt.Errorf("assistant returned status %d", resp.StatusCode)
	}

	var body messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return assistant.Reply{}, fmt.Errorf("decode assistant response: %w", err)
	}

	reply := assistant.Reply{Text: body.Text}
	if body.Audio != "" {
		audio, err := base64.StdEncoding.DecodeString(body.Audio)
		if err != nil {
			return assistant.Reply{}, fmt.Errorf("decode assistant audio: %w", err)
		}
		reply.Audio = audio
	}
	return reply, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
