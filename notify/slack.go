package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/ats/pkg/logger"
)

// Slack posts notifications to an incoming-webhook URL. Every send runs on
// its own goroutine with a request timeout; failures are logged and dropped.
type Slack struct {
	webhookURL string
	channel    string
	client     *http.Client
	log        *zap.Logger
}

// NewSlack builds a webhook notifier. An empty URL yields a disabled
// notifier that silently drops everything, so callers never need to branch.
func NewSlack(webhookURL, channel string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		channel:    channel,
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        logger.Named("slack"),
	}
}

type slackPayload struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

func (s *Slack) TradeEvent(ev Event) {
	s.post(ev.message())
}

func (s *Slack) Error(msg, instrument string) {
	text := "⚠️ Error"
	if instrument != "" {
		text += fmt.Sprintf("\n• Instrument: %s", instrument)
	}
	text += fmt.Sprintf("\n• Detail: %s", msg)
	s.post(text)
}

func (s *Slack) post(text string) {
	if s.webhookURL == "" {
		return
	}

	go func() {
		body, err := json.Marshal(slackPayload{Text: text, Channel: s.channel})
		if err != nil {
			s.log.Error("marshal payload", zap.Error(err))
			return
		}

		resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			s.log.Error("post webhook", zap.Error(err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			s.log.Error("webhook rejected", zap.Int("status", resp.StatusCode))
		}
	}()
}
