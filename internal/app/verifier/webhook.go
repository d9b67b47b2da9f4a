package verifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"
)

const SignatureHeader = "X-ZKP-Signature"

type webhookPayload struct {
	ChallengeID string `json:"challenge_id"`
	State       State  `json:"state"`
	OK          bool   `json:"ok"`
	Reason      string `json:"reason,omitempty"`
	ReasonCode  string `json:"reason_code,omitempty"`
	Commitment  string `json:"commitment,omitempty"`
	DecidedAt   string `json:"decided_at"`
}

// SignPayload is the hex HMAC-SHA256 sent in SignatureHeader.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// postWebhook delivers the verdict to the callback of the challenge, if any.
// Delivery is best effort.
func (s *Service) postWebhook(rec ChallengeRecord, v Verdict) {
	if rec.Challenge.CallbackURL == "" {
		return
	}

	body, err := json.Marshal(webhookPayload{
		ChallengeID: v.ChallengeID,
		State:       v.State,
		OK:          v.OK,
		Reason:      v.Reason,
		ReasonCode:  string(v.ReasonCode),
		Commitment:  v.Commitment,
		DecidedAt:   v.DecidedAt.Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error(err, "Cannot marshal webhook payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rec.Challenge.CallbackURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Errorf(err, "Invalid callback url for challenge %s", v.ChallengeID)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if rec.CallbackSecret != "" {
		req.Header.Set(SignatureHeader, SignPayload(rec.CallbackSecret, body))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Errorf(err, "Webhook for challenge %s failed", v.ChallengeID)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warnf("Webhook for challenge %s answered %d", v.ChallengeID, resp.StatusCode)
	}
}
