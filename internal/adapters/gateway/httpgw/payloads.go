package httpgw

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"golang-wa-broadcast/internal/domain"
)

const (
	pathStatus     = "/api/whatsapp/status"
	pathQR         = "/api/whatsapp/qr"
	pathDisconnect = "/api/whatsapp/disconnect"
	pathSend       = "/api/whatsapp/send"
	pathCheck      = "/api/whatsapp/check"
)

type statusResponse struct {
	Success   bool `json:"success"`
	Connected bool `json:"connected"`
}

type qrResponse struct {
	Success   bool   `json:"success"`
	QR        string `json:"qr"`
	ExpiresIn int64  `json:"expiresIn"` // milliseconds
}

// failureEnvelope catches {"success": false} and {"error": "..."} bodies.
type failureEnvelope struct {
	Success *bool           `json:"success"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type resultsEnvelope struct {
	TotalSent   *int              `json:"totalSent"`
	TotalFailed *int              `json:"totalFailed"`
	Results     []json.RawMessage `json:"results"`
}

// resultEntry covers both the send and the check result element shapes.
type resultEntry struct {
	Number          string `json:"number"`
	FormattedNumber string `json:"formattedNumber"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	IsOnWhatsApp    *bool  `json:"isOnWhatsApp"`
	Error           string `json:"error"`
}

// encodeBatch builds {"numbers": [...], <extra>...}.
func encodeBatch(batch domain.Batch, extra map[string]string) ([]byte, error) {
	body := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		body[k] = v
	}
	numbers := []string(batch)
	if numbers == nil {
		numbers = []string{}
	}
	body["numbers"] = numbers
	return json.Marshal(body)
}

// bodyFailure reports an explicit failure carried in an otherwise 2xx body.
func bodyFailure(data []byte) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var env failureEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return "", false
	}
	msg := errorText(env.Error)
	if msg == "" {
		msg = env.Message
	}
	if env.Success != nil && !*env.Success {
		if msg == "" {
			msg = "gateway reported failure"
		}
		return msg, true
	}
	if len(env.Error) > 0 && !bytes.Equal(env.Error, []byte("null")) {
		return msg, true
	}
	return "", false
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

// remoteError builds the error for a non-2xx answer.
func remoteError(status int, data []byte) *domain.RemoteError {
	msg, _ := bodyFailure(data)
	if msg == "" {
		msg = string(bytes.TrimSpace(data))
		if len(msg) > 256 {
			msg = msg[:256]
		}
	}
	return &domain.RemoteError{StatusCode: status, Message: msg}
}

// decodeResults accepts {"results": [...]} or a bare list and returns the
// outcomes in response order plus the remote totals when present.
func decodeResults(mode domain.Mode, data []byte) ([]domain.DispatchOutcome, *resultsEnvelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, &domain.DecodeError{Err: errors.New("empty body")}
	}

	var env resultsEnvelope
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &env.Results); err != nil {
			return nil, nil, &domain.DecodeError{Err: err}
		}
	case '{':
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, nil, &domain.DecodeError{Err: err}
		}
		if env.Results == nil {
			return nil, &env, &domain.DecodeError{Err: errors.New("missing results list")}
		}
	default:
		return nil, nil, &domain.DecodeError{Err: fmt.Errorf("unexpected body starting with %q", trimmed[0])}
	}

	outcomes := make([]domain.DispatchOutcome, 0, len(env.Results))
	for _, raw := range env.Results {
		var e resultEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		number := e.Number
		if number == "" {
			number = e.FormattedNumber
		}
		if number == "" {
			continue
		}
		outcomes = append(outcomes, domain.DispatchOutcome{
			Recipient: number,
			Status:    entryStatus(mode, e),
			Timestamp: e.Timestamp,
			Reason:    e.Error,
		})
	}
	return outcomes, &env, nil
}

func entryStatus(mode domain.Mode, e resultEntry) domain.OutcomeStatus {
	if mode.IsVerify() {
		if e.IsOnWhatsApp != nil && *e.IsOnWhatsApp {
			return domain.OutcomeAvailable
		}
		return domain.OutcomeUnavailable
	}
	if e.Status == string(domain.OutcomeSent) {
		return domain.OutcomeSent
	}
	return domain.OutcomeFailed
}
