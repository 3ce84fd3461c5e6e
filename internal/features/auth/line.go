package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultLINEVerifyURL — эндпоинт проверки ID-токена LINE Login.
const DefaultLINEVerifyURL = "https://api.line.me/oauth2/v2.1/verify"

// LINEIdentity — данные, которые LINE возвращает для валидного ID-токена.
type LINEIdentity struct {
	Subject string `json:"sub"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// RejectedError — LINE ответил, что токен невалиден (4xx).
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("LINE rejected id token: status %d: %s", e.Status, e.Body)
}

// LINEVerifier проверяет ID-токены через LINE.
type LINEVerifier struct {
	endpoint string
	client   *http.Client
}

// NewLINEVerifier создаёт клиента проверки. endpoint == "" — DefaultLINEVerifyURL.
func NewLINEVerifier(endpoint string, client *http.Client) *LINEVerifier {
	if endpoint == "" {
		endpoint = DefaultLINEVerifyURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &LINEVerifier{endpoint: endpoint, client: client}
}

// Verify отправляет id_token и client_id формой и разбирает ответ.
// 4xx от LINE — *RejectedError, сетевые ошибки и 5xx — обычная ошибка.
func (v *LINEVerifier) Verify(ctx context.Context, idToken, channelID string) (*LINEIdentity, error) {
	form := url.Values{}
	form.Set("id_token", idToken)
	form.Set("client_id", channelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("сборка запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос к LINE: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("чтение ответа LINE: %w", err)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &RejectedError{Status: resp.StatusCode, Body: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("LINE verify: неожиданный статус %d", resp.StatusCode)
	}

	var id LINEIdentity
	if err := json.Unmarshal(body, &id); err != nil {
		return nil, fmt.Errorf("разбор ответа LINE: %w", err)
	}
	if id.Subject == "" {
		return nil, &RejectedError{Status: resp.StatusCode, Body: "missing sub"}
	}
	return &id, nil
}
