package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ulugbekov/savdo-backend/pkg/config"
)

// SendResult reports the gateway's acknowledgment of a message.
type SendResult struct {
	MessageID string
	Status    string
}

// Notifier is the outbound SMS surface; the worker depends on this so tests
// can inject fakes.
type Notifier interface {
	Send(ctx context.Context, phone, text string) (*SendResult, error)
}

// Client talks to the Eskiz SMS gateway. The gateway hands out bearer tokens
// from an email/password login; tokens expire server-side, so a 401 on send
// triggers one re-login and retry.
type Client struct {
	baseURL     string
	email       string
	password    string
	sender      string
	callbackURL string
	httpClient  *http.Client

	mu    sync.Mutex
	token string
}

// New builds an Eskiz client from configuration.
func New(cfg config.SMSConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("sms base url is required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("sms gateway credentials are required")
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		email:       cfg.Email,
		password:    cfg.Password,
		sender:      cfg.Sender,
		callbackURL: cfg.CallbackURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type loginResponse struct {
	Message string `json:"message"`
	Data    struct {
		Token string `json:"token"`
	} `json:"data"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Send delivers a text to the given phone, refreshing the gateway token once
// when it has expired.
func (c *Client) Send(ctx context.Context, phone, text string) (*SendResult, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	result, status, err := c.send(ctx, token, phone, text)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		token, err = c.login(ctx)
		if err != nil {
			return nil, err
		}
		result, status, err = c.send(ctx, token, phone, text)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("sms gateway returned status %d", status)
	}
	if result.Status != "waiting" && result.Status != "accepted" {
		return nil, fmt.Errorf("sms gateway rejected message: %s", result.Message)
	}
	return &SendResult{MessageID: result.ID, Status: result.Status}, nil
}

func (c *Client) send(ctx context.Context, token, phone, text string) (*sendResponse, int, error) {
	form := url.Values{}
	form.Set("mobile_phone", strings.TrimPrefix(phone, "+"))
	form.Set("message", text)
	form.Set("from", c.sender)
	if c.callbackURL != "" {
		form.Set("callback_url", c.callbackURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message/sms/send", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("sending sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, resp.StatusCode, nil
	}

	var body sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding sms response: %w", err)
	}
	return &body, resp.StatusCode, nil
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("email", c.email)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms gateway login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sms gateway login returned status %d", resp.StatusCode)
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	if body.Data.Token == "" {
		return "", fmt.Errorf("sms gateway login failed: %s", body.Message)
	}

	c.mu.Lock()
	c.token = body.Data.Token
	c.mu.Unlock()
	return body.Data.Token, nil
}
