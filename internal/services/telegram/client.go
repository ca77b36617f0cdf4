package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client calls the Bot API over HTTPS.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	// pollClient has no overall timeout; getUpdates is bounded by its context.
	pollClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a Bot API client.
func New(token, baseURL string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram bot token required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("telegram base url required")
	}
	client := &Client{
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	poll := *client.httpClient
	poll.Timeout = 0
	client.pollClient = &poll
	return client, nil
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

// call posts params as JSON to method and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	return c.callWith(ctx, c.httpClient, method, params, out)
}

func (c *Client) callWith(ctx context.Context, hc *http.Client, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}
	endpoint := c.baseURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	requestStart := time.Now()
	resp, err := hc.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		// The URL embeds the token; never surface it.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s (latency=%v): %w", method, latency, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("telegram %s returned %d (latency=%v): decode: %w", method, resp.StatusCode, latency, err)
	}
	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var user User
	err := c.call(ctx, "getMe", struct{}{}, &user)
	return user, err
}

// GetUpdates long-polls for updates after offset. The request deadline is
// the poll timeout plus the ordinary request timeout so the server, not the
// client, ends the wait.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout+c.httpClient.Timeout+time.Second)
	defer cancel()
	var updates []Update
	err := c.callWith(pollCtx, c.pollClient, "getUpdates", params, &updates)
	return updates, err
}

func applySendOptions(params map[string]any, opts SendOptions) {
	if opts.ParseMode != "" {
		params["parse_mode"] = opts.ParseMode
	}
	if opts.ReplyMarkup != nil {
		params["reply_markup"] = opts.ReplyMarkup
	}
}

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (Message, error) {
	params := map[string]any{"chat_id": chatID, "text": text}
	applySendOptions(params, opts)
	var msg Message
	err := c.call(ctx, "sendMessage", params, &msg)
	return msg, err
}

// SendVideo sends a previously uploaded video by file id.
func (c *Client) SendVideo(ctx context.Context, chatID int64, fileID, caption string) (Message, error) {
	params := map[string]any{"chat_id": chatID, "video": fileID}
	if caption != "" {
		params["caption"] = caption
	}
	var msg Message
	err := c.call(ctx, "sendVideo", params, &msg)
	return msg, err
}

// EditMessageText replaces the text (and keyboard) of a sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts SendOptions) error {
	params := map[string]any{"chat_id": chatID, "message_id": messageID, "text": text}
	applySendOptions(params, opts)
	return c.call(ctx, "editMessageText", params, nil)
}

// AnswerCallbackQuery acknowledges a button press, optionally as an alert.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error {
	params := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		params["text"] = text
	}
	if showAlert {
		params["show_alert"] = true
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// GetChatMember looks up userID's membership in chatID, which may be a
// numeric id or an @handle.
func (c *Client) GetChatMember(ctx context.Context, chatID string, userID int64) (ChatMember, error) {
	params := map[string]any{"user_id": userID}
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		params["chat_id"] = id
	} else {
		params["chat_id"] = chatID
	}
	var member ChatMember
	err := c.call(ctx, "getChatMember", params, &member)
	return member, err
}

// SetWebhook registers webhookURL for push delivery. secret, when set, is echoed in
// the X-Telegram-Bot-Api-Secret-Token header of every push.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	params := map[string]any{
		"url":             webhookURL,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		params["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", params, nil)
}

// DeleteWebhook switches the bot back to getUpdates.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{}, nil)
}

// GetWebhookInfo reports the current webhook registration.
func (c *Client) GetWebhookInfo(ctx context.Context) (WebhookInfo, error) {
	var info WebhookInfo
	err := c.call(ctx, "getWebhookInfo", struct{}{}, &info)
	return info, err
}
