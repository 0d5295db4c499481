package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Bot API wire types (subset).

type update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *message `json:"message,omitempty"`
	EditedMessage *message `json:"edited_message,omitempty"`
}

type message struct {
	MessageID         int64     `json:"message_id"`
	MessageThreadID   int64     `json:"message_thread_id,omitempty"`
	IsTopicMessage    bool      `json:"is_topic_message,omitempty"`
	Date              int64     `json:"date,omitempty"`
	Chat              *chat     `json:"chat,omitempty"`
	From              *user     `json:"from,omitempty"`
	ReplyTo           *message  `json:"reply_to_message,omitempty"`
	Entities          []entity  `json:"entities,omitempty"`
	Text              string    `json:"text,omitempty"`
	ForumTopicCreated *struct{} `json:"forum_topic_created,omitempty"`
}

type chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type user struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// displayName prefers "First Last", then either part, then "@username".
func displayName(u *user) string {
	if u == nil {
		return ""
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case u.Username != "":
		return "@" + u.Username
	}
	return ""
}

type entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	User   *user  `json:"user,omitempty"` // for text_mention
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	MessageThreadID       int64  `json:"message_thread_id,omitempty"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type sendLocationRequest struct {
	ChatID          string  `json:"chat_id"`
	MessageThreadID int64   `json:"message_thread_id,omitempty"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
}

type sendVenueRequest struct {
	ChatID          string  `json:"chat_id"`
	MessageThreadID int64   `json:"message_thread_id,omitempty"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Title           string  `json:"title"`
	Address         string  `json:"address"`
}

type sendChatActionRequest struct {
	ChatID          string `json:"chat_id"`
	MessageThreadID int64  `json:"message_thread_id,omitempty"`
	Action          string `json:"action"`
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// requestError is a failed Bot API call.
type requestError struct {
	Method      string
	StatusCode  int
	Description string
	RetryAfter  time.Duration
}

func (e *requestError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram %s: http %d", e.Method, e.StatusCode)
}

// allowedUpdates limits deliveries to what the bot handles.
var allowedUpdates = []string{"message"}

// botAPI is a minimal JSON client for the Telegram Bot API.
type botAPI struct {
	http    *http.Client
	baseURL string
	token   string
}

func newBotAPI(httpClient *http.Client, baseURL, token string) *botAPI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &botAPI{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// call POSTs body as JSON to method and decodes the result into out
// (which may be nil).
func (api *botAPI) call(ctx context.Context, method string, body, out interface{}) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("telegram %s: encode: %w", method, err)
		}
		payload = bytes.NewReader(b)
	}
	url := fmt.Sprintf("%s/bot%s/%s", api.baseURL, api.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return fmt.Errorf("telegram %s: decode: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !ar.OK {
		rerr := &requestError{Method: method, StatusCode: resp.StatusCode, Description: ar.Description}
		if rerr.Description == "" {
			rerr.Description = strings.TrimSpace(string(raw))
		}
		if ar.Parameters != nil && ar.Parameters.RetryAfter > 0 {
			rerr.RetryAfter = time.Duration(ar.Parameters.RetryAfter) * time.Second
		}
		return rerr
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

func (api *botAPI) getMe(ctx context.Context) (*user, error) {
	var me user
	if err := api.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// getUpdates long-polls for updates and returns them with the next offset.
func (api *botAPI) getUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]update, int64, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var updates []update
	err := api.call(reqCtx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        secs,
		AllowedUpdates: allowedUpdates,
	}, &updates)
	if err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

func (api *botAPI) sendMessage(ctx context.Context, req sendMessageRequest) error {
	return api.call(ctx, "sendMessage", req, nil)
}

func (api *botAPI) sendLocation(ctx context.Context, req sendLocationRequest) error {
	return api.call(ctx, "sendLocation", req, nil)
}

func (api *botAPI) sendVenue(ctx context.Context, req sendVenueRequest) error {
	return api.call(ctx, "sendVenue", req, nil)
}

func (api *botAPI) sendChatAction(ctx context.Context, req sendChatActionRequest) error {
	return api.call(ctx, "sendChatAction", req, nil)
}

func (api *botAPI) setWebhook(ctx context.Context, url, secret string) error {
	return api.call(ctx, "setWebhook", setWebhookRequest{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: allowedUpdates,
	}, nil)
}

func (api *botAPI) deleteWebhook(ctx context.Context) error {
	return api.call(ctx, "deleteWebhook", nil, nil)
}

// isPollTimeout reports whether err is the expected end of a long poll.
func isPollTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryAfter returns how long Telegram asked us to wait, or zero when err
// is not a flood-control error.
func retryAfter(err error) time.Duration {
	var rerr *requestError
	if errors.As(err, &rerr) && rerr.StatusCode == http.StatusTooManyRequests {
		if rerr.RetryAfter > 0 {
			return rerr.RetryAfter
		}
		return time.Second
	}
	return 0
}
