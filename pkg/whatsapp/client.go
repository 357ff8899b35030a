package whatsapp

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bkarakus/wa-dispatch-service/environments"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
)

// Client talks to the WhatsApp Business Cloud API (Graph API).
type Client struct {
	httpClient    *resty.Client
	baseURL       string
	phoneNumberID string
}

// TemplateMessage is the wire format for a template send.
type TemplateMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Template         Template `json:"template"`
}

type Template struct {
	Name       string      `json:"name"`
	Language   Language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

type Language struct {
	Code string `json:"code"`
}

type Component struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters"`
}

type Parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MediaMessage is the wire format for an image or audio send that
// references an already-uploaded media id.
type MediaMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Image            *MediaObject `json:"image,omitempty"`
	Audio            *MediaObject `json:"audio,omitempty"`
}

type MediaObject struct {
	ID string `json:"id"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(cfg environments.ProviderConfig) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.AccessToken)

	return &Client{
		httpClient:    client,
		baseURL:       cfg.BaseURL,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
}

// SendTemplate delivers one templated message and returns the provider
// message id. Any non-2xx response is a send failure carrying the
// provider's error text.
func (c *Client) SendTemplate(ctx context.Context, msg TemplateMessage) (string, error) {
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"
	msg.Type = "template"

	return c.postMessage(ctx, msg)
}

// SendMedia delivers an image or audio message referencing mediaID.
func (c *Client) SendMedia(ctx context.Context, to string, mediaType, mediaID string) (string, error) {
	msg := MediaMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             mediaType,
	}

	obj := &MediaObject{ID: mediaID}
	switch mediaType {
	case "image":
		msg.Image = obj
	case "audio":
		msg.Audio = obj
	default:
		return "", fmt.Errorf("unsupported media type %q", mediaType)
	}

	return c.postMessage(ctx, msg)
}

func (c *Client) postMessage(ctx context.Context, body any) (string, error) {
	var sendResp sendResponse
	var errResp apiError

	start := time.Now()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&sendResp).
		SetError(&errResp).
		Post(c.messagesURL())
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	logger.Debugf("Provider send completed in %v (status: %d)", time.Since(start), resp.StatusCode())

	if resp.IsError() {
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("provider rejected message (status %d): %s", resp.StatusCode(), errResp.Error.Message)
		}
		return "", fmt.Errorf("provider rejected message (status %d): %s", resp.StatusCode(), resp.String())
	}

	if len(sendResp.Messages) == 0 {
		return "", fmt.Errorf("provider response contains no message id")
	}

	return sendResp.Messages[0].ID, nil
}

// UploadMedia pushes file bytes to the provider media endpoint and
// returns the media id used by later sends.
func (c *Client) UploadMedia(ctx context.Context, fileName string, fileBytes []byte, mimeType string) (string, error) {
	var uploadResp uploadResponse
	var errResp apiError

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("file", fileName, bytes.NewReader(fileBytes)).
		SetFormData(map[string]string{
			"type":              mimeType,
			"messaging_product": "whatsapp",
		}).
		SetResult(&uploadResp).
		SetError(&errResp).
		Post(fmt.Sprintf("%s/%s/media", c.baseURL, c.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	if resp.IsError() {
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("media upload rejected (status %d): %s", resp.StatusCode(), errResp.Error.Message)
		}
		return "", fmt.Errorf("media upload rejected (status %d): %s", resp.StatusCode(), resp.String())
	}

	if uploadResp.ID == "" {
		return "", fmt.Errorf("media upload response contains no id")
	}

	return uploadResp.ID, nil
}
