package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KING-DAVIDX/cdn-example/config"
)

// Telegram error descriptions are free text; these fragments are how the Bot
// API reports an unknown or malformed file id on getFile.
var handleNotFoundFragments = []string{"file not found", "invalid file_id", "wrong file_id"}

const maxResponseBytes = 1 << 20 // Bot API responses are small JSON documents

// TelegramStore stores blobs as documents in a Telegram channel via the Bot
// API. The file_id Telegram assigns is the opaque handle; download URLs come
// from getFile and expire, so every fetch resolves again.
type TelegramStore struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

// NewTelegramStore builds a store from application configuration.
func NewTelegramStore(cfg config.AppConfig) *TelegramStore {
	return &TelegramStore{
		token:   cfg.TelegramBotToken,
		chatID:  cfg.TelegramChannelID,
		apiBase: strings.TrimRight(cfg.TelegramAPIBase, "/"),
		client:  &http.Client{Timeout: time.Duration(cfg.UpstreamTimeoutSec) * time.Second},
	}
}

// apiResponse is the strict envelope of every Bot API reply. Fields we rely
// on are decoded explicitly; anything absent is a protocol violation, never
// a silently empty handle.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		Document struct {
			FileID string `json:"file_id"`
		} `json:"document"`
		FilePath string `json:"file_path"`
	} `json:"result"`
}

// Store uploads the blob with sendDocument and returns Telegram's file_id.
// Not retried: a slow-but-successful send would be duplicated by a retry.
func (t *TelegramStore) Store(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", t.chatID); err != nil {
		return "", fmt.Errorf("build sendDocument form: %w", err)
	}
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return "", fmt.Errorf("build sendDocument form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build sendDocument form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build sendDocument form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendDocument"), &body)
	if err != nil {
		return "", fmt.Errorf("build sendDocument request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	parsed, err := t.do(req)
	if err != nil {
		return "", err
	}
	if !parsed.OK {
		return "", fmt.Errorf("%w: sendDocument: %s", ErrUpstreamRejected, parsed.Description)
	}
	if parsed.Result.Document.FileID == "" {
		return "", fmt.Errorf("%w: sendDocument response missing result.document.file_id", ErrUpstreamProtocol)
	}
	return parsed.Result.Document.FileID, nil
}

// Resolve asks getFile for a fresh file_path and returns the full download
// URL. getFile is idempotent, so one retry is allowed on transport errors.
func (t *TelegramStore) Resolve(ctx context.Context, handle string) (string, error) {
	parsed, err := t.getFile(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) && ctx.Err() == nil {
			parsed, err = t.getFile(ctx, handle)
		}
		if err != nil {
			return "", err
		}
	}
	if !parsed.OK {
		desc := strings.ToLower(parsed.Description)
		for _, frag := range handleNotFoundFragments {
			if strings.Contains(desc, frag) {
				return "", fmt.Errorf("%w: getFile: %s", ErrHandleNotFound, parsed.Description)
			}
		}
		return "", fmt.Errorf("%w: getFile: %s", ErrUpstreamRejected, parsed.Description)
	}
	if parsed.Result.FilePath == "" {
		return "", fmt.Errorf("%w: getFile response missing result.file_path", ErrUpstreamProtocol)
	}
	return fmt.Sprintf("%s/file/bot%s/%s", t.apiBase, t.token, parsed.Result.FilePath), nil
}

func (t *TelegramStore) getFile(ctx context.Context, handle string) (*apiResponse, error) {
	u := t.methodURL("getFile") + "?file_id=" + url.QueryEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build getFile request: %w", err)
	}
	return t.do(req)
}

// do executes the request and decodes the Bot API envelope. The Bot API
// reports method failures as ok:false JSON with a non-2xx status, so the
// body is decoded regardless of status code.
func (t *TelegramStore) do(req *http.Request) (*apiResponse, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUpstreamUnavailable, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: status %d with non-JSON body", ErrUpstreamRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: undecodable response body: %v", ErrUpstreamProtocol, err)
	}
	return &parsed, nil
}

func (t *TelegramStore) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)
}
