// Package odoo предоставляет клиент для HR-бэкенда Odoo: справочник типов отпуска,
// остатки, проверку пересечений, подачу заявки и список заявок сотрудника.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 2
	retryWaitMin   = 100 * time.Millisecond
	retryWaitMax   = time.Second
)

var (
	// ErrNotConfigured возвращается, если адрес бэкенда не задан.
	ErrNotConfigured = errors.New("backend client not configured")
	// ErrUnexpectedResponse означает, что бэкенд ответил, но не корректным JSON-RPC ответом.
	ErrUnexpectedResponse = errors.New("unexpected backend response")
)

// Client инкапсулирует HTTP-взаимодействие с бэкендом. Чтение идёт через клиент
// с повторами, подача заявки выполняется ровно один раз.
type Client struct {
	baseURL string
	reader  *retryablehttp.Client
	writer  *http.Client
	logger  *zap.Logger
}

// Option настраивает Client.
type Option func(*Client)

// WithTimeout задаёт таймаут одного HTTP-запроса.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.reader.HTTPClient.Timeout = d
		c.writer.Timeout = d
	}
}

// WithRetries задаёт число повторов для запросов на чтение.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.reader.RetryMax = n
	}
}

// WithLogger подключает zap-логгер к клиенту и к механизму повторов.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
		c.reader.Logger = leveledLogger{l.Sugar()}
	}
}

// NewClient создаёт клиент бэкенда по указанному адресу.
func NewClient(baseURL string, opts ...Option) *Client {
	reader := retryablehttp.NewClient()
	reader.HTTPClient = cleanhttp.DefaultPooledClient()
	reader.HTTPClient.Timeout = defaultTimeout
	reader.RetryMax = defaultRetries
	reader.RetryWaitMin = retryWaitMin
	reader.RetryWaitMax = retryWaitMax
	reader.Logger = nil
	// После исчерпания повторов возвращается последний ответ бэкенда.
	reader.ErrorHandler = retryablehttp.PassthroughErrorHandler

	writer := cleanhttp.DefaultPooledClient()
	writer.Timeout = defaultTimeout

	c := &Client{
		baseURL: normalizeBaseURL(baseURL),
		reader:  reader,
		writer:  writer,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalizeBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

// call выполняет JSON-RPC вызов маршрута type='json' и возвращает поле result.
// Пустой result возвращается как nil без ошибки.
func (c *Client) call(ctx context.Context, path string, params any) (json.RawMessage, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "call", Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.reader.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrUnexpectedResponse, err)
	}
	if rpc.Error != nil {
		return nil, rpc.Error
	}
	if len(rpc.Result) == 0 || bytes.Equal(rpc.Result, []byte("null")) {
		return nil, nil
	}
	return rpc.Result, nil
}

// post отправляет тело как есть, без повторов, и возвращает ответ целиком.
func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, int, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.writer.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// leveledLogger подключает zap к retryablehttp.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
