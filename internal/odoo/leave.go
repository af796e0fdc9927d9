package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/leaveportal/internal/model"
	"github.com/mmeshcher/leaveportal/internal/validation"
)

// Сообщения для пользователя при сбоях бэкенда.
const (
	MsgNetwork            = "Network error. Please try again."
	MsgUnexpectedResponse = "Unexpected server response"
	MsgOverlapFailed      = "Overlap check failed"
	MsgSubmitFailed       = "Failed to submit leave request"
	MsgTypesFailed        = "Error loading leave types"
	MsgBalanceFailed      = "Failed to load leave balance"
	MsgRequestsFailed     = "Failed to load leave requests"
)

// SubmitResult содержит ответ бэкенда на подачу заявки.
type SubmitResult struct {
	Receipt model.Receipt
	Message string
}

type listResult[T any] struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Result  []T    `json:"result"`
}

type overlapResult struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

type submitResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Error   string        `json:"error"`
	Data    model.Receipt `json:"data"`
}

// ListLeaveTypes возвращает типы отпуска, доступные сотруднику.
func (c *Client) ListLeaveTypes(ctx context.Context, employeeNumber string) ([]model.LeaveType, error) {
	raw, err := c.call(ctx, "/api/time-off-types", map[string]string{"employee_number": employeeNumber})
	if err != nil {
		return nil, c.readFailure("list leave types", MsgTypesFailed, err)
	}

	var res listResult[model.LeaveType]
	if raw != nil {
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, c.readFailure("list leave types", MsgTypesFailed, fmt.Errorf("%w: decode result: %w", ErrUnexpectedResponse, err))
		}
	}
	if !res.Success {
		return nil, serverRejected(res.Error, MsgTypesFailed)
	}
	return res.Result, nil
}

// GetBalance возвращает остатки сотрудника по всем видам отпуска.
// Отсутствующие в ответе виды не попадают в снимок и читаются как нулевые.
func (c *Client) GetBalance(ctx context.Context, employeeNumber string) (*model.BalanceSnapshot, error) {
	raw, err := c.call(ctx, "/api/leave-balance", map[string]string{"employee_number": employeeNumber})
	if err != nil {
		return nil, c.readFailure("get balance", MsgBalanceFailed, err)
	}

	var fields map[string]json.RawMessage
	if raw != nil {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, c.readFailure("get balance", MsgBalanceFailed, fmt.Errorf("%w: decode result: %w", ErrUnexpectedResponse, err))
		}
	}

	var success bool
	if v, ok := fields["success"]; ok {
		_ = json.Unmarshal(v, &success)
	}
	if !success {
		var msg string
		if v, ok := fields["error"]; ok {
			_ = json.Unmarshal(v, &msg)
		}
		return nil, serverRejected(msg, MsgBalanceFailed)
	}

	snapshot := &model.BalanceSnapshot{
		Balances:  make(map[model.Category]model.Balance, len(model.Categories)),
		FetchedAt: time.Now(),
	}
	for _, category := range model.Categories {
		v, ok := fields[string(category)]
		if !ok {
			continue
		}
		var b model.Balance
		if err := json.Unmarshal(v, &b); err != nil {
			return nil, c.readFailure("get balance", MsgBalanceFailed, fmt.Errorf("%w: decode %s balance: %w", ErrUnexpectedResponse, category, err))
		}
		snapshot.Balances[category] = b
	}
	return snapshot, nil
}

// CheckOverlap спрашивает бэкенд, не пересекается ли диапазон с уже поданными заявками.
// Любой неожиданный ответ превращается в ErrOverlapCheckFailed.
func (c *Client) CheckOverlap(ctx context.Context, employeeNumber string, from, to time.Time) error {
	raw, err := c.call(ctx, "/api/check/leave/valid", map[string]string{
		"employee_number":   employeeNumber,
		"request_date_from": model.FormatDate(from),
		"request_date_to":   model.FormatDate(to),
	})
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			return validation.Reject(validation.ErrOverlapCheckFailed, rpcErr.Error())
		}
		if errors.Is(err, ErrUnexpectedResponse) {
			c.logger.Warn("unexpected overlap check response", zap.Error(err))
			return validation.Reject(validation.ErrOverlapCheckFailed, MsgUnexpectedResponse)
		}
		return c.networkFailure("check overlap", err)
	}

	var res overlapResult
	if raw == nil || json.Unmarshal(raw, &res) != nil || res.Success == nil {
		return validation.Reject(validation.ErrOverlapCheckFailed, MsgUnexpectedResponse)
	}
	if !*res.Success {
		msg := res.Error
		if msg == "" {
			msg = MsgOverlapFailed
		}
		return validation.Reject(validation.ErrOverlapCheckFailed, msg)
	}
	return nil
}

// SubmitLeaveRequest подаёт заявку multipart-формой. Запрос не повторяется.
func (c *Client) SubmitLeaveRequest(ctx context.Context, req model.AcceptedRequest) (SubmitResult, error) {
	body, contentType, err := encodeLeaveRequest(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode leave request: %w", err)
	}

	data, status, err := c.post(ctx, "/api/leave-request", contentType, body)
	if err != nil {
		return SubmitResult{}, c.networkFailure("submit leave request", err)
	}

	var res submitResponse
	if status != http.StatusOK || json.Unmarshal(data, &res) != nil {
		c.logger.Warn("unexpected submit response", zap.Int("status", status))
		return SubmitResult{}, serverRejected("", MsgSubmitFailed)
	}
	if !res.Success {
		return SubmitResult{}, serverRejected(res.Error, MsgSubmitFailed)
	}
	return SubmitResult{Receipt: res.Data, Message: res.Message}, nil
}

// ListLeaveRequests возвращает ранее поданные заявки сотрудника, новые первыми.
func (c *Client) ListLeaveRequests(ctx context.Context, employeeNumber string) ([]model.LeaveRequestSummary, error) {
	raw, err := c.call(ctx, "/api/my-leave-requests", map[string]string{"employee_number": employeeNumber})
	if err != nil {
		return nil, c.readFailure("list leave requests", MsgRequestsFailed, err)
	}

	var res listResult[model.LeaveRequestSummary]
	if raw != nil {
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, c.readFailure("list leave requests", MsgRequestsFailed, fmt.Errorf("%w: decode result: %w", ErrUnexpectedResponse, err))
		}
	}
	if !res.Success {
		return nil, serverRejected(res.Error, MsgRequestsFailed)
	}
	return res.Result, nil
}

func encodeLeaveRequest(req model.AcceptedRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"employee_number", req.EmployeeNumber},
		{"holiday_status_id", strconv.FormatInt(req.LeaveTypeID, 10)},
		{"request_date_from", model.FormatDate(req.DateFrom)},
		{"request_date_to", model.FormatDate(req.DateTo)},
		{"name", req.Reason},
		{"number_of_days", req.Days.String()},
	}
	if req.HalfDay {
		fields = append(fields, [2]string{"half_day", "on"})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if a := req.Attachment; a != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename=%q`, a.FileName))
		h.Set("Content-Type", a.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create attachment part: %w", err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, "", fmt.Errorf("write attachment: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// readFailure превращает сбой запроса на чтение в отказ для пользователя.
// Ошибка JSON-RPC и некорректный ответ считаются отказом сервера, остальное сетевой ошибкой.
func (c *Client) readFailure(op, fallback string, err error) error {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		c.logger.Warn("backend rpc error", zap.String("op", op), zap.Error(err))
		return serverRejected(rpcErr.Error(), fallback)
	}
	if errors.Is(err, ErrUnexpectedResponse) {
		c.logger.Warn("unexpected backend response", zap.String("op", op), zap.Error(err))
		return serverRejected("", fallback)
	}
	return c.networkFailure(op, err)
}

func (c *Client) networkFailure(op string, err error) error {
	c.logger.Error("backend request failed", zap.String("op", op), zap.Error(err))
	return &validation.Rejection{Err: fmt.Errorf("%w: %w", validation.ErrNetwork, err), Message: MsgNetwork}
}

func serverRejected(msg, fallback string) error {
	if msg == "" {
		msg = fallback
	}
	return validation.Reject(validation.ErrServerRejected, msg)
}
