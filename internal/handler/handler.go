// Package handler содержит HTTP-обработчики API портала заявок на отпуск.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/leaveportal/internal/middleware"
	"github.com/mmeshcher/leaveportal/internal/model"
	"github.com/mmeshcher/leaveportal/internal/service"
	"github.com/mmeshcher/leaveportal/internal/validation"
)

const (
	// MaxAttachmentSize ограничивает размер подтверждающего документа.
	MaxAttachmentSize = 2 << 20
	multipartOverhead = 64 << 10
	attachmentField   = "attachment"
)

var allowedAttachmentTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Service определяет контракт сессий формы, используемый HTTP-обработчиками.
type Service interface {
	Open(ctx context.Context, employeeNumber string) (service.View, error)
	View(ctx context.Context, id string) (service.View, error)
	Apply(ctx context.Context, id string, ch service.Change) (service.View, error)
	Await(ctx context.Context, id string) (service.View, error)
	Submit(ctx context.Context, id string) (service.View, error)
	Discard(ctx context.Context, id string) error
	ListRequests(ctx context.Context, employeeNumber string) ([]model.LeaveRequestSummary, error)
}

// Handler реализует HTTP-обработчики API формы заявки.
type Handler struct {
	service     Service
	logger      *zap.Logger
	session     *middleware.FormSession
	validate    *validator.Validate
	overlapWait time.Duration
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. overlapWait ограничивает
// ожидание проверки пересечений в запросах с параметром wait.
func NewHandler(s Service, logger *zap.Logger, session *middleware.FormSession, overlapWait time.Duration) *Handler {
	return &Handler{
		service:     s,
		logger:      logger,
		session:     session,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		overlapWait: overlapWait,
	}
}

type openRequest struct {
	EmployeeNumber string `json:"employee_number" validate:"required,max=64"`
}

type updateRequest struct {
	LeaveTypeID *int64  `json:"leave_type_id" validate:"omitempty,gte=0"`
	DateFrom    *string `json:"date_from"`
	DateTo      *string `json:"date_to"`
	HalfDay     *bool   `json:"half_day"`
	Reason      *string `json:"reason" validate:"omitempty,max=2000"`
}

type errorResponse struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	View    *service.View `json:"view,omitempty"`
}

// OpenForm создаёт сессию формы и выставляет cookie.
func (h *Handler) OpenForm(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.service.Open(r.Context(), req.EmployeeNumber)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	h.session.SetCookie(w, view.SessionID)
	writeJSON(w, http.StatusCreated, view)
}

// GetForm возвращает текущее состояние формы. С параметром wait=true сначала
// ждёт завершения проверки пересечений.
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.SessionIDFromContext(r.Context())

	var (
		view service.View
		err  error
	)
	if wantWait(r) {
		view, err = h.await(r.Context(), id)
	} else {
		view, err = h.service.View(r.Context(), id)
	}
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateForm применяет изменения полей формы.
func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.SessionIDFromContext(r.Context())

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ch, err := req.change()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.applyAndRespond(w, r, id, ch)
}

func (req updateRequest) change() (service.Change, error) {
	ch := service.Change{
		LeaveTypeID: req.LeaveTypeID,
		HalfDay:     req.HalfDay,
		Reason:      req.Reason,
	}
	if req.DateFrom != nil {
		d, err := model.ParseDate(*req.DateFrom)
		if err != nil {
			return service.Change{}, err
		}
		ch.DateFrom = &d
	}
	if req.DateTo != nil {
		d, err := model.ParseDate(*req.DateTo)
		if err != nil {
			return service.Change{}, err
		}
		ch.DateTo = &d
	}
	return ch, nil
}

// UploadAttachment принимает подтверждающий документ в поле attachment.
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.SessionIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxAttachmentSize+multipartOverhead)
	if err := r.ParseMultipartForm(MaxAttachmentSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(attachmentField)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxAttachmentSize+1))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if len(data) > MaxAttachmentSize {
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	mime := mimetype.Detect(data)
	if !allowedMIME(mime) {
		http.Error(w, http.StatusText(http.StatusUnsupportedMediaType), http.StatusUnsupportedMediaType)
		return
	}

	h.applyAndRespond(w, r, id, service.Change{Attachment: &model.Attachment{
		FileName:    header.Filename,
		ContentType: mime.String(),
		Size:        int64(len(data)),
		Data:        data,
	}})
}

func allowedMIME(m *mimetype.MIME) bool {
	for _, t := range allowedAttachmentTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}

// RemoveAttachment убирает приложенный документ.
func (h *Handler) RemoveAttachment(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.SessionIDFromContext(r.Context())
	h.applyAndRespond(w, r, id, service.Change{ClearAttachment: true})
}

func (h *Handler) applyAndRespond(w http.ResponseWriter, r *http.Request, id string, ch service.Change) {
	view, err := h.service.Apply(r.Context(), id, ch)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	if wantWait(r) && view.Checking {
		awaited, err := h.await(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err, nil)
			return
		}
		if awaited.Notification == nil {
			awaited.Notification = view.Notification
		}
		view = awaited
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) await(ctx context.Context, id string) (service.View, error) {
	ctx, cancel := context.WithTimeout(ctx, h.overlapWait)
	defer cancel()
	return h.service.Await(ctx, id)
}

// SubmitForm подаёт заявку. При успехе cookie формы удаляется, а ответ содержит
// квитанцию и адрес страницы успеха.
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.SessionIDFromContext(r.Context())

	view, err := h.service.Submit(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, &view)
		return
	}

	h.session.ClearCookie(w)
	writeJSON(w, http.StatusOK, view)
}

// DiscardForm закрывает сессию формы.
func (h *Handler) DiscardForm(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.SessionIDFromContext(r.Context())

	if err := h.service.Discard(r.Context(), id); err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	h.session.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type listRequestsQuery struct {
	EmployeeNumber string `validate:"required,max=64"`
}

// ListRequests возвращает ранее поданные заявки сотрудника.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := listRequestsQuery{EmployeeNumber: r.URL.Query().Get("employee_number")}
	if err := h.validate.Struct(q); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	list, err := h.service.ListRequests(r.Context(), q.EmployeeNumber)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if list == nil {
		list = []model.LeaveRequestSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Healthz сообщает, что процесс жив.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// writeError сопоставляет ошибку сервиса с HTTP-статусом.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, view *service.View) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		h.session.ClearCookie(w)
		status = http.StatusNotFound
	case errors.Is(err, service.ErrSubmitInFlight):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnknownLeaveType), errors.Is(err, service.ErrEmployeeRequired):
		status = http.StatusBadRequest
	case errors.Is(err, validation.ErrNetwork), errors.Is(err, validation.ErrServerRejected):
		status = http.StatusBadGateway
	case validation.KindOf(err) != "internal":
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err), zap.String("uri", r.RequestURI))
		http.Error(w, http.StatusText(status), status)
		return
	}

	resp := errorResponse{Error: validation.KindOf(err), Message: validation.MessageOf(err)}
	if view != nil && view.SessionID != "" {
		resp.View = view
	}
	switch status {
	case http.StatusNotFound, http.StatusConflict, http.StatusBadRequest:
		resp.Error = http.StatusText(status)
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}

func wantWait(r *http.Request) bool {
	return r.URL.Query().Get("wait") == "true"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
