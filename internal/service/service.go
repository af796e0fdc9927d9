// Package service управляет сессиями формы заявки на отпуск: загружает справочники,
// применяет изменения полей через конечный автомат черновика, выполняет асинхронные
// проверки пересечений и подаёт заявку в бэкенд.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/leaveportal/internal/form"
	"github.com/mmeshcher/leaveportal/internal/metrics"
	"github.com/mmeshcher/leaveportal/internal/model"
	"github.com/mmeshcher/leaveportal/internal/odoo"
	"github.com/mmeshcher/leaveportal/internal/validation"
)

const (
	defaultSessionTTL   = 30 * time.Minute
	defaultFetchTimeout = 30 * time.Second
	successPath       = "/leave/success"
)

var (
	ErrSessionNotFound  = errors.New("form session not found")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrUnknownLeaveType = errors.New("unknown leave type")
	ErrEmployeeRequired = errors.New("employee number is required")
)

// Backend описывает контракт HR-бэкенда, используемый сервисом.
type Backend interface {
	ListLeaveTypes(ctx context.Context, employeeNumber string) ([]model.LeaveType, error)
	GetBalance(ctx context.Context, employeeNumber string) (*model.BalanceSnapshot, error)
	CheckOverlap(ctx context.Context, employeeNumber string, from, to time.Time) error
	SubmitLeaveRequest(ctx context.Context, req model.AcceptedRequest) (odoo.SubmitResult, error)
	ListLeaveRequests(ctx context.Context, employeeNumber string) ([]model.LeaveRequestSummary, error)
}

// Change описывает изменения полей формы; nil означает «поле не менялось».
type Change struct {
	// LeaveTypeID со значением 0 снимает выбор типа.
	LeaveTypeID *int64

	// DateFrom и DateTo с нулевым временем очищают поле.
	DateFrom *time.Time
	DateTo   *time.Time

	HalfDay         *bool
	Reason          *string
	Attachment      *model.Attachment
	ClearAttachment bool
}

type session struct {
	mu sync.Mutex

	id         string
	draft      form.Draft
	types      []model.LeaveType
	notice     *model.Notification
	submitting bool

	cancelCheck context.CancelFunc
	checkDone   chan struct{}

	lastSeen atomic.Int64
}

func (s *session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// Service содержит сессии формы и логику работы с бэкендом.
type Service struct {
	backend  Backend
	logger   *zap.Logger
	now      func() time.Time
	location *time.Location
	ttl      time.Duration

	// fetchTimeout ограничивает общий запрос чтения, который не зависит от отмены вызывающих.
	fetchTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*session

	fetches singleflight.Group
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер сервиса.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation задаёт часовой пояс, в котором определяется «сегодня».
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithSessionTTL задаёт время жизни неактивной сессии.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

// WithFetchTimeout задаёт предельное время общего запроса чтения к бэкенду.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) { s.fetchTimeout = d }
}

// NewService создаёт сервис поверх указанного бэкенда.
func NewService(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend:  backend,
		logger:   zap.NewNop(),
		now:      time.Now,
		location: time.UTC,
		ttl:      defaultSessionTTL,
		sessions: make(map[string]*session),

		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close отменяет все незавершённые проверки и закрывает сессии.
func (s *Service) Close() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		sess.stopCheck()
		sess.mu.Unlock()
	}
	metrics.SetActiveSessions(0)
	return nil
}

func (s *Service) today() time.Time {
	return model.DateOf(s.now().In(s.location))
}

// Open создаёт сессию формы: параллельно загружает справочник типов и остатки.
// Без справочника форма бесполезна, поэтому его ошибка возвращается; недоступные
// остатки лишь отключают проверку остатка и дают информационное уведомление.
func (s *Service) Open(ctx context.Context, employeeNumber string) (View, error) {
	if employeeNumber == "" {
		return View{}, ErrEmployeeRequired
	}

	var (
		types      []model.LeaveType
		snapshot   *model.BalanceSnapshot
		balanceErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.fetch(gctx, "types:"+employeeNumber, func(ctx context.Context) (any, error) {
			return s.backend.ListLeaveTypes(ctx, employeeNumber)
		})
		if err != nil {
			return fmt.Errorf("load leave types: %w", err)
		}
		types = v.([]model.LeaveType)
		return nil
	})
	g.Go(func() error {
		v, err := s.fetch(gctx, "balance:"+employeeNumber, func(ctx context.Context) (any, error) {
			return s.backend.GetBalance(ctx, employeeNumber)
		})
		if err != nil {
			balanceErr = err
			return nil
		}
		snapshot = v.(*model.BalanceSnapshot)
		return nil
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	sess := &session{id: uuid.NewString(), types: types}
	sess.draft = form.New(employeeNumber, s.today())
	sess.touch(s.now())

	sess.mu.Lock()
	defer sess.mu.Unlock()

	s.reduce(sess, form.BalanceLoaded{Snapshot: snapshot})
	if balanceErr != nil {
		s.logger.Warn("leave balance unavailable", zap.String("employee_number", employeeNumber), zap.Error(balanceErr))
		sess.notice = &model.Notification{
			Level:   model.NotificationInfo,
			Kind:    validation.KindOf(balanceErr),
			Message: odoo.MsgBalanceFailed,
		}
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	metrics.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()

	s.logger.Info("form session opened", zap.String("session_id", sess.id), zap.String("employee_number", employeeNumber))
	return s.view(sess), nil
}

// View возвращает текущее состояние формы и отдаёт накопленное уведомление.
func (s *Service) View(ctx context.Context, id string) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.view(sess), nil
}

// Apply применяет изменения полей в порядке: тип, даты, половина дня, причина, вложение.
func (s *Service) Apply(ctx context.Context, id string, ch Change) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.submitting || sess.draft.Locked() {
		return View{}, ErrSubmitInFlight
	}

	events, err := changeEvents(sess, ch)
	if err != nil {
		return View{}, err
	}
	for _, ev := range events {
		s.reduce(sess, ev)
	}
	return s.view(sess), nil
}

func changeEvents(sess *session, ch Change) ([]form.Event, error) {
	var events []form.Event
	if ch.LeaveTypeID != nil {
		var selected *model.LeaveType
		if *ch.LeaveTypeID != 0 {
			for i := range sess.types {
				if sess.types[i].ID == *ch.LeaveTypeID {
					lt := sess.types[i]
					selected = &lt
					break
				}
			}
			if selected == nil {
				return nil, fmt.Errorf("%w: %d", ErrUnknownLeaveType, *ch.LeaveTypeID)
			}
		}
		events = append(events, form.TypeSelected{Type: selected})
	}
	if ch.DateFrom != nil {
		events = append(events, form.DateFromChanged{Date: *ch.DateFrom})
	}
	if ch.DateTo != nil {
		events = append(events, form.DateToChanged{Date: *ch.DateTo})
	}
	if ch.HalfDay != nil {
		events = append(events, form.HalfDayChanged{HalfDay: *ch.HalfDay})
	}
	if ch.Reason != nil {
		events = append(events, form.ReasonChanged{Reason: *ch.Reason})
	}
	if ch.ClearAttachment {
		events = append(events, form.AttachmentCleared{})
	} else if ch.Attachment != nil {
		events = append(events, form.AttachmentSet{Attachment: ch.Attachment})
	}
	return events, nil
}

// Await ждёт завершения текущей проверки пересечений или отмены ctx.
func (s *Service) Await(ctx context.Context, id string) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	s.awaitCheck(ctx, sess)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.view(sess), nil
}

func (s *Service) awaitCheck(ctx context.Context, sess *session) {
	sess.mu.Lock()
	done := sess.checkDone
	pending := sess.draft.Checking
	sess.mu.Unlock()

	if !pending || done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Submit дожидается текущей проверки пересечений, повторяет все проверки и подаёт
// заявку ровно один раз. Вторая одновременная подача получает ErrSubmitInFlight.
// После успешной подачи сессия закрывается.
func (s *Service) Submit(ctx context.Context, id string) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	if sess.submitting {
		sess.mu.Unlock()
		return View{}, ErrSubmitInFlight
	}
	sess.submitting = true
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		sess.submitting = false
		sess.mu.Unlock()
	}()

	s.awaitCheck(ctx, sess)

	sess.mu.Lock()
	req, ok := s.reduce(sess, form.SubmitRequested{})
	if !ok {
		rejection := sess.draft.Rejection
		v := s.view(sess)
		sess.mu.Unlock()
		if rejection == nil {
			return v, ErrSubmitInFlight
		}
		return v, rejection
	}
	sess.mu.Unlock()

	// Начатая подача доводится до конца, даже если клиент отключился.
	res, err := s.backend.SubmitLeaveRequest(context.WithoutCancel(ctx), req)
	metrics.ObserveSubmission(err)

	sess.mu.Lock()
	if err != nil {
		s.logger.Warn("leave request submission failed", zap.String("session_id", sess.id), zap.Error(err))
		s.reduce(sess, form.SubmitFailed{Err: err})
		v := s.view(sess)
		sess.mu.Unlock()
		return v, err
	}

	s.reduce(sess, form.SubmitSucceeded{Receipt: res.Receipt, Message: res.Message})
	v := s.view(sess)
	sess.mu.Unlock()

	s.remove(sess.id)
	s.logger.Info("leave request submitted",
		zap.String("session_id", sess.id),
		zap.Int64("leave_id", res.Receipt.LeaveID),
		zap.String("employee_number", req.EmployeeNumber))
	return v, nil
}

// Discard закрывает сессию и отменяет её проверки.
func (s *Service) Discard(ctx context.Context, id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	s.remove(id)

	sess.mu.Lock()
	sess.stopCheck()
	sess.mu.Unlock()
	return nil
}

// ListRequests возвращает заявки сотрудника.
func (s *Service) ListRequests(ctx context.Context, employeeNumber string) ([]model.LeaveRequestSummary, error) {
	if employeeNumber == "" {
		return nil, ErrEmployeeRequired
	}
	v, err := s.fetch(ctx, "requests:"+employeeNumber, func(ctx context.Context) (any, error) {
		return s.backend.ListLeaveRequests(ctx, employeeNumber)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.LeaveRequestSummary), nil
}

// fetch объединяет одинаковые одновременные запросы чтения. Общий запрос идёт на
// контексте без отмены, ограниченном fetchTimeout; каждый вызывающий ждёт результат
// только пока жив его собственный ctx.
func (s *Service) fetch(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.fetches.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(shared, s.fetchTimeout)
		defer cancel()
		return fn(fctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// StartJanitor закрывает неактивные сессии, пока не отменён ctx. Вызов блокирующий.
func (s *Service) StartJanitor(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.expireIdle(s.now()); n > 0 {
				s.logger.Info("expired idle form sessions", zap.Int("count", n))
			}
		}
	}
}

func (s *Service) expireIdle(now time.Time) int {
	deadline := now.Add(-s.ttl).UnixNano()

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.sessions {
		if sess.lastSeen.Load() < deadline {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	metrics.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()

	for _, sess := range expired {
		sess.mu.Lock()
		sess.stopCheck()
		sess.mu.Unlock()
	}
	return len(expired)
}

func (s *Service) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

func (s *Service) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	metrics.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()
}

// reduce применяет событие к черновику сессии и выполняет эффекты.
// Эффект Submit не выполняется, а возвращается вызывающему. Вызывается под sess.mu.
func (s *Service) reduce(sess *session, ev form.Event) (model.AcceptedRequest, bool) {
	draft, effects := form.Reduce(sess.draft, ev, s.today())
	sess.draft = draft

	var (
		req    model.AcceptedRequest
		submit bool
	)
	for _, eff := range effects {
		switch e := eff.(type) {
		case form.Notify:
			n := e.Notification
			sess.notice = &n
			if n.Level == model.NotificationError {
				metrics.ObserveRejection(n.Kind)
			}
		case form.CancelOverlap:
			sess.stopCheck()
		case form.CheckOverlap:
			s.startCheck(sess, e)
		case form.Submit:
			req, submit = e.Request, true
		}
	}
	return req, submit
}

// startCheck запускает проверку пересечений в отдельной горутине. Результат отменённой
// проверки отбрасывается, а запоздавший результат отсеивает токен черновика.
func (s *Service) startCheck(sess *session, e form.CheckOverlap) {
	sess.stopCheck()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sess.cancelCheck = cancel
	sess.checkDone = done

	go func() {
		defer close(done)
		defer cancel()

		err := s.backend.CheckOverlap(ctx, e.EmployeeNumber, e.DateFrom, e.DateTo)
		if ctx.Err() != nil {
			return
		}
		metrics.ObserveOverlapCheck(err)

		sess.mu.Lock()
		defer sess.mu.Unlock()
		s.reduce(sess, form.OverlapChecked{Token: e.Token, Err: err})
	}()
}

// stopCheck отменяет текущую проверку. Вызывается под sess.mu.
func (sess *session) stopCheck() {
	if sess.cancelCheck != nil {
		sess.cancelCheck()
		sess.cancelCheck = nil
	}
}

func successURL(r model.Receipt) string {
	q := url.Values{}
	q.Set("employee_name", r.EmployeeName)
	q.Set("leave_type", r.LeaveType)
	q.Set("date_from", r.DateFrom)
	q.Set("date_to", r.DateTo)
	q.Set("number_of_days", r.NumberOfDays.String())
	q.Set("description", r.Description)
	return successPath + "?" + q.Encode()
}
