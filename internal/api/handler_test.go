package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/notify"
	"github.com/duetapp/duet/internal/session"
	"github.com/duetapp/duet/internal/user"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// taskStore implements only the task slice of entity.RecordStore; calling
// anything else panics, which is what a test reaching beyond tasks deserves.
type taskStore struct {
	entity.RecordStore

	tasks  map[string]*entity.Task
	nextID int
}

func newTaskStore() *taskStore {
	return &taskStore{tasks: make(map[string]*entity.Task)}
}

func (s *taskStore) InsertTask(_ context.Context, t *entity.Task) (*entity.Task, error) {
	s.nextID++
	stored := *t
	stored.ID = fmt.Sprintf("task-%d", s.nextID)
	s.tasks[stored.ID] = &stored
	return &stored, nil
}

func (s *taskStore) GetTask(_ context.Context, id string) (*entity.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (s *taskStore) SetTaskCompleted(_ context.Context, id string, completed bool) (*entity.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t.Completed = completed
	cp := *t
	return &cp, nil
}

func (s *taskStore) DeleteTask(_ context.Context, id string) error {
	delete(s.tasks, id)
	return nil
}

func (s *taskStore) ListTasks(_ context.Context, coupleID *string, userID string) ([]*entity.Task, error) {
	var out []*entity.Task
	for _, t := range s.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

type noRefresh struct{}

func (noRefresh) RefreshCoupleData(context.Context, string) (*couple.Couple, error) {
	return nil, nil
}

type noEffects struct{}

func (noEffects) NotifyPartner(string, entity.Kind, string, string, string) {}
func (noEffects) AwardPoints(string, int, string)                           {}

type noMirror struct{}

func (noMirror) PutCollection(context.Context, string, string, any) error { return nil }
func (noMirror) GetCollection(context.Context, string, string, any) error {
	return errors.New("not cached")
}

func pairedSession() *session.Session {
	b := "user-b"
	return &session.Session{
		User:    &user.User{ID: "user-a", Email: "a@example.com", Name: "A"},
		Partner: &user.User{ID: "user-b", Email: "b@example.com", Name: "B"},
		Couple:  &couple.Couple{ID: "couple-1", UserA: "user-a", UserB: &b, Status: couple.StatusActive},
	}
}

func requestWithSession(method, target, body string, sess *session.Session) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(session.ContextWithSession(r.Context(), sess))
}

// withURLParam injects a chi route parameter for handlers called outside a
// router.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	return env.Error
}

func newTasksFixture() (*tasksHandler, *taskStore) {
	store := newTaskStore()
	eng := entity.NewEngine(store, noRefresh{}, noEffects{}, noMirror{})
	return newTasksHandler(eng), store
}

func TestWriteEngineErrorMapping(t *testing.T) {
	cases := []struct {
		code   entity.Code
		status int
	}{
		{entity.CodeUnauthenticated, http.StatusUnauthorized},
		{entity.CodeCoupleContextUnavailable, http.StatusConflict},
		{entity.CodeForbidden, http.StatusForbidden},
		{entity.CodeNotFound, http.StatusNotFound},
		{entity.CodeRemoteStoreFailure, http.StatusBadGateway},
		{entity.CodeInvalidArgument, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeEngineError(rec, &entity.Error{Code: tc.code, Message: "boom"})
		if rec.Code != tc.status {
			t.Errorf("code %s: status = %d, want %d", tc.code, rec.Code, tc.status)
		}
		detail := decodeError(t, rec)
		if detail.Code != string(tc.code) {
			t.Errorf("code %s: envelope code = %q", tc.code, detail.Code)
		}
		if detail.Message != "boom" {
			t.Errorf("code %s: message = %q", tc.code, detail.Message)
		}
	}
}

func TestWriteEngineErrorUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	writeEngineError(rec, errors.New("plain failure"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != "internal_error" {
		t.Fatalf("envelope code = %q, want internal_error", detail.Code)
	}
}

func TestTasksCreate(t *testing.T) {
	handler, store := newTasksFixture()

	rec := httptest.NewRecorder()
	handler.Create(rec, requestWithSession(http.MethodPost, "/api/v1/tasks",
		`{"title":"Buy flowers","priority":"high"}`, pairedSession()))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var task entity.Task
	if err := json.NewDecoder(rec.Body).Decode(&task); err != nil {
		t.Fatalf("decoding task: %v", err)
	}
	if task.Title != "Buy flowers" {
		t.Errorf("title = %q", task.Title)
	}
	if task.CoupleID == nil || *task.CoupleID != "couple-1" {
		t.Errorf("couple id = %v, want couple-1", task.CoupleID)
	}
	if len(store.tasks) != 1 {
		t.Errorf("stored tasks = %d, want 1", len(store.tasks))
	}
}

func TestTasksCreateUnauthenticated(t *testing.T) {
	handler, _ := newTasksFixture()

	rec := httptest.NewRecorder()
	handler.Create(rec, requestWithSession(http.MethodPost, "/api/v1/tasks",
		`{"title":"x"}`, &session.Session{}))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != "unauthenticated" {
		t.Fatalf("envelope code = %q", detail.Code)
	}
}

func TestTasksCreateBadBody(t *testing.T) {
	handler, _ := newTasksFixture()

	rec := httptest.NewRecorder()
	handler.Create(rec, requestWithSession(http.MethodPost, "/api/v1/tasks",
		`{"title":`, pairedSession()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != "invalid_body" {
		t.Fatalf("envelope code = %q", detail.Code)
	}
}

func TestTasksToggle(t *testing.T) {
	handler, store := newTasksFixture()
	sess := pairedSession()
	cid := "couple-1"
	store.tasks["task-1"] = &entity.Task{ID: "task-1", Title: "Dishes", CreatedBy: "user-a", CoupleID: &cid}

	rec := httptest.NewRecorder()
	r := requestWithSession(http.MethodPost, "/api/v1/tasks/task-1/toggle", "", sess)
	handler.Toggle(rec, withURLParam(r, "id", "task-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var task entity.Task
	if err := json.NewDecoder(rec.Body).Decode(&task); err != nil {
		t.Fatalf("decoding task: %v", err)
	}
	if !task.Completed {
		t.Error("task not completed after toggle")
	}
}

func TestTasksDelete(t *testing.T) {
	handler, store := newTasksFixture()
	sess := pairedSession()
	cid := "couple-1"
	store.tasks["task-1"] = &entity.Task{ID: "task-1", Title: "Dishes", CreatedBy: "user-a", CoupleID: &cid}

	rec := httptest.NewRecorder()
	r := requestWithSession(http.MethodDelete, "/api/v1/tasks/task-1", "", sess)
	handler.Delete(rec, withURLParam(r, "id", "task-1"))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	if len(store.tasks) != 0 {
		t.Errorf("stored tasks = %d, want 0", len(store.tasks))
	}
}

func TestTasksUpdateNotFound(t *testing.T) {
	handler, _ := newTasksFixture()

	rec := httptest.NewRecorder()
	r := requestWithSession(http.MethodPut, "/api/v1/tasks/missing", `{"title":"x"}`, pairedSession())
	handler.Update(rec, withURLParam(r, "id", "missing"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStreamUnauthenticated(t *testing.T) {
	handler := newNotificationsHandler(nil, notify.NewHub(), nil)

	rec := httptest.NewRecorder()
	handler.Stream(rec, requestWithSession(http.MethodGet, "/api/v1/notifications/stream", "", &session.Session{}))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestStreamSendsPreamble(t *testing.T) {
	handler := newNotificationsHandler(nil, notify.NewHub(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // stream should emit its preamble and return immediately
	ctx = session.ContextWithSession(ctx, pairedSession())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.Stream(rec, r)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), ": connected") {
		t.Fatalf("missing preamble: %q", rec.Body.String())
	}
}

func TestCycleGetUnauthenticated(t *testing.T) {
	handler := newCycleHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.Get(rec, requestWithSession(http.MethodGet, "/api/v1/cycle", "", &session.Session{}))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestPointsGetUnauthenticated(t *testing.T) {
	handler := newPointsHandler(nil)

	rec := httptest.NewRecorder()
	handler.Get(rec, requestWithSession(http.MethodGet, "/api/v1/points", "", &session.Session{}))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSecureHeaders(t *testing.T) {
	h := secureHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if v := rec.Header().Get("X-Content-Type-Options"); v != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", v)
	}
	if v := rec.Header().Get("X-Frame-Options"); v != "DENY" {
		t.Errorf("X-Frame-Options = %q", v)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Fatal("no request id generated")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("header id %q != context id %q", got, seen)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Fatalf("header id = %q, want fixed-id", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := corsMiddleware([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil)
	r.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
	// The session cookie only travels cross-origin with credentials allowed.
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("allow credentials = %q, want true", got)
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	h := corsMiddleware([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow origin = %q, want empty", got)
	}
}
