package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
)

type fakeAuth struct {
	tokens    map[string]core.User
	signUpErr error
	signInErr error
	user      core.User
	token     string
}

func (f *fakeAuth) SignUp(ctx context.Context, name, email, password string) (core.User, error) {
	if f.signUpErr != nil {
		return core.User{}, f.signUpErr
	}
	return f.user, nil
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (string, core.User, error) {
	if f.signInErr != nil {
		return "", core.User{}, f.signInErr
	}
	return f.token, f.user, nil
}

func (f *fakeAuth) VerifyToken(ctx context.Context, token string) (core.User, error) {
	if u, ok := f.tokens[token]; ok && token != "" {
		return u, nil
	}
	return core.User{}, auth.ErrUnauthenticated
}

type fakeRecords struct {
	incomes  map[string][]core.Income
	expenses map[string][]core.Expense
	nextID   int
	err      error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		incomes:  make(map[string][]core.Income),
		expenses: make(map[string][]core.Expense),
	}
}

func (f *fakeRecords) id() string {
	f.nextID++
	return fmt.Sprintf("rec-%d", f.nextID)
}

func (f *fakeRecords) GetIncomes(ctx context.Context, userID string) ([]core.Income, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.incomes[userID], nil
}

func (f *fakeRecords) CreateIncome(ctx context.Context, userID string, d core.RecordDraft) (core.Income, error) {
	if f.err != nil {
		return core.Income{}, f.err
	}
	in := core.Income{
		ID:          f.id(),
		UserID:      userID,
		Amount:      d.Amount,
		Description: d.Description,
		Date:        d.Date,
		CreatedAt:   time.Now(),
	}
	f.incomes[userID] = append(f.incomes[userID], in)
	return in, nil
}

func (f *fakeRecords) UpdateIncome(ctx context.Context, userID, id string, d core.RecordDraft) (core.Income, error) {
	if f.err != nil {
		return core.Income{}, f.err
	}
	for i, in := range f.incomes[userID] {
		if in.ID == id {
			in.Amount = d.Amount
			in.Description = d.Description
			in.Date = d.Date
			f.incomes[userID][i] = in
			return in, nil
		}
	}
	return core.Income{}, core.ErrNotFound
}

func (f *fakeRecords) DeleteIncome(ctx context.Context, userID, id string) error {
	if f.err != nil {
		return f.err
	}
	for i, in := range f.incomes[userID] {
		if in.ID == id {
			f.incomes[userID] = append(f.incomes[userID][:i], f.incomes[userID][i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeRecords) GetExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.expenses[userID], nil
}

func (f *fakeRecords) CreateExpense(ctx context.Context, userID string, d core.RecordDraft) (core.Expense, error) {
	if f.err != nil {
		return core.Expense{}, f.err
	}
	ex := core.Expense{
		ID:          f.id(),
		UserID:      userID,
		Amount:      d.Amount,
		Category:    d.Category,
		Description: d.Description,
		Date:        d.Date,
		CreatedAt:   time.Now(),
	}
	f.expenses[userID] = append(f.expenses[userID], ex)
	return ex, nil
}

func (f *fakeRecords) UpdateExpense(ctx context.Context, userID, id string, d core.RecordDraft) (core.Expense, error) {
	if f.err != nil {
		return core.Expense{}, f.err
	}
	for i, ex := range f.expenses[userID] {
		if ex.ID == id {
			ex.Amount = d.Amount
			ex.Category = d.Category
			ex.Description = d.Description
			ex.Date = d.Date
			f.expenses[userID][i] = ex
			return ex, nil
		}
	}
	return core.Expense{}, core.ErrNotFound
}

func (f *fakeRecords) DeleteExpense(ctx context.Context, userID, id string) error {
	if f.err != nil {
		return f.err
	}
	for i, ex := range f.expenses[userID] {
		if ex.ID == id {
			f.expenses[userID] = append(f.expenses[userID][:i], f.expenses[userID][i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func newTestServer(t *testing.T, records RecordStore, ap AuthProvider) *Server {
	t.Helper()
	srv := NewServer(":0", records, ap, 50, time.Minute)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func doRequest(srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, newFakeRecords(), &fakeAuth{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doRequest(srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rr.Code)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	userA := core.User{ID: "user-a", Email: "a@example.com", Name: "A"}
	ap := &fakeAuth{tokens: map[string]core.User{"tok-a": userA}}
	srv := newTestServer(t, newFakeRecords(), ap)

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"unknown token", "bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(srv, http.MethodGet, "/api/incomes", tt.token, "")
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), "Authentication required") {
				t.Errorf("body = %s, want authentication error", rr.Body.String())
			}
		})
	}

	rr := doRequest(srv, http.MethodGet, "/api/incomes", "tok-a", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("authorized request status = %d, want 200", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	userA := core.User{ID: "user-a"}
	ap := &fakeAuth{tokens: map[string]core.User{"tok-a": userA}}
	srv := NewServer(":0", newFakeRecords(), ap, 3, time.Minute)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/incomes", nil)
		req.Header.Set("Authorization", "Bearer tok-a")
		req.Header.Set("X-Forwarded-For", ip)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 3; i++ {
		if rr := send("1.2.3.4"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rr.Code)
		}
	}

	rr := send("1.2.3.4")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
	if !strings.Contains(rr.Body.String(), "Too many requests") {
		t.Errorf("body = %s, want rate limit error", rr.Body.String())
	}

	// Other clients are unaffected
	if rr := send("5.6.7.8"); rr.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rr.Code)
	}

	// Single-record routes are not rate limited
	del := doRequest(srv, http.MethodDelete, "/api/incomes/nope", "tok-a", "")
	if del.Code != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404 (not 429)", del.Code)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := newRateLimiter(2, 50*time.Millisecond)
	defer rl.stop()

	if !rl.allow("ip") || !rl.allow("ip") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.allow("ip") {
		t.Fatal("third request in window should be denied")
	}

	time.Sleep(60 * time.Millisecond)

	if !rl.allow("ip") {
		t.Error("request after window elapsed should be allowed")
	}
}

func TestSignUp(t *testing.T) {
	user := core.User{ID: "u1", Email: "mario@example.com", Name: "Mario"}

	tests := []struct {
		name       string
		signUpErr  error
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			body:       `{"name":"Mario","email":"mario@example.com","password":"secret123"}`,
			wantStatus: http.StatusCreated,
			wantBody:   "User created successfully",
		},
		{
			name:       "malformed body",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid request body",
		},
		{
			name:       "missing fields",
			signUpErr:  auth.ErrMissingFields,
			body:       `{"email":"mario@example.com"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   auth.ErrMissingFields.Error(),
		},
		{
			name:       "weak password",
			signUpErr:  auth.ErrWeakPassword,
			body:       `{"name":"Mario","email":"mario@example.com","password":"short"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   auth.ErrWeakPassword.Error(),
		},
		{
			name:       "duplicate email",
			signUpErr:  core.ErrEmailTaken,
			body:       `{"name":"Mario","email":"mario@example.com","password":"secret123"}`,
			wantStatus: http.StatusConflict,
			wantBody:   core.ErrEmailTaken.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ap := &fakeAuth{user: user, signUpErr: tt.signUpErr}
			srv := newTestServer(t, newFakeRecords(), ap)

			rr := doRequest(srv, http.MethodPost, "/api/auth/signup", "", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want containing %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSignIn(t *testing.T) {
	user := core.User{ID: "u1", Email: "mario@example.com", Name: "Mario"}

	t.Run("success returns token and user", func(t *testing.T) {
		ap := &fakeAuth{user: user, token: "session-token"}
		srv := newTestServer(t, newFakeRecords(), ap)

		rr := doRequest(srv, http.MethodPost, "/api/auth/login", "", `{"email":"mario@example.com","password":"secret123"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, "session-token") {
			t.Errorf("body = %s, want token", body)
		}
		if strings.Contains(body, "password") {
			t.Errorf("body = %s, must not leak password fields", body)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		srv := newTestServer(t, newFakeRecords(), &fakeAuth{})
		rr := doRequest(srv, http.MethodPost, "/api/auth/login", "", `{"email":"mario@example.com"}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("wrong credentials", func(t *testing.T) {
		ap := &fakeAuth{signInErr: auth.ErrInvalidCredentials}
		srv := newTestServer(t, newFakeRecords(), ap)
		rr := doRequest(srv, http.MethodPost, "/api/auth/login", "", `{"email":"mario@example.com","password":"wrong-pass"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rr.Code)
		}
	})
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusTeapot)
	if rw.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want 418", rw.statusCode)
	}
}

func TestClientIPPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := clientIP(req); got != "10.0.0.1:1234" {
		t.Errorf("clientIP = %s, want RemoteAddr", got)
	}

	req.Header.Set("X-Real-IP", "10.0.0.2")
	if got := clientIP(req); got != "10.0.0.2" {
		t.Errorf("clientIP = %s, want X-Real-IP", got)
	}

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	if got := clientIP(req); got != "10.0.0.3" {
		t.Errorf("clientIP = %s, want first X-Forwarded-For entry", got)
	}
}
