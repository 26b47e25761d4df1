package handlers

import (
	"net/http"
	"testing"
)

func TestAuth_RegisterLoginMeLogout(t *testing.T) {
	api := newTestAPI(t, 0)
	token, uid := api.register(t, "kitchen42")
	if token == "" || uid == "" {
		t.Fatalf("register returned token=%q id=%q", token, uid)
	}

	// Login opens a second, independent session.
	w := api.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "kitchen42", Password: "secret1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status=%d body=%s", w.Code, w.Body.String())
	}
	var s struct {
		Token string `json:"token"`
	}
	decode(t, w, &s)
	if s.Token == "" || s.Token == token {
		t.Fatalf("login token=%q", s.Token)
	}

	w = api.do(t, http.MethodGet, "/me", s.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status=%d", w.Code)
	}
	var me struct {
		ID           string `json:"id"`
		Role         string `json:"current_role"`
		PasswordHash string `json:"password_hash"`
	}
	decode(t, w, &me)
	if me.ID != uid || me.Role != "receiver" || me.PasswordHash != "" {
		t.Fatalf("me=%+v", me)
	}

	w = api.do(t, http.MethodPost, "/auth/logout", s.Token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: status=%d", w.Code)
	}
	if w = api.do(t, http.MethodGet, "/me", s.Token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: status=%d", w.Code)
	}
	// The other session is untouched.
	if w = api.do(t, http.MethodGet, "/me", token, nil); w.Code != http.StatusOK {
		t.Fatalf("me with first token: status=%d", w.Code)
	}
}

func TestAuth_RegisterErrors(t *testing.T) {
	api := newTestAPI(t, 0)
	api.register(t, "taken")

	cases := []struct {
		name     string
		body     any
		status   int
		wantCode string
	}{
		{"missing fields", map[string]string{"username": "x"}, http.StatusBadRequest, ErrCodeBadRequest},
		{"weak password", RegisterRequest{Username: "new", Email: "new@example.org", Password: "123"}, http.StatusBadRequest, ErrCodeBadRequest},
		{"duplicate username", RegisterRequest{Username: "taken", Email: "other@example.org", Password: "secret1"}, http.StatusConflict, ErrCodeConflict},
		{"duplicate email", RegisterRequest{Username: "other", Email: "TAKEN@example.org", Password: "secret1"}, http.StatusConflict, ErrCodeConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/auth/register", "", tc.body)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.status, w.Body.String())
			}
			if got := errCode(t, w); got != tc.wantCode {
				t.Fatalf("code=%q want %q", got, tc.wantCode)
			}
		})
	}
}

func TestAuth_LoginRejectsSameWay(t *testing.T) {
	api := newTestAPI(t, 0)
	api.register(t, "kitchen42")

	wrongPass := api.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "kitchen42", Password: "nope-nope"})
	unknown := api.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "ghost", Password: "nope-nope"})
	if wrongPass.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("status wrong=%d unknown=%d", wrongPass.Code, unknown.Code)
	}

	var a, b ErrorResponse
	decode(t, wrongPass, &a)
	decode(t, unknown, &b)
	if a.Code != b.Code || a.Message != b.Message {
		t.Fatalf("responses differ: %+v vs %+v", a, b)
	}

	if w := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty body status=%d", w.Code)
	}
}

func TestAuth_SwitchRole(t *testing.T) {
	api := newTestAPI(t, 0)
	token, _ := api.register(t, "multi")

	w := api.do(t, http.MethodPut, "/me/role", token, SwitchRoleRequest{Role: "delivery_person"})
	if w.Code != http.StatusOK {
		t.Fatalf("switch: status=%d body=%s", w.Code, w.Body.String())
	}
	var u struct {
		Role string `json:"current_role"`
	}
	decode(t, w, &u)
	if u.Role != "delivery_person" {
		t.Fatalf("role=%q", u.Role)
	}

	if w = api.do(t, http.MethodPut, "/me/role", token, SwitchRoleRequest{Role: "admin"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown role: status=%d", w.Code)
	}
	if w = api.do(t, http.MethodPut, "/me/role", "", SwitchRoleRequest{Role: "provider"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status=%d", w.Code)
	}
}
