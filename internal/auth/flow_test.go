package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image")

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(model.HTTPConfig{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func fixedSolver(code string) Solver {
	return SolverFunc(func(ctx context.Context, ch *model.Challenge) (string, error) {
		return code, nil
	})
}

// jeecgPortal serves a JSON login with a data-URI captcha bound to checkKey
func jeecgPortal(t *testing.T, gotToken *string) *httptest.Server {
	t.Helper()
	var issuedKey string

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>login</html>"))
	})
	mux.HandleFunc("/sys/randomImage/", func(w http.ResponseWriter, r *http.Request) {
		issuedKey = strings.TrimPrefix(r.URL.Path, "/sys/randomImage/")
		if r.URL.Query().Get("_t") == "" {
			t.Error("challenge request should carry _t")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result":  "data:image/jpg;base64," + base64.StdEncoding.EncodeToString(pngBytes),
		})
	})
	mux.HandleFunc("/sys/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")

		if body["checkKey"] != issuedKey || body["captcha"] != "ab12" {
			_, _ = w.Write([]byte(`{"success":false,"message":"验证码错误","code":500}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"登录成功","result":{"token":"tok-123"}}`))
	})
	mux.HandleFunc("/sys/user/info", func(w http.ResponseWriter, r *http.Request) {
		*gotToken = r.Header.Get("X-Access-Token")
	})
	return httptest.NewServer(mux)
}

func jeecgLogin() model.LoginConfig {
	return model.LoginConfig{
		PageURL:       "{base}/login",
		SubmitURL:     "{base}/sys/login",
		Encoding:      "json",
		UsernameField: "username",
		PasswordField: "password",
		CodeField:     "captcha",
		KeyField:      "checkKey",
		Challenge: model.ChallengeConfig{
			Enabled:   true,
			URL:       "{base}/sys/randomImage/{key}?_t={t}",
			KeyStyle:  model.KeyTimestampRandom,
			Format:    model.ChallengeJSON,
			ImagePath: "result",
		},
		Success: model.SuccessConfig{
			Kind:        model.SuccessJSONFlag,
			Path:        "success",
			MessagePath: "message",
			TokenPath:   "result.token",
		},
	}
}

func TestFlow_JSONLoginSetsToken(t *testing.T) {
	var gotToken string
	server := jeecgPortal(t, &gotToken)
	defer server.Close()

	s := newSession(t)
	flow, err := NewFlow(s, server.URL, jeecgLogin())
	if err != nil {
		t.Fatal(err)
	}

	var seen *model.Challenge
	solver := SolverFunc(func(ctx context.Context, ch *model.Challenge) (string, error) {
		seen = ch
		return " ab12 ", nil
	})

	if err := flow.Login(context.Background(), "jeecg", "secret", solver); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if flow.State() != StateAuthenticated {
		t.Errorf("expected AUTHENTICATED, got %s", flow.State())
	}
	if seen == nil || string(seen.Image) != string(pngBytes) {
		t.Fatal("solver should receive the decoded captcha image")
	}
	if seen.ContentType != "image/jpg" {
		t.Errorf("unexpected content type %q", seen.ContentType)
	}
	if flow.Challenge() != nil {
		t.Error("challenge should be discarded after submission")
	}

	if _, err := s.Get(context.Background(), server.URL+"/sys/user/info"); err != nil {
		t.Fatal(err)
	}
	if gotToken != "tok-123" {
		t.Errorf("expected token on later requests, got %q", gotToken)
	}
}

func TestFlow_BadCaptchaRejected(t *testing.T) {
	var gotToken string
	server := jeecgPortal(t, &gotToken)
	defer server.Close()

	flow, err := NewFlow(newSession(t), server.URL, jeecgLogin())
	if err != nil {
		t.Fatal(err)
	}

	err = flow.Login(context.Background(), "jeecg", "secret", fixedSolver("zzzz"))

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.Stage != StageVerify {
		t.Errorf("expected verify stage, got %s", authErr.Stage)
	}
	if authErr.Reason != "验证码错误" {
		t.Errorf("expected portal reason, got %q", authErr.Reason)
	}
	if flow.State() != StateRejected {
		t.Errorf("expected REJECTED, got %s", flow.State())
	}

	if err := flow.Submit(context.Background(), model.Credentials{}); err == nil {
		t.Error("a rejected flow should not accept another submission")
	}
}

func TestFlow_ImageChallengeAndEqualsContract(t *testing.T) {
	var uuid string
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/captcha", func(w http.ResponseWriter, r *http.Request) {
		uuid = r.URL.Query().Get("uuid")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	})
	mux.HandleFunc("/home/login/login_submit", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["uuid"] != uuid {
			_, _ = w.Write([]byte(`{"code":1,"msg":"验证码已过期"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"msg":"登录成功"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := model.LoginConfig{
		PageURL:       "{base}/login",
		SubmitURL:     "{base}/home/login/login_submit",
		Encoding:      "json",
		UsernameField: "username",
		PasswordField: "password",
		CodeField:     "captcha",
		KeyField:      "uuid",
		Challenge: model.ChallengeConfig{
			Enabled:  true,
			URL:      "{base}/captcha?uuid={key}",
			KeyStyle: model.KeyTimestamp,
			Format:   model.ChallengeImage,
		},
		Success: model.SuccessConfig{Kind: model.SuccessJSONEquals, Path: "msg", Equals: "登录成功"},
	}

	flow, err := NewFlow(newSession(t), server.URL, cfg)
	if err != nil {
		t.Fatal(err)
	}

	challenge, err := flow.IssueChallenge(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if flow.State() != StateChallengeIssued {
		t.Errorf("expected CHALLENGE_ISSUED, got %s", flow.State())
	}
	if challenge.ContentType != "image/png" || challenge.Extension() != ".png" {
		t.Errorf("unexpected challenge type %q", challenge.ContentType)
	}
	if challenge.Key != uuid {
		t.Errorf("challenge key %q was not the one sent %q", challenge.Key, uuid)
	}

	err = flow.Submit(context.Background(), model.Credentials{Username: "admin", Password: "x", Code: "1234"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
}

func TestFlow_ChallengeNotAnImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>error</html>"))
	}))
	defer server.Close()

	cfg := model.LoginConfig{
		SubmitURL: "{base}/login",
		Challenge: model.ChallengeConfig{Enabled: true, URL: "{base}/captcha", Format: model.ChallengeImage},
		Success:   model.SuccessConfig{Kind: model.SuccessJSONFlag, Path: "success"},
	}
	flow, err := NewFlow(newSession(t), server.URL, cfg)
	if err != nil {
		t.Fatal(err)
	}

	_, err = flow.IssueChallenge(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Stage != StageChallenge {
		t.Fatalf("expected challenge-stage error, got %v", err)
	}
}

func zmjgPortal(t *testing.T, landing string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<form action="/auth/do_login" method="post">
				<input type="hidden" name="csrf" value="tok-9">
				<input type="text" name="loginName">
				<input type="password" name="loginPwd">
				<input type="submit" name="btn" value="登录">
			</form></body></html>`))
	})
	mux.HandleFunc("/auth/do_login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("csrf") != "tok-9" || r.FormValue("loginName") != "officer" ||
			r.FormValue("loginPwd") != "pw" || r.FormValue("btn") != "登录" {
			_, _ = w.Write([]byte("<html><form>登录</form>用户名或密码错误</html>"))
			return
		}
		_, _ = w.Write([]byte(landing))
	})
	return httptest.NewServer(mux)
}

func zmjgLogin() model.LoginConfig {
	return model.LoginConfig{
		DiscoverForm:  true,
		SubmitURL:     "{base}/login",
		Encoding:      "form",
		UsernameField: "username",
		PasswordField: "password",
		Success: model.SuccessConfig{
			Kind:           model.SuccessHTMLMarkers,
			SuccessMarkers: []string{"案件"},
			FailureMarkers: []string{"用户名或密码错误", "验证码错误"},
			LoginMarkers:   []string{"登录"},
		},
	}
}

func TestFlow_FormDiscovery(t *testing.T) {
	server := zmjgPortal(t, "<html><a href='/case'>案件管理</a></html>")
	defer server.Close()

	flow, err := NewFlow(newSession(t), server.URL, zmjgLogin())
	if err != nil {
		t.Fatal(err)
	}
	if err := flow.Login(context.Background(), "officer", "pw", nil); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}

func TestFlow_FormDiscoveryWrongPassword(t *testing.T) {
	server := zmjgPortal(t, "<html>案件</html>")
	defer server.Close()

	flow, err := NewFlow(newSession(t), server.URL, zmjgLogin())
	if err != nil {
		t.Fatal(err)
	}

	err = flow.Login(context.Background(), "officer", "wrong", nil)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.Reason != "用户名或密码错误" {
		t.Errorf("expected failure marker as reason, got %q", authErr.Reason)
	}
}

func TestFlow_FormDiscoveryLoginPageReturned(t *testing.T) {
	// The portal title carries the success marker, so only the form gives the rejection away
	server := zmjgPortal(t, `<html><head><title>案件管理系统 登录</title></head><body>
		<form action="/auth/do_login"><input type="text" name="loginName"><input type="password" name="loginPwd"></form>
	</body></html>`)
	defer server.Close()

	flow, err := NewFlow(newSession(t), server.URL, zmjgLogin())
	if err != nil {
		t.Fatal(err)
	}

	err = flow.Login(context.Background(), "officer", "pw", nil)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.Reason != "login form still present" {
		t.Errorf("unexpected reason %q", authErr.Reason)
	}
}

func TestFlow_NoFormOnPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	flow, err := NewFlow(newSession(t), server.URL, zmjgLogin())
	if err != nil {
		t.Fatal(err)
	}
	if err := flow.Login(context.Background(), "officer", "pw", nil); err == nil {
		t.Fatal("expected error when the login form is missing")
	}
	if flow.State() != StateRejected {
		t.Errorf("expected REJECTED, got %s", flow.State())
	}
}

func TestFlow_SolverFailure(t *testing.T) {
	var token string
	server := jeecgPortal(t, &token)
	defer server.Close()

	flow, err := NewFlow(newSession(t), server.URL, jeecgLogin())
	if err != nil {
		t.Fatal(err)
	}

	err = flow.Login(context.Background(), "u", "p", fixedSolver("   "))
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Stage != StageSolve {
		t.Fatalf("expected solve-stage error, got %v", err)
	}
}

func TestNewFlow_InvalidContract(t *testing.T) {
	s := newSession(t)
	if _, err := NewFlow(s, "http://portal", model.LoginConfig{SubmitURL: "{base}/login"}); err == nil {
		t.Error("a login without a success contract should be refused")
	}
	cfg := jeecgLogin()
	cfg.SubmitURL = ""
	if _, err := NewFlow(s, "http://portal", cfg); err == nil {
		t.Error("a login without a submit url should be refused")
	}
}
