package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
)

func jsonResponse(body string) *session.Response {
	return &session.Response{Body: []byte(body), ContentType: "application/json"}
}

func htmlResponse(body string) *session.Response {
	return &session.Response{Body: []byte(body), ContentType: "text/html; charset=utf-8"}
}

func TestHTMLMarkers(t *testing.T) {
	d := &HTMLMarkers{
		Success: []string{"案件"},
		Failure: []string{"用户名或密码错误"},
		Login:   []string{"登录"},
	}

	tests := []struct {
		name   string
		page   string
		ok     bool
		reason string
	}{
		{"success marker", "<p>案件列表</p><a>退出登录</a>", true, ""},
		{"failure wins", "<p>案件</p><p>用户名或密码错误</p>", false, "用户名或密码错误"},
		{"login form gone", "<p>欢迎</p>", true, ""},
		{"still on login form", "<form>登录</form>", false, "login form still present"},
		{"titled login page", `<title>案件管理系统 登录</title><form><input type="text"><input type="PASSWORD"></form>`, false, "login form still present"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := d.Evaluate(htmlResponse(tt.page))
			if v.OK != tt.ok || v.Reason != tt.reason {
				t.Errorf("Evaluate() = %+v, want ok=%v reason=%q", v, tt.ok, tt.reason)
			}
		})
	}
}

func TestHTMLMarkers_AmbiguousRejected(t *testing.T) {
	d := &HTMLMarkers{Success: []string{"案件"}}
	v := d.Evaluate(htmlResponse("<p>欢迎</p>"))
	if v.OK {
		t.Fatal("a page with no recognized marker must be rejected")
	}
	if v.Reason != "ambiguous login response" {
		t.Errorf("unexpected reason %q", v.Reason)
	}
}

func TestJSONFlag(t *testing.T) {
	d := &JSONFlag{Path: "success", MessagePath: "message", TokenPath: "result.token"}

	if v := d.Evaluate(jsonResponse(`{"success":true,"result":{"token":"t"}}`)); !v.OK || v.Token != "t" {
		t.Errorf("expected success with token, got %+v", v)
	}
	if v := d.Evaluate(jsonResponse(`{"success":"true"}`)); v.OK {
		t.Error("a string flag is not a boolean true")
	}
	if v := d.Evaluate(jsonResponse(`{"message":"账号被锁定"}`)); v.OK || v.Reason != "账号被锁定" {
		t.Errorf("missing flag should reject with message, got %+v", v)
	}
	if v := d.Evaluate(htmlResponse(`<html>login</html>`)); v.OK {
		t.Error("non-JSON body must be rejected")
	}
}

func TestJSONEquals(t *testing.T) {
	d := &JSONEquals{Path: "msg", Equals: "登录成功"}

	if v := d.Evaluate(jsonResponse(`{"code":0,"msg":"登录成功"}`)); !v.OK {
		t.Errorf("expected success, got %+v", v)
	}
	if v := d.Evaluate(jsonResponse(`{"code":1,"msg":"验证码错误"}`)); v.OK || v.Reason != "验证码错误" {
		t.Errorf("expected rejection with portal message, got %+v", v)
	}
}

func TestNewDiscriminator(t *testing.T) {
	if _, err := NewDiscriminator(model.SuccessConfig{Kind: "guess"}); err == nil {
		t.Error("unknown kind should fail")
	}
	if _, err := NewDiscriminator(model.SuccessConfig{Kind: model.SuccessHTMLMarkers}); err == nil {
		t.Error("markers without any marker should fail")
	}
	if _, err := NewDiscriminator(model.SuccessConfig{Kind: model.SuccessJSONEquals, Path: "msg"}); err == nil {
		t.Error("json-equals without expected value should fail")
	}
}

func TestNewChallengeKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	key, err := NewChallengeKey(model.KeyTimestamp, now)
	if err != nil || key != "1700000000123" {
		t.Errorf("unexpected timestamp key %q %v", key, err)
	}

	key, err = NewChallengeKey(model.KeyTimestampRandom, now)
	if err != nil {
		t.Fatal(err)
	}
	suffix := strings.TrimPrefix(key, "1700000000123")
	if len(suffix) != 4 || strings.ToLower(suffix) != suffix {
		t.Errorf("expected 4 lowercase chars after timestamp, got %q", key)
	}
}

func TestExpandURL(t *testing.T) {
	got := ExpandURL("{base}/sys/randomImage/{key}?_t={t}", "http://portal/", "k1", time.UnixMilli(42))
	if got != "http://portal/sys/randomImage/k1?_t=42" {
		t.Errorf("unexpected url %s", got)
	}
}

func TestDecodeDataURI(t *testing.T) {
	data, ct, err := DecodeDataURI("data:image/png;base64,aGVsbG8=")
	if err != nil || string(data) != "hello" || ct != "image/png" {
		t.Errorf("unexpected decode %q %q %v", data, ct, err)
	}
	if _, _, err := DecodeDataURI("not-a-uri"); err == nil {
		t.Error("expected error for non data URI")
	}
}
