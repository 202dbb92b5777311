package auth

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	random "github.com/mazen160/go-random"
	"github.com/tidwall/gjson"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
)

// NewChallengeKey builds the nonce that binds a captcha to the login submission
func NewChallengeKey(style string, now time.Time) (string, error) {
	key := strconv.FormatInt(now.UnixMilli(), 10)
	if style == model.KeyTimestamp {
		return key, nil
	}

	suffix, err := random.String(4)
	if err != nil {
		return "", fmt.Errorf("generate key suffix: %w", err)
	}
	return key + strings.ToLower(suffix), nil
}

// ExpandURL substitutes {base}, {key} and {t} in a URL template
func ExpandURL(template, base, key string, now time.Time) string {
	return strings.NewReplacer(
		"{base}", strings.TrimRight(base, "/"),
		"{key}", key,
		"{t}", strconv.FormatInt(now.UnixMilli(), 10),
	).Replace(template)
}

// decodeChallenge extracts the image payload from a challenge response
func decodeChallenge(resp *session.Response, cfg model.ChallengeConfig) ([]byte, string, error) {
	if cfg.Format == model.ChallengeJSON {
		path := cfg.ImagePath
		if path == "" {
			path = "result"
		}
		value := gjson.GetBytes(resp.Body, path)
		if !value.Exists() {
			return nil, "", fmt.Errorf("challenge field %q missing", path)
		}
		return DecodeDataURI(value.String())
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(resp.Body)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("challenge is not an image: %s", contentType)
	}
	return resp.Body, strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]), nil
}

// DecodeDataURI decodes a base64 data:image URI
func DecodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:image") {
		return nil, "", fmt.Errorf("not an image data URI")
	}
	header, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, "", fmt.Errorf("data URI has no payload")
	}

	contentType := strings.TrimPrefix(header, "data:")
	contentType, _, _ = strings.Cut(contentType, ";")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URI: %w", err)
	}
	return data, contentType, nil
}
