package model

// Credentials are held only for the duration of one login exchange
type Credentials struct {
	Username     string
	Password     string
	Code         string // solved challenge, if the portal issues one
	ChallengeKey string
}

// Challenge is a captcha issued for one login attempt
type Challenge struct {
	Key         string `json:"key"`
	Image       []byte `json:"-"`
	ContentType string `json:"content_type"`
}

// Extension guesses a file extension for the challenge image
func (c *Challenge) Extension() string {
	switch c.ContentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	case "image/bmp":
		return ".bmp"
	default:
		return ".png"
	}
}
