package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
)

// State is the position of a Flow in the login exchange
type State string

const (
	StateNoChallenge     State = "NO_CHALLENGE"
	StateChallengeIssued State = "CHALLENGE_ISSUED"
	StateSubmitted       State = "SUBMITTED"
	StateAuthenticated   State = "AUTHENTICATED"
	StateRejected        State = "REJECTED"
)

// Solver turns a challenge into the code the operator read from it
type Solver interface {
	Solve(ctx context.Context, challenge *model.Challenge) (string, error)
}

// SolverFunc adapts a function to Solver
type SolverFunc func(ctx context.Context, challenge *model.Challenge) (string, error)

func (f SolverFunc) Solve(ctx context.Context, challenge *model.Challenge) (string, error) {
	return f(ctx, challenge)
}

// Flow runs one login exchange against a portal. It is not reusable after
// AUTHENTICATED or REJECTED; a new attempt needs a new Flow.
type Flow struct {
	session *session.Session
	baseURL string
	cfg     model.LoginConfig
	success Discriminator

	state     State
	challenge *model.Challenge
	form      *loginForm
	now       func() time.Time
}

// NewFlow creates a flow for the portal login described by cfg
func NewFlow(s *session.Session, baseURL string, cfg model.LoginConfig) (*Flow, error) {
	success, err := NewDiscriminator(cfg.Success)
	if err != nil {
		return nil, fmt.Errorf("login success contract: %w", err)
	}
	if !cfg.DiscoverForm && cfg.SubmitURL == "" {
		return nil, fmt.Errorf("login needs a submit url or form discovery")
	}
	if cfg.Challenge.Enabled && cfg.Challenge.URL == "" {
		return nil, fmt.Errorf("challenge enabled without a url")
	}

	return &Flow{
		session: s,
		baseURL: baseURL,
		cfg:     cfg,
		success: success,
		state:   StateNoChallenge,
		now:     time.Now,
	}, nil
}

// State returns the current state
func (f *Flow) State() State {
	return f.state
}

// Challenge returns the issued challenge, or nil
func (f *Flow) Challenge() *model.Challenge {
	return f.challenge
}

// IssueChallenge visits the login page to seed cookies and fetches a captcha when the portal uses one.
// It returns nil when the portal has no captcha.
func (f *Flow) IssueChallenge(ctx context.Context) (*model.Challenge, error) {
	if f.state != StateNoChallenge {
		return nil, fmt.Errorf("issue challenge: flow is %s", f.state)
	}

	if err := f.visitLoginPage(ctx); err != nil {
		return nil, f.reject(StageChallenge, "", err)
	}

	if !f.cfg.Challenge.Enabled {
		return nil, nil
	}

	now := f.now()
	key, err := NewChallengeKey(f.cfg.Challenge.KeyStyle, now)
	if err != nil {
		return nil, f.reject(StageChallenge, "", err)
	}

	challengeURL := ExpandURL(f.cfg.Challenge.URL, f.baseURL, key, now)
	resp, err := f.session.Get(ctx, challengeURL)
	if err != nil {
		return nil, f.reject(StageChallenge, "", err)
	}

	image, contentType, err := decodeChallenge(resp, f.cfg.Challenge)
	if err != nil {
		return nil, f.reject(StageChallenge, "", err)
	}

	f.challenge = &model.Challenge{Key: key, Image: image, ContentType: contentType}
	f.state = StateChallengeIssued

	log.Debug().Str("key", key).Int("bytes", len(image)).Msg("challenge issued")
	return f.challenge, nil
}

// Submit posts the credentials and applies the portal's success contract
func (f *Flow) Submit(ctx context.Context, creds model.Credentials) error {
	switch {
	case f.state == StateChallengeIssued:
	case f.state == StateNoChallenge && !f.cfg.Challenge.Enabled:
	default:
		return fmt.Errorf("submit: flow is %s", f.state)
	}

	if f.challenge != nil && creds.ChallengeKey == "" {
		creds.ChallengeKey = f.challenge.Key
	}
	f.state = StateSubmitted
	f.challenge = nil

	req, err := f.submitRequest(creds)
	if err != nil {
		return f.reject(StageSubmit, "", err)
	}

	resp, err := f.session.Fetch(ctx, req)
	if err != nil {
		return f.reject(StageSubmit, "", err)
	}

	verdict := f.success.Evaluate(resp)
	if !verdict.OK {
		return f.reject(StageVerify, verdict.Reason, nil)
	}

	if verdict.Token != "" {
		header := f.cfg.Success.TokenHeader
		if header == "" {
			header = defaultTokenHeader
		}
		f.session.SetToken(header, verdict.Token)
	}

	f.state = StateAuthenticated
	log.Info().Str("user", creds.Username).Msg("login accepted")
	return nil
}

// Login runs the whole exchange, asking solver for the captcha code when one is issued
func (f *Flow) Login(ctx context.Context, username, password string, solver Solver) error {
	challenge, err := f.IssueChallenge(ctx)
	if err != nil {
		return err
	}

	creds := model.Credentials{Username: username, Password: password}
	if challenge != nil {
		if solver == nil {
			return f.reject(StageSolve, "no solver for captcha", nil)
		}
		code, err := solver.Solve(ctx, challenge)
		if err != nil {
			return f.reject(StageSolve, "", err)
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return f.reject(StageSolve, "empty captcha code", nil)
		}
		creds.Code = code
		creds.ChallengeKey = challenge.Key
	}

	return f.Submit(ctx, creds)
}

func (f *Flow) visitLoginPage(ctx context.Context) error {
	pageURL := f.cfg.PageURL
	if pageURL == "" {
		if !f.cfg.DiscoverForm {
			return nil
		}
		pageURL = "{base}"
	}
	pageURL = ExpandURL(pageURL, f.baseURL, "", f.now())

	resp, err := f.session.Get(ctx, pageURL)
	if err != nil {
		return err
	}
	if !f.cfg.DiscoverForm {
		return nil
	}

	doc, err := resp.Document()
	if err != nil {
		return err
	}
	form, err := discoverForm(doc, resp.URL)
	if err != nil {
		return err
	}
	f.form = form
	return nil
}

func (f *Flow) submitRequest(creds model.Credentials) (session.Request, error) {
	fields := make(map[string]string)

	submitURL := ""
	if f.cfg.SubmitURL != "" {
		submitURL = ExpandURL(f.cfg.SubmitURL, f.baseURL, creds.ChallengeKey, f.now())
	}

	usernameField := f.cfg.UsernameField
	passwordField := f.cfg.PasswordField

	if f.form != nil {
		for k, v := range f.form.Hidden {
			fields[k] = v
		}
		if f.form.SubmitName != "" {
			fields[f.form.SubmitName] = f.form.SubmitValue
		}
		if f.form.UsernameField != "" {
			usernameField = f.form.UsernameField
		}
		if f.form.PasswordField != "" {
			passwordField = f.form.PasswordField
		}
		if f.form.Action != "" {
			submitURL = f.form.Action
		}
	}

	if submitURL == "" {
		return session.Request{}, errors.New("no login submit url")
	}
	if usernameField == "" || passwordField == "" {
		return session.Request{}, errors.New("login form has no credential fields")
	}

	for k, v := range f.cfg.ExtraFields {
		fields[k] = v
	}
	fields[usernameField] = creds.Username
	fields[passwordField] = creds.Password
	if f.cfg.CodeField != "" && creds.Code != "" {
		fields[f.cfg.CodeField] = creds.Code
	}
	if f.cfg.KeyField != "" && creds.ChallengeKey != "" {
		fields[f.cfg.KeyField] = creds.ChallengeKey
	}

	req := session.Request{Method: http.MethodPost, URL: submitURL}
	if f.cfg.Encoding == "json" {
		req.JSON = fields
	} else {
		req.Form = fields
	}
	return req, nil
}

func (f *Flow) reject(stage, reason string, err error) error {
	f.state = StateRejected
	f.challenge = nil
	log.Warn().Str("stage", stage).Str("reason", reason).Err(err).Msg("login rejected")
	return &AuthenticationError{Stage: stage, Reason: reason, Err: err}
}
