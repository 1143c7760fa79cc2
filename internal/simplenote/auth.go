package simplenote

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/notesync/internal/tokenfile"
)

// sessionLifetime is how long a login token is trusted before a fresh
// login is attempted.
const sessionLifetime = 24 * time.Hour

// tokenType tags saved sessions.
const tokenType = "simplenote"

// Login exchanges credentials for a session token. The API expects the
// form-encoded credentials base64-encoded as the request body.
func Login(ctx context.Context, httpClient *http.Client, authURL, email, password string) (*oauth2.Token, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	form := url.Values{"email": {email}, "password": {password}}.Encode()
	body := base64.StdEncoding.EncodeToString([]byte(form))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("simplenote: login: creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("simplenote: login: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("simplenote: login: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Op:      "login",
			Code:    resp.StatusCode,
			Message: strings.TrimSpace(string(data)),
			Err:     classifyStatus(resp.StatusCode),
		}
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, &APIError{Op: "login", Code: resp.StatusCode, Message: "empty token", Err: ErrUnexpected}
	}

	return &oauth2.Token{
		AccessToken: token,
		TokenType:   tokenType,
		Expiry:      time.Now().Add(sessionLifetime),
	}, nil
}

// SessionConfig describes where a session comes from.
type SessionConfig struct {
	TokenPath  string
	AuthURL    string
	Username   string
	Password   string // optional; enables silent re-login when the session expires
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// TokenSourceFromPath returns a TokenSource backed by the saved session at
// cfg.TokenPath. An expired session is renewed with cfg.Password when one
// is given; the renewed token is saved. Returns ErrNotLoggedIn when there
// is neither a saved session nor a password. The returned username is the
// account the session belongs to.
//
// ctx must outlive the TokenSource; it bounds silent re-logins.
func TokenSourceFromPath(ctx context.Context, cfg SessionConfig) (TokenSource, string, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	tf, err := tokenfile.Load(cfg.TokenPath)
	if err != nil {
		return nil, "", err
	}

	var saved *oauth2.Token

	if tf != nil {
		if cfg.Username != "" && tf.Username != cfg.Username {
			cfg.Logger.Info("saved session belongs to another account",
				slog.String("saved", tf.Username),
				slog.String("configured", cfg.Username),
			)
		} else {
			saved = tf.Token
			cfg.Username = tf.Username
		}
	}

	if saved == nil && (cfg.Password == "" || cfg.Username == "") {
		return nil, "", ErrNotLoggedIn
	}

	if saved != nil {
		cfg.Logger.Debug("loaded saved session",
			slog.String("path", cfg.TokenPath),
			slog.Time("expiry", saved.Expiry),
			slog.Bool("valid", saved.Valid()),
		)
	}

	src := oauth2.ReuseTokenSource(saved, &loginSource{ctx: ctx, cfg: cfg})

	return &tokenBridge{src: src, logger: cfg.Logger}, cfg.Username, nil
}

// loginSource renews sessions by logging in again.
type loginSource struct {
	ctx context.Context
	cfg SessionConfig
}

func (s *loginSource) Token() (*oauth2.Token, error) {
	if s.cfg.Password == "" {
		return nil, fmt.Errorf("%w: session expired, run notesync login", ErrNotLoggedIn)
	}

	tok, err := Login(s.ctx, s.cfg.HTTPClient, s.cfg.AuthURL, s.cfg.Username, s.cfg.Password)
	if err != nil {
		return nil, err
	}

	if err := tokenfile.Save(s.cfg.TokenPath, s.cfg.Username, tok); err != nil {
		s.cfg.Logger.Warn("failed to persist renewed session",
			slog.String("path", s.cfg.TokenPath),
			slog.String("error", err.Error()),
		)
	} else {
		s.cfg.Logger.Info("session renewed", slog.Time("expiry", tok.Expiry))
	}

	return tok, nil
}

// tokenBridge adapts oauth2.TokenSource to TokenSource.
type tokenBridge struct {
	src    oauth2.TokenSource
	logger *slog.Logger
}

func (b *tokenBridge) Token() (string, error) {
	t, err := b.src.Token()
	if err != nil {
		b.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("simplenote: obtaining token: %w", err)
	}

	return t.AccessToken, nil
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// Logout removes the saved session.
func Logout(tokenPath string, logger *slog.Logger) error {
	if err := tokenfile.Remove(tokenPath); err != nil {
		return err
	}

	logger.Info("logout: removed session", slog.String("path", tokenPath))

	return nil
}
