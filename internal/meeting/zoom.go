package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"

	"golang.org/x/sync/singleflight"
)

const (
	tokenRefreshMargin = 5 * time.Minute
	tokenFlightKey     = "token"
	maxErrorBody       = 512
)

type ZoomConfig struct {
	APIBaseURL   string
	TokenURL     string
	AccountID    string
	ClientID     string
	ClientSecret string
	UserID       string
	Topic        string
	Timezone     string
	Duration     time.Duration
	CallTimeout  time.Duration
}

type ZoomClient struct {
	cfg  ZoomConfig
	http *http.Client
	log  *logger.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	flight    singleflight.Group

	now func() time.Time
}

func NewZoomClient(cfg ZoomConfig, log *logger.Logger) *ZoomClient {
	return &ZoomClient{
		cfg:  cfg,
		http: &http.Client{},
		log:  log,
		now:  time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type meetingSettings struct {
	HostVideo        bool   `json:"host_video"`
	ParticipantVideo bool   `json:"participant_video"`
	JoinBeforeHost   bool   `json:"join_before_host"`
	MuteUponEntry    bool   `json:"mute_upon_entry"`
	WaitingRoom      bool   `json:"waiting_room"`
	AutoRecording    string `json:"auto_recording"`
	UsePMI           bool   `json:"use_pmi"`
}

type createMeetingRequest struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time"`
	Duration  int             `json:"duration"`
	Timezone  string          `json:"timezone"`
	Settings  meetingSettings `json:"settings"`
}

type createMeetingResponse struct {
	ID       json.Number `json:"id"`
	JoinURL  string      `json:"join_url"`
	Password string      `json:"password"`
}

// scheduledMeeting is the provider's meeting type for a one-off meeting at a
// fixed start time.
const scheduledMeeting = 2

func (c *ZoomClient) Acquire(ctx context.Context, start time.Time) (model.MeetingRef, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	payload := createMeetingRequest{
		Topic:     c.cfg.Topic,
		Type:      scheduledMeeting,
		StartTime: start.UTC().Format("2006-01-02T15:04:05Z"),
		Duration:  int(c.cfg.Duration / time.Minute),
		Timezone:  c.cfg.Timezone,
		Settings: meetingSettings{
			HostVideo:        true,
			ParticipantVideo: true,
			JoinBeforeHost:   false,
			MuteUponEntry:    true,
			WaitingRoom:      true,
			AutoRecording:    "none",
			UsePMI:           false,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return model.MeetingRef{}, fmt.Errorf("%w: failed to encode meeting request: %v", ErrResourceUnavailable, err)
	}

	endpoint := c.cfg.APIBaseURL + "/users/" + url.PathEscape(c.cfg.UserID) + "/meetings"
	status, respBody, err := c.authorized(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return model.MeetingRef{}, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return model.MeetingRef{}, fmt.Errorf("%w: create meeting returned %d: %s", ErrResourceUnavailable, status, truncate(respBody))
	}

	var created createMeetingResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return model.MeetingRef{}, fmt.Errorf("%w: invalid create meeting response: %v", ErrResourceUnavailable, err)
	}
	if created.ID.String() == "" || created.JoinURL == "" {
		return model.MeetingRef{}, fmt.Errorf("%w: create meeting response missing id or join_url", ErrResourceUnavailable)
	}

	ref := model.MeetingRef{
		JoinURL:    created.JoinURL,
		ExternalID: created.ID.String(),
		Secret:     created.Password,
	}
	c.log.Info("Meeting created", "meeting_id", ref.ExternalID, "start", payload.StartTime)
	return ref, nil
}

func (c *ZoomClient) Release(ctx context.Context, ref model.MeetingRef) error {
	if ref.ExternalID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	endpoint := c.cfg.APIBaseURL + "/meetings/" + url.PathEscape(ref.ExternalID)
	status, respBody, err := c.authorized(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: meeting %s: %v", ErrReleaseFailed, ref.ExternalID, err)
	}

	switch status {
	case http.StatusNoContent, http.StatusOK:
		c.log.Info("Meeting deleted", "meeting_id", ref.ExternalID)
		return nil
	case http.StatusNotFound:
		c.log.Info("Meeting already gone", "meeting_id", ref.ExternalID)
		return nil
	default:
		return fmt.Errorf("%w: meeting %s: delete returned %d: %s", ErrReleaseFailed, ref.ExternalID, status, truncate(respBody))
	}
}

// authorized sends a bearer-authenticated request. On 401 the cached token
// is dropped and the request is retried once with a fresh one.
func (c *ZoomClient) authorized(ctx context.Context, method, endpoint string, body []byte) (int, []byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return 0, nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		status, respBody, err := c.do(req)
		if err != nil {
			return 0, nil, err
		}
		if status == http.StatusUnauthorized && attempt == 0 {
			c.invalidate(token)
			continue
		}
		return status, respBody, nil
	}
}

func (c *ZoomClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// accessToken returns the cached token, refreshing it when it is missing or
// about to expire. Concurrent callers share one refresh.
func (c *ZoomClient) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.cachedToken(); ok {
		return token, nil
	}

	result := c.flight.DoChan(tokenFlightKey, func() (any, error) {
		if token, ok := c.cachedToken(); ok {
			return token, nil
		}
		// The refresh outlives any single caller's cancellation; its result
		// is shared with everyone waiting on it.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)
		defer cancel()
		return c.refreshToken(refreshCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *ZoomClient) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *ZoomClient) invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}

func (c *ZoomClient) refreshToken(ctx context.Context) (string, error) {
	query := url.Values{}
	query.Set("grant_type", "account_credentials")
	query.Set("account_id", c.cfg.AccountID)

	endpoint := c.cfg.TokenURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + query.Encode()
	} else {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	status, body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("token request returned %d: %s", status, truncate(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("invalid token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	lifetime := time.Duration(tok.ExpiresIn) * time.Second
	margin := tokenRefreshMargin
	if margin > lifetime/2 {
		margin = lifetime / 2
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	c.expiresAt = c.now().Add(lifetime - margin)
	c.mu.Unlock()

	c.log.Debug("Meeting provider token refreshed", "expires_in", lifetime)
	return tok.AccessToken, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
