package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	// ErrTransport covers connection errors, timeouts and unreadable bodies.
	ErrTransport = errors.New("transport failure")
	// ErrStatus covers any non-success status code.
	ErrStatus = errors.New("unexpected status")
)

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrStatus, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

type ClientParams struct {
	BaseURL              string
	RequestTimeout       time.Duration
	MaxIdentityAttempts  int
	RetryInitialInterval time.Duration
	// The following allow tests to point the client at in-process servers.
	// Nil values fall back to defaults.
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

type clientImpl struct {
	params *ClientParams
	http   *http.Client
	dialer *websocket.Dialer
	logger *logrus.Logger
}

func NewDefaultClient(params *ClientParams, logger *logrus.Logger) Client {
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: params.RequestTimeout}
	}
	dialer := params.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &clientImpl{
		params: params,
		http:   httpClient,
		dialer: dialer,
		logger: logger,
	}
}

func (c *clientImpl) Submit(
	ctx context.Context,
	roomID string,
	seq uint64,
	request protocol.SubmitRequest,
) (*protocol.SubmitResponse, error) {
	if request.PushEvents == nil {
		request.PushEvents = []protocol.PushEvent{}
	}
	headers := http.Header{}
	headers.Set(protocol.HeaderSequence, strconv.FormatUint(seq, 10))

	body, err := c.do(ctx, http.MethodPost, roomPath(roomID, "events"), nil, request, headers)
	if err != nil {
		return nil, err
	}
	return protocol.ParseSubmitResponse(body)
}

func (c *clientImpl) FetchStats(ctx context.Context, roomID string) (*protocol.StatsSnapshot, error) {
	query := url.Values{"_ts": {strconv.FormatInt(time.Now().UnixNano(), 10)}}
	headers := http.Header{}
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Pragma", "no-cache")

	body, err := c.do(ctx, http.MethodGet, roomPath(roomID, "stats"), query, nil, headers)
	if err != nil {
		return nil, err
	}
	return protocol.ParseStatsSnapshot(body)
}

func (c *clientImpl) AcquireViewer(ctx context.Context) (protocol.ViewerIdentity, error) {
	identity := protocol.ViewerIdentity{}
	operation := func() error {
		body, err := c.do(ctx, http.MethodGet, "/get_viewer_id", nil, nil, nil)
		if err != nil {
			statusErr := &StatusError{}
			if errors.As(err, &statusErr) && statusErr.Code < 500 {
				return backoff.Permanent(err)
			}
			c.logger.Debug("viewer id request failed, will retry: ", err)
			return err
		}
		if err := json.Unmarshal(body, &identity); err != nil {
			return fmt.Errorf("%w: %s", protocol.ErrInvalidPayload, err)
		}
		if identity.ViewerID == "" {
			return fmt.Errorf("%w: missing viewer_id", protocol.ErrInvalidPayload)
		}
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	if c.params.RetryInitialInterval > 0 {
		expBackoff.InitialInterval = c.params.RetryInitialInterval
	}
	attempts := c.params.MaxIdentityAttempts
	if attempts < 1 {
		attempts = 1
	}
	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(attempts-1)),
		ctx,
	))
	if err != nil {
		return protocol.ViewerIdentity{}, err
	}
	return identity, nil
}

func (c *clientImpl) SetViewerName(ctx context.Context, viewerID string, name string) (string, error) {
	path := "/api/viewers/" + url.PathEscape(viewerID) + "/name"
	body, err := c.do(ctx, http.MethodPost, path, nil, protocol.SetNameRequest{ViewerName: name}, nil)
	if err != nil {
		return "", err
	}
	identity := protocol.ViewerIdentity{}
	if err := json.Unmarshal(body, &identity); err != nil {
		return "", fmt.Errorf("%w: %s", protocol.ErrInvalidPayload, err)
	}
	return identity.ViewerName, nil
}

func (c *clientImpl) FetchRoomResult(ctx context.Context, roomID string, viewerID string) (*protocol.RoomResult, error) {
	query := url.Values{}
	if viewerID != "" {
		query.Set("viewer_id", viewerID)
	}
	body, err := c.do(ctx, http.MethodGet, roomPath(roomID, "result"), query, nil, nil)
	if err != nil {
		return nil, err
	}
	result := &protocol.RoomResult{}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("%w: %s", protocol.ErrInvalidPayload, err)
	}
	if result.RoomID == "" {
		return nil, fmt.Errorf("%w: missing room_id", protocol.ErrInvalidPayload)
	}
	return result, nil
}

func (c *clientImpl) do(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	payload interface{},
	headers http.Header,
) ([]byte, error) {
	target := strings.TrimRight(c.params.BaseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(protocol.HeaderRequestID, requestID)

	c.logger.WithFields(logrus.Fields{
		"method":    method,
		"path":      path,
		"requestId": requestID,
	}).Debug("sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func roomPath(roomID string, action string) string {
	return "/api/rooms/" + url.PathEscape(roomID) + "/" + action
}
