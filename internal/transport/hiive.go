package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hiive-relay/internal/credentials"
	"hiive-relay/internal/event"
	relay_errors "hiive-relay/pkg/errors"
	"hiive-relay/pkg/logger"

	"github.com/google/uuid"
)

const (
	eventsPath  = "/sites/v1/events"
	connectPath = "/sites/v1/connect"

	// invalidTokenMessage is the remote's 403 body marker that triggers a
	// reconnect-and-retry.
	invalidTokenMessage = "invalid token"
)

// HiiveConnection delivers event batches to the remote Hiive endpoint.
type HiiveConnection struct {
	baseURL string
	env     event.EnvironmentContext
	creds   credentials.Store
	client  *http.Client
	log     *logger.Logger
}

// NewHiiveConnection wires the connection. All outbound traffic goes through
// the credential-guard round tripper, so a 401 from the remote host deletes
// the stored token no matter which call observed it.
func NewHiiveConnection(baseURL string, env event.EnvironmentContext, creds credentials.Store, log *logger.Logger) *HiiveConnection {
	return &HiiveConnection{
		baseURL: strings.TrimRight(baseURL, "/"),
		env:     env,
		creds:   creds,
		client: &http.Client{
			Transport: newCredentialGuard(creds, http.DefaultTransport),
		},
		log: log,
	}
}

type eventsRequest struct {
	Environment event.EnvironmentContext `json:"environment"`
	Events      []event.Event            `json:"events"`
}

type eventsResponse struct {
	SucceededEvents []uuid.UUID `json:"succeededEvents"`
	FailedEvents    []uuid.UUID `json:"failedEvents"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Deliver POSTs the batch to the events endpoint. The caller bounds the call
// with its context deadline; a 403 carrying the invalid-token marker causes
// one reconnect and one retry before the error is surfaced.
func (c *HiiveConnection) Deliver(ctx context.Context, events []event.Event) (Result, error) {
	if len(events) == 0 {
		return Result{}, relay_errors.ErrEmptyBatch
	}

	result, err := c.send(ctx, events)
	if err == nil || !errors.Is(err, relay_errors.ErrInvalidToken) {
		return result, err
	}

	c.log.Warnf("hiive rejected token, reconnecting")
	if err := c.Reconnect(ctx); err != nil {
		return Result{}, err
	}
	return c.send(ctx, events)
}

func (c *HiiveConnection) send(ctx context.Context, events []event.Event) (Result, error) {
	token, err := c.token(ctx)
	if err != nil {
		return Result{}, err
	}

	body, err := json.Marshal(eventsRequest{Environment: c.env, Events: events})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+eventsPath, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", relay_errors.ErrConnection, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return parseResult(raw, events), nil
	case resp.StatusCode == http.StatusForbidden:
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && strings.Contains(strings.ToLower(er.Message), invalidTokenMessage) {
			return Result{}, relay_errors.ErrInvalidToken
		}
		return Result{}, fmt.Errorf("%w: status %d", relay_errors.ErrConnection, resp.StatusCode)
	default:
		return Result{}, fmt.Errorf("%w: status %d", relay_errors.ErrConnection, resp.StatusCode)
	}
}

// parseResult interprets the 2xx body. A remote that does not report
// per-event outcomes answers with an empty or unparseable body; a 2xx then
// means the whole batch succeeded.
func parseResult(raw []byte, events []event.Event) Result {
	var er eventsResponse
	if err := json.Unmarshal(raw, &er); err == nil && (len(er.SucceededEvents) > 0 || len(er.FailedEvents) > 0) {
		return Result{Succeeded: er.SucceededEvents, Failed: er.FailedEvents}
	}

	all := make([]uuid.UUID, len(events))
	for i, e := range events {
		all[i] = e.ID
	}
	return Result{Succeeded: all}
}

// token returns the stored credential, connecting first if none exists yet.
func (c *HiiveConnection) token(ctx context.Context) (string, error) {
	token, err := c.creds.Token(ctx)
	if errors.Is(err, relay_errors.ErrNoCredential) {
		if err := c.Reconnect(ctx); err != nil {
			return "", err
		}
		return c.creds.Token(ctx)
	}
	return token, err
}

type connectRequest struct {
	URL          string `json:"url"`
	RelayVersion string `json:"relay_version"`
}

type connectResponse struct {
	Token string `json:"token"`
}

// Reconnect performs the handshake against the connect endpoint and stores
// the returned bearer token.
func (c *HiiveConnection) Reconnect(ctx context.Context) error {
	body, err := json.Marshal(connectRequest{URL: c.env.URL, RelayVersion: c.env.RelayVersion})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+connectPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", relay_errors.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: connect status %d", relay_errors.ErrConnection, resp.StatusCode)
	}

	var cr connectResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&cr); err != nil || cr.Token == "" {
		return fmt.Errorf("%w: connect returned no token", relay_errors.ErrConnection)
	}
	return c.creds.SetToken(ctx, cr.Token)
}
