package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dhcpdash/internal/logger"
	"dhcpdash/pkg/models"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrTransport means the request did not complete or the server answered
	// with a non-success HTTP status
	ErrTransport = errors.New("reservation transport failure")

	// ErrRejected means the server answered but reported a status other than
	// success
	ErrRejected = errors.New("reservation rejected")
)

// SubmitError is a failed submission. Kind is ErrTransport or ErrRejected;
// Message is the text shown to the operator.
type SubmitError struct {
	Kind    error
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *SubmitError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// MessageOf returns the operator-facing text of a submission error
func MessageOf(err error) string {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// Recorder counts submission results
type Recorder interface {
	Reservation(result string)
}

type nopRecorder struct{}

func (nopRecorder) Reservation(string) {}

// Submitter sends one reservation batch
type Submitter interface {
	Submit(ctx context.Context, batch models.ReservationBatch) error
}

// Client posts reservation batches to the server
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
	recorder   Recorder
}

// Option configures a Client
type Option interface {
	apply(*Client)
}

type optionFunc func(*Client)

func (of optionFunc) apply(c *Client) { of(c) }

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) {
		c.httpClient = hc
	})
}

// WithTimeout bounds each submission
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Client) {
		c.timeout = d
	})
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return optionFunc(func(c *Client) {
		c.logger = l
	})
}

// WithRecorder sets the result recorder
func WithRecorder(r Recorder) Option {
	return optionFunc(func(c *Client) {
		c.recorder = r
	})
}

// NewClient creates a client posting to endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
		logger:     logger.WithComponent("reservation"),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// Endpoint returns the address batches are posted to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Submit posts batch and reconciles the reply. A nil error means the server
// accepted the batch. Failures are returned as *SubmitError.
func (c *Client) Submit(ctx context.Context, batch models.ReservationBatch) error {
	err := c.submit(ctx, batch)

	result := "success"
	switch {
	case errors.Is(err, ErrRejected):
		result = "rejected"
	case err != nil:
		result = "transport_error"
	}
	c.recorder.Reservation(result)

	if err != nil {
		c.logger.Warn().Err(err).Int("addresses", len(batch.Addresses)).Msg("Reservation failed")
		return err
	}
	c.logger.Info().Int("addresses", len(batch.Addresses)).Msg("Reservation accepted")
	return nil
}

func (c *Client) submit(ctx context.Context, batch models.ReservationBatch) error {
	if batch.Addresses == nil {
		batch.Addresses = []string{}
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return &SubmitError{Kind: ErrTransport, Message: err.Error(), Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &SubmitError{Kind: ErrTransport, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SubmitError{Kind: ErrTransport, Message: err.Error(), Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug().Err(cerr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &SubmitError{Kind: ErrTransport, Message: statusText(resp)}
	}

	var out models.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &SubmitError{Kind: ErrTransport, Message: "invalid response: " + err.Error(), Err: err}
	}
	if out.Status != models.StatusSuccess {
		msg := out.Info
		if msg == "" {
			msg = out.Status
		}
		return &SubmitError{Kind: ErrRejected, Message: msg}
	}
	return nil
}

// statusText returns the reason phrase of resp, e.g. "Internal Server Error"
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	if text == "" {
		text = "HTTP " + strconv.Itoa(resp.StatusCode)
	}
	return text
}
