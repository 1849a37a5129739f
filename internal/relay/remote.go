package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteClient posts envelopes to a relay endpoint served by another process.
type RemoteClient struct {
	client   *resty.Client
	endpoint string
}

func NewRemoteClient(endpoint, bearerToken string, timeout time.Duration) *RemoteClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if bearerToken != "" {
		client.SetAuthToken(bearerToken)
	}

	return &RemoteClient{client: client, endpoint: endpoint}
}

// Forward returns the relay's answer verbatim, including its own error responses.
func (c *RemoteClient) Forward(ctx context.Context, env Envelope) (*Response, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(env).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: relay %s unreachable: %v", ErrUpstream, c.endpoint, err)
	}

	contentType := resp.Header().Get("Content-Type")
	if isJSONContentType(contentType) {
		contentType = "application/json"
	} else if contentType == "" {
		contentType = "text/plain"
	}

	return &Response{
		StatusCode:  resp.StatusCode(),
		ContentType: contentType,
		Body:        resp.Body(),
	}, nil
}
