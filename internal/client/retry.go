package client

import (
	"fmt"
	"net"
	"net/http"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// CreateTransport returns a transport tuned for a small number of provider
// hosts receiving many short requests.
func CreateTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// CreateOAuthHTTPClient creates the plain client used for token exchange,
// profile fetch and refresh. Every request is bounded by timeout.
func CreateOAuthHTTPClient(timeout time.Duration) *http.Client {
	return httpclient.NewAuthClient(httpclient.AuthModeNone, "",
		httpclient.WithTimeout(timeout),
		httpclient.WithTransport(CreateTransport()),
	)
}

// CreateRetryClient wraps httpClient with exponential-backoff retries.
// It is used for idempotent provider calls such as token revocation.
func CreateRetryClient(
	httpClient *http.Client,
	maxRetries int,
	retryDelay, maxRetryDelay time.Duration,
) (*retry.Client, error) {
	retryClient, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(httpClient),
		retry.WithMaxRetries(maxRetries),
		retry.WithInitialRetryDelay(retryDelay),
		retry.WithMaxRetryDelay(maxRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return retryClient, nil
}
