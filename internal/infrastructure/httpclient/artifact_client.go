package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"token_farm/internal/app/port"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// artifactClientImpl implements port.ArtifactSource against a static server
// publishing <baseURL>/<Name>.json.
type artifactClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewArtifactClient creates a new HTTP artifact source.
func NewArtifactClient(baseURL string, timeout time.Duration, logger *zap.Logger) port.ArtifactSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &artifactClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("ArtifactClient"),
	}
}

// LoadArtifact implements port.ArtifactSource.
func (c *artifactClientImpl) LoadArtifact(ctx context.Context, name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("artifact name cannot be empty")
	}
	requestURL := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(name))

	c.logger.Debug("Requesting contract artifact", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to fetch artifact", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to fetch artifact (with default timeout)", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s with default timeout: %w", requestURL, err)
		}
	}

	// resp is released on return; the body must be copied out.
	rawBody := append([]byte(nil), resp.Body()...)

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Artifact request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody),
		)
		return nil, fmt.Errorf("artifact request to %s failed with status %d", requestURL, resp.StatusCode())
	}

	if !json.Valid(rawBody) {
		c.logger.Error("Artifact response is not JSON", zap.String("url", requestURL))
		return nil, fmt.Errorf("artifact response from %s is not valid JSON", requestURL)
	}

	c.logger.Debug("Fetched contract artifact", zap.String("url", requestURL), zap.Int("bytes", len(rawBody)))
	return rawBody, nil
}
