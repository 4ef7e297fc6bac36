// Package vcns is a minimal client for the NSX manager REST API.
package vcns

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"

	"github.com/pkg/errors"

	"github.com/zinrai/l2network-mvp-go/internal/config"
	"github.com/zinrai/l2network-mvp-go/internal/logger"
	"github.com/zinrai/l2network-mvp-go/internal/nsx/securitygroup"
)

const (
	securityGroupPrefix = "/api/2.0/services/securitygroup"
	firewallSectionPath = "/api/4.0/firewall/globalroot-0/config/layer3sections"

	contentTypeXML = "application/xml"
)

var _ securitygroup.MemberAdder = (*Client)(nil)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

type Client struct {
	baseURL  *url.URL
	user     string
	password string
	http     *http.Client
}

func NewClient(cfg config.NSX, httpClient *http.Client) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("nsx url is not configured")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid nsx url")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:  u,
		user:     cfg.User,
		password: cfg.Password,
		http:     httpClient,
	}, nil
}

func (c *Client) do(ctx context.Context, method, p string, body []byte) ([]byte, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeXML)
	}
	req.Header.Set("Accept", contentTypeXML)
	req.SetBasicAuth(c.user, c.password)

	logger.G(ctx).WithField("method", method).WithField("url", u.String()).Debug("Calling NSX manager")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", method, u.String())
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     method,
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}
	return respBody, nil
}

func (c *Client) AddMemberToSecurityGroup(ctx context.Context, securityGroupID, memberID string) error {
	p := path.Join(securityGroupPrefix, securityGroupID, "members", memberID)
	_, err := c.do(ctx, http.MethodPut, p, nil)
	return err
}

// CreateSection posts a layer 3 firewall section and returns the NSX rule IDs
// paired with the rule names that were sent.
func (c *Client) CreateSection(ctx context.Context, section *securitygroup.Section) ([]securitygroup.RuleIDPair, error) {
	body, err := securitygroup.Serialize(section)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, firewallSectionPath, body)
	if err != nil {
		return nil, err
	}
	return securitygroup.ExtractRuleIDPairs(resp)
}
