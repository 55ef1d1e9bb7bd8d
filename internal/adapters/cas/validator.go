// Package cas implements the TicketValidator port against a CAS server's
// serviceValidate endpoint.
package cas

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/librarium/discovery-auth/config"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
)

// Validator checks service tickets over the CAS 2.0 validation protocol.
type Validator struct {
	baseURL string
	client  *http.Client
}

var _ ports.TicketValidator = (*Validator)(nil)

// ValidatorOptions configures a Validator.
type ValidatorOptions struct {
	// BaseURL overrides the server URL derived from the configuration, for
	// tests.
	BaseURL string
	Client  *http.Client
}

// NewValidator creates a Validator for the configured CAS server.
func NewValidator(cfg config.CASConfig, opts ValidatorOptions) *Validator {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s:%d%s", cfg.Server, cfg.Port, cfg.Context)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Validator{baseURL: baseURL, client: client}
}

// Validate checks the ticket for the service and returns the asserted
// principal with any released attributes.
func (v *Validator) Validate(ctx context.Context, ticket, service string) (string, map[string]string, error) {
	endpoint := v.baseURL + "/serviceValidate?ticket=" + url.QueryEscape(ticket) +
		"&service=" + url.QueryEscape(service)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("cas validate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("cas validate: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", nil, fmt.Errorf("cas validate: read response: %w", err)
	}
	return parseValidationResponse(body)
}

// parseValidationResponse walks the serviceResponse document. Elements are
// matched by local name so the cas: prefix (or any other) does not matter.
func parseValidationResponse(body []byte) (string, map[string]string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return "", nil, fmt.Errorf("cas validate: parse response: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "serviceResponse" {
		return "", nil, fmt.Errorf("cas validate: unexpected response document")
	}

	if failure := childByTag(root, "authenticationFailure"); failure != nil {
		code := failure.SelectAttrValue("code", "")
		return "", nil, autherr.NewAuth(autherr.KindInvalid,
			fmt.Sprintf("ticket rejected (%s): %s", code, strings.TrimSpace(failure.Text())))
	}

	success := childByTag(root, "authenticationSuccess")
	if success == nil {
		return "", nil, fmt.Errorf("cas validate: response carries neither success nor failure")
	}
	userEl := childByTag(success, "user")
	if userEl == nil {
		return "", nil, fmt.Errorf("cas validate: success without user element")
	}

	attrs := map[string]string{}
	if container := childByTag(success, "attributes"); container != nil {
		for _, attr := range container.ChildElements() {
			attrs[attr.Tag] = strings.TrimSpace(attr.Text())
		}
	}
	return strings.TrimSpace(userEl.Text()), attrs, nil
}

func childByTag(parent *etree.Element, tag string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}
