package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ARPaule28/omnichannel/internal/config"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

// TwilioProvider talks to the Twilio REST API directly over net/http.
// It intentionally avoids the provider SDK; only the three endpoints the
// product needs are wired.
type TwilioProvider struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string

	client *http.Client
}

func NewTwilioProvider(cfg config.TwilioConfig) *TwilioProvider {
	base := cfg.BaseURL
	if base == "" {
		base = twilioDefaultBaseURL
	}
	return &TwilioProvider{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    strings.TrimRight(base, "/"),
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	// Fetching the account resource is the cheapest authenticated call.
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check status %d", ErrProvider, resp.StatusCode)
	}
	return nil
}

// PlaceCall dials the destination from the provider number; when answered the
// call is bridged to the member's own phone.
func (p *TwilioProvider) PlaceCall(ctx context.Context, from, to string) (string, error) {
	bridge, err := RenderTwiML(InboundDecision{Action: ActionConnect, ConnectTo: from})
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("From", p.fromNumber)
	form.Set("To", to)
	form.Set("Twiml", bridge)

	var out struct {
		Sid string `json:"sid"`
	}
	if err := p.post(ctx, fmt.Sprintf("/2010-04-01/Accounts/%s/Calls.json", p.accountSID), form, &out); err != nil {
		return "", err
	}
	if out.Sid == "" {
		return "", fmt.Errorf("%w: missing call sid in response", ErrProvider)
	}
	return out.Sid, nil
}

func (p *TwilioProvider) SendSMS(ctx context.Context, from, to, body string) error {
	form := url.Values{}
	form.Set("From", p.fromNumber)
	form.Set("To", to)
	form.Set("Body", body)
	return p.post(ctx, fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", p.accountSID), form, nil)
}

func (p *TwilioProvider) EndCall(ctx context.Context, providerCallID string) error {
	form := url.Values{}
	form.Set("Status", "completed")
	endpoint := fmt.Sprintf("/2010-04-01/Accounts/%s/Calls/%s.json", p.accountSID, url.PathEscape(providerCallID))
	return p.post(ctx, endpoint, form, nil)
}

func (p *TwilioProvider) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	return nil
}
