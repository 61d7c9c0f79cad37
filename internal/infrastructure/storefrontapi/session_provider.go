package storefrontapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	dompay "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/httpclient"
)

const endpointSession = "checkout.session"

// SessionProvider reads checkout sessions from the storefront backend.
type SessionProvider struct {
	client *httpclient.Client
}

func NewSessionProvider(client *httpclient.Client) *SessionProvider {
	return &SessionProvider{client: client}
}

func (p *SessionProvider) Retrieve(ctx context.Context, sessionID string) (*dompay.Session, error) {
	path := "/checkout/session/" + url.PathEscape(sessionID)
	resp, err := p.client.Do(ctx, http.MethodGet, path, endpointSession, nil)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", dompay.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: %w", dompay.ErrProviderUnavailable, err)
	}
	return parseSession(resp.Body)
}
