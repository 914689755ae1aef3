package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Resolver discovers the public IP address of the current client.
type Resolver interface {
	ResolveIP(ctx context.Context) (string, error)
}

// RequestResolver reads the address from the inbound request, honouring
// proxy headers.
type RequestResolver struct {
	Request *http.Request
}

func (r RequestResolver) ResolveIP(_ context.Context) (string, error) {
	if r.Request == nil {
		return "", fmt.Errorf("no request")
	}
	ip := ClientIP(r.Request)
	if ip == "" {
		return "", fmt.Errorf("no client address on request")
	}
	return ip, nil
}

// ClientIP extracts real client IP from request
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (proxy/load balancer)
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// Take first IP in list
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	// Check X-Real-IP header
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HTTPResolver asks an external "what is my IP" endpoint. The JSON body must
// carry the address in "ip" or "origin".
type HTTPResolver struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPResolvers(urls []string, timeout time.Duration) []Resolver {
	client := &http.Client{}
	resolvers := make([]Resolver, 0, len(urls))
	for _, u := range urls {
		resolvers = append(resolvers, &HTTPResolver{URL: u, Client: client, Timeout: timeout})
	}
	return resolvers
}

type ipResponse struct {
	IP     string `json:"ip"`
	Origin string `json:"origin"`
}

func (r *HTTPResolver) ResolveIP(ctx context.Context) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", r.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d", r.URL, resp.StatusCode)
	}

	var body ipResponse
	err = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", r.URL, err)
	}

	ip := body.IP
	if ip == "" {
		ip = body.Origin
	}
	if ip == "" {
		return "", fmt.Errorf("%s returned no address", r.URL)
	}

	return ip, nil
}
