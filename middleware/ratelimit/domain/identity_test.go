package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gatekeeper/middleware/ratelimit/domain"
)

type fakeRequest struct {
	addr    string
	headers map[string]string
	path    string
}

func (r fakeRequest) ClientAddr() string        { return r.addr }
func (r fakeRequest) Header(name string) string { return r.headers[name] }
func (r fakeRequest) Path() string              { return r.path }

func TestResolveIdentity(t *testing.T) {
	full := fakeRequest{
		addr: "10.0.0.1",
		headers: map[string]string{
			domain.UserIDHeader: "u-42",
			domain.APIKeyHeader: "key-1",
		},
	}
	empty := fakeRequest{}

	tests := []struct {
		name string
		req  fakeRequest
		dim  string
		want string
	}{
		{"ip", full, "ip", "10.0.0.1"},
		{"ip case insensitive", full, "IP", "10.0.0.1"},
		{"ip missing", empty, "ip", "unknown"},
		{"user id", full, "userId", "u-42"},
		{"user id lower", full, "userid", "u-42"},
		{"user id missing", empty, "userId", "anonymous"},
		{"api key", full, "apiKey", "key-1"},
		{"api key missing", empty, "APIKEY", "unknown"},
		{"default", full, "default", domain.DefaultDimension},
		{"unknown dimension", full, "tenant", domain.DefaultDimension},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ResolveIdentity(tt.req, tt.dim))
		})
	}
}

func TestIdentityKey_NamespacesDimensions(t *testing.T) {
	req := fakeRequest{}
	// "unknown" para ip e apiKey não pode cair no mesmo bucket
	assert.Equal(t, "ip=unknown", domain.IdentityKey(req, "ip"))
	assert.Equal(t, "apiKey=unknown", domain.IdentityKey(req, "apiKey"))
	assert.Equal(t, "userId=anonymous", domain.IdentityKey(req, "userId"))
	assert.Equal(t, domain.DefaultDimension, domain.IdentityKey(req, "whatever"))
}

func TestCompositeKey(t *testing.T) {
	req := fakeRequest{addr: "192.168.1.1", headers: map[string]string{domain.APIKeyHeader: "abc"}}

	assert.Equal(t, domain.DefaultDimension, domain.CompositeKey(req, nil))
	assert.Equal(t, "ip=192.168.1.1", domain.CompositeKey(req, []string{"ip"}))
	assert.Equal(t, "ip=192.168.1.1:apiKey=abc", domain.CompositeKey(req, []string{"ip", "apiKey"}))
	assert.Equal(t, "apiKey=abc:ip=192.168.1.1", domain.CompositeKey(req, []string{"apiKey", "ip"}))
}
