package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestNewOutbound_Timeouts(t *testing.T) {
	if c := NewOutbound(0); c.Timeout != 30*time.Second {
		t.Fatalf("default timeout=%v", c.Timeout)
	}
	c := NewOutbound(2 * time.Second)
	if c.Timeout != 2*time.Second {
		t.Fatalf("timeout=%v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok || !tr.DisableCompression {
		t.Fatalf("expected transport with compression disabled")
	}
}
