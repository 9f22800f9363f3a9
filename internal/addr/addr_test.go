package addr

import "testing"

func TestParseValid(t *testing.T) {
	a, err := Parse("/ip4/127.0.0.1/tcp/4001")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if a.IP.String() != "127.0.0.1" || a.Port != 4001 {
		t.Errorf("Parse() = %+v", a)
	}
	if got := a.String(); got != "/ip4/127.0.0.1/tcp/4001" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"",
		"not-a-multiaddr",
		"/ip6/::1/tcp/4001",
		"/ip4/127.0.0.1/udp/4001",
		"/ip4/not-an-ip/tcp/4001",
		"/ip4/127.0.0.1/tcp/not-a-port",
		"/ip4/127.0.0.1/tcp/99999",
	}
	for _, s := range tests {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", s)
		}
	}
}

func TestNetAddr(t *testing.T) {
	a, err := Parse("/ip4/10.0.0.1/tcp/9000")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	na := a.NetAddr()
	if na.Port != 9000 || na.IP.String() != "10.0.0.1" {
		t.Errorf("NetAddr() = %+v", na)
	}
}
