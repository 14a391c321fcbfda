package observability

import "testing"

func TestNormalizeOTLPHTTPPath(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name     string
		endpoint string
		suffix   string
		want     string
		wantErr  bool
	}{
		{"bare host", "https://collector:4318", "/v1/metrics", "https://collector:4318/v1/metrics", false},
		{"plain http", "http://localhost:4318", "/v1/traces", "http://localhost:4318/v1/traces", false},
		{"prefix path", "https://example.com/otlp", "/v1/metrics", "https://example.com/otlp/v1/metrics", false},
		{"trailing slash", "https://example.com/otlp/", "v1/metrics", "https://example.com/otlp/v1/metrics", false},
		{"already suffixed", "https://example.com/otlp/v1/metrics", "/v1/metrics", "https://example.com/otlp/v1/metrics", false},
		{"query kept", "https://example.com/otlp?token=abc", "/v1/traces", "https://example.com/otlp/v1/traces?token=abc", false},
		{"empty", "", "/v1/metrics", "", true},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeOTLPHTTPPath(tt.endpoint, tt.suffix)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseGRPCEndpoint(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		raw          string
		wantEndpoint string
		wantInsecure bool
		wantErr      bool
	}{
		{"collector:4317", "collector:4317", true, false},
		{"http://collector:4317", "collector:4317", true, false},
		{"grpcs://collector:4317", "collector:4317", false, false},
		{"https://collector.example.com", "collector.example.com", false, false},
		{"ftp://collector:4317", "", false, true},
		{"collector", "", false, true},
		{"  ", "", false, true},
	}

	for _, tt := range testcases {
		t.Run(tt.raw, func(t *testing.T) {
			endpoint, insecure, err := parseGRPCEndpoint(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if endpoint != tt.wantEndpoint || insecure != tt.wantInsecure {
				t.Fatalf("got (%q, %v), want (%q, %v)", endpoint, insecure, tt.wantEndpoint, tt.wantInsecure)
			}
		})
	}
}
