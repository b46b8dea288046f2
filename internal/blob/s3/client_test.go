package s3blob

import "testing"

func TestKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		path   string
		key    string
	}{
		{"no prefix", "", "archive/trades/2025-01.jsonl", "archive/trades/2025-01.jsonl"},
		{"prefix applied", "prod", "archive/trades/2025-01.jsonl", "prod/archive/trades/2025-01.jsonl"},
		{"prefix slashes trimmed", "/prod/", "archive/trades/2025-01.jsonl", "prod/archive/trades/2025-01.jsonl"},
		{"leading slash on path", "prod", "/archive/perf.jsonl", "prod/archive/perf.jsonl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{bucket: "b", prefix: normalizePrefix(tt.prefix)}
			key := c.Key(tt.path)
			if key != tt.key {
				t.Fatalf("Key(%q) = %q, want %q", tt.path, key, tt.key)
			}
			want := tt.path
			if len(want) > 0 && want[0] == '/' {
				want = want[1:]
			}
			if got := c.Path(key); got != want {
				t.Errorf("Path(%q) = %q, want %q", key, got, want)
			}
		})
	}
}

func TestWithScheme(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"minio.internal:9000", false, "http://minio.internal:9000"},
		{"minio.internal:9000", true, "https://minio.internal:9000"},
		{"https://storage.example.com", false, "https://storage.example.com"},
		{"http://localhost:9000", true, "http://localhost:9000"},
	}
	for _, tt := range tests {
		if got := withScheme(tt.endpoint, tt.useSSL); got != tt.want {
			t.Errorf("withScheme(%q, %v) = %q, want %q", tt.endpoint, tt.useSSL, got, tt.want)
		}
	}
}
