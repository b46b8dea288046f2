package redis

import (
	"testing"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func TestChannelAndStreamKeys(t *testing.T) {
	if got := channelKey(domain.ChannelRisk); got != "arb:bus:risk" {
		t.Errorf("channelKey(risk) = %q, want arb:bus:risk", got)
	}
	if got := streamKey("opportunities"); got != "arb:stream:opportunities" {
		t.Errorf("streamKey(opportunities) = %q, want arb:stream:opportunities", got)
	}
}

func TestDecodeStreamBody(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
		want   string
		ok     bool
	}{
		{"string body", map[string]interface{}{"body": `{"pnl":1.5}`, "at": "1700000000000"}, `{"pnl":1.5}`, true},
		{"byte body", map[string]interface{}{"body": []byte("raw")}, "raw", true},
		{"missing body", map[string]interface{}{"at": "1700000000000"}, "", false},
		{"wrong type", map[string]interface{}{"body": 42}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeStreamBody(tt.values)
			if ok != tt.ok {
				t.Fatalf("decodeStreamBody() ok = %v, want %v", ok, tt.ok)
			}
			if ok && string(got) != tt.want {
				t.Errorf("decodeStreamBody() = %q, want %q", got, tt.want)
			}
		})
	}
}
