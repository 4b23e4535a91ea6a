package e2e

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"localchat/internal/foundry"
)

// TestLive_FoundryHaiku chats with a real Foundry Local service found by
// auto-discovery. Skips unless LOCALCHAT_LIVE_MODEL names a downloaded model.
func TestLive_FoundryHaiku(t *testing.T) {
	model := strings.TrimSpace(os.Getenv("LOCALCHAT_LIVE_MODEL"))
	if model == "" {
		t.Skip("LOCALCHAT_LIVE_MODEL not set; skipping live Foundry test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	p := foundry.New(foundry.Config{Endpoint: os.Getenv("LOCALCHAT_FOUNDRY_ENDPOINT")})
	if st := p.Status(ctx); !st.Available {
		t.Skipf("Foundry Local not available: %s", st.Error)
	}
	var text strings.Builder
	for d := range p.StreamChat(ctx, chatRequest(model, "Write a 3-line haiku about the ocean.")) {
		if d.Error != "" {
			t.Fatalf("chat error: %s", d.Error)
		}
		text.WriteString(d.Content)
	}
	if strings.TrimSpace(text.String()) == "" {
		t.Fatal("empty response")
	}
	t.Logf("haiku:\n%s", text.String())
}
