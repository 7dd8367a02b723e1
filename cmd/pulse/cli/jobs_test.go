package cli

import (
	"context"
	"strings"
	"testing"

	_ "github.com/pulse-retention/pulse-dashboard/testing"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c, err := NewJobsCLI("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new cli: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if _, err := c.Trigger(context.Background(), "mail:send"); err == nil {
		t.Fatal("expected error for unsupported job")
	} else if !strings.Contains(err.Error(), "unsupported job") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTriggerRequiresClient(t *testing.T) {
	var c *JobsCLI
	if _, err := c.Trigger(context.Background(), "roi:warmup"); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}
