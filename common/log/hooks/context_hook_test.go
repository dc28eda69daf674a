package hooks

import (
	"bytes"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestContextHookAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.Out = &buf
	logger.Formatter = &log.TextFormatter{DisableTimestamp: true}
	logger.AddHook(NewContextHook())

	logger.Info("hello")

	if !strings.Contains(buf.String(), "context_hook_test.go:") {
		t.Fatalf("expected caller location in %q", buf.String())
	}
}
