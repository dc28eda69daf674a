package hooks

import (
	"runtime/debug"
	"strings"

	log "github.com/sirupsen/logrus"
)

type contextHook struct {
}

// NewContextHook returns a hook that annotates each entry with the file:line
// of the logging call site, trimmed to the path inside this module.
func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook contextHook) Fire(entry *log.Entry) error {
	lines := strings.Split(string(debug.Stack()), "\n")
	foundHook := false
	for i := 0; i < len(lines); i++ {
		if strings.Contains(lines[i], "context_hook.go:") {
			foundHook = true
			continue
		}
		if !foundHook || !strings.HasPrefix(lines[i], "\t") {
			continue
		}
		// First frame outside logrus is the caller.
		if strings.Contains(lines[i], "sirupsen/logrus") {
			continue
		}
		ctx := strings.Split(lines[i], "remotesim/")
		loc := strings.TrimSpace(ctx[len(ctx)-1])
		if idx := strings.Index(loc, " +0x"); idx >= 0 {
			loc = loc[:idx]
		}
		entry.Data["file:line"] = loc
		break
	}
	return nil
}
