package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/debuglog"
)

// ErrNoSpeech is reported when the recognizer ran but heard nothing.
var ErrNoSpeech = errors.New("no speech detected")

// CommandProvider runs an external recognizer and reads the transcript
// from its stdout.
type CommandProvider struct {
	argv    []string
	timeout time.Duration
}

func NewCommandProvider(argv []string, timeout time.Duration) *CommandProvider {
	return &CommandProvider{argv: argv, timeout: timeout}
}

// Argv returns the command line this provider runs.
func (p *CommandProvider) Argv() []string { return append([]string(nil), p.argv...) }

func (p *CommandProvider) Start(ctx context.Context, hooks Hooks) error {
	if len(p.argv) == 0 {
		return ErrUnsupported
	}

	var cancel context.CancelFunc
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s: %w", p.argv[0], err)
	}
	debuglog.Debugf("speech: started %s", p.argv[0])

	go func() {
		defer cancel()
		defer hooks.end()

		if err := cmd.Wait(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				err = fmt.Errorf("%w: %s", err, lastLine(msg))
			}
			hooks.fail(fmt.Errorf("%s: %w", p.argv[0], err))
			return
		}
		text := Transcript(stdout.String())
		if text == "" {
			hooks.fail(ErrNoSpeech)
			return
		}
		hooks.result(text)
	}()
	return nil
}

// Transcript extracts the recognized text from recognizer output: the last
// non-empty line, without a leading [timestamp] block.
func Transcript(out string) string {
	line := lastLine(out)
	if strings.HasPrefix(line, "[") {
		if i := strings.Index(line, "]"); i >= 0 {
			line = line[i+1:]
		}
	}
	return strings.TrimSpace(line)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// NewProvider picks the provider described by cfg. It returns nil when
// speech is disabled or nothing usable is installed; callers treat a nil
// Provider as unsupported.
func NewProvider(cfg config.SpeechConfig) Provider {
	seconds := cfg.Seconds
	if seconds <= 0 {
		seconds = 5
	}
	timeout := time.Duration(seconds)*time.Second*3 + 10*time.Second

	if len(cfg.Command) > 0 {
		return NewCommandProvider(expandArgs(cfg.Command, cfg.Language, seconds), timeout)
	}

	engine := strings.ToLower(strings.TrimSpace(cfg.Engine))
	if engine == "none" || engine == "off" {
		return nil
	}

	registry, err := NewRegistry()
	if err != nil {
		debuglog.Warnf("speech: %v", err)
		return nil
	}
	if engine == "" || engine == "auto" {
		engine = registry.FindAvailable()
		if engine == "" {
			debuglog.Infof("speech: no engine available")
			return nil
		}
	} else if !registry.Available(engine) {
		debuglog.Warnf("speech: engine %q is not available", engine)
		return nil
	}

	argv, err := registry.Command(engine, cfg.Language, seconds)
	if err != nil {
		debuglog.Warnf("speech: %v", err)
		return nil
	}
	debuglog.Infof("speech: using engine %s", engine)
	return NewCommandProvider(argv, timeout)
}
