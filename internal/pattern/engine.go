// Package pattern runs Lua LED patterns. Scripts paint a fixed-width frame
// of HSV colors and publish it with show(); frames flow to the agent, which
// streams them to the keyboards. A single worker goroutine ensures only one
// pattern runs at a time.
package pattern

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/amadea-system/QmkHidGear/internal/core"
	"github.com/amadea-system/QmkHidGear/internal/protocol"
)

type cmdType int

const (
	cmdRunFile cmdType = iota
	cmdRunString
	cmdStop
)

// engineCmd is one unit of work for the engine worker: run a file, run an
// ad hoc code string, or stop whatever is running.
type engineCmd struct {
	kind cmdType
	name string
	code string
}

// Engine owns the Lua scripting environment and the pattern file store.
type Engine struct {
	ledCount    int
	frames      chan<- []protocol.LedColor
	patternsDir string
	eventBus    *core.EventBus

	cmdChan chan engineCmd
}

// NewEngine creates an engine and starts its worker. ledCount is the frame
// width scripts see; frames carries each published frame to the agent.
func NewEngine(ledCount int, frames chan<- []protocol.LedColor, patternsDir string, eb *core.EventBus) *Engine {
	e := &Engine{
		ledCount:    ledCount,
		frames:      frames,
		patternsDir: patternsDir,
		eventBus:    eb,
		cmdChan:     make(chan engineCmd, 10),
	}
	go e.runLoop()
	return e
}

// runLoop serializes script execution. Before a new script starts, the
// previous one is cancelled and given a grace period to unwind.
func (e *Engine) runLoop() {
	var cancelCurrent context.CancelFunc
	var scriptDone chan struct{}

	stopCurrent := func() {
		if cancelCurrent == nil {
			return
		}
		cancelCurrent()
		select {
		case <-scriptDone:
		case <-time.After(2 * time.Second):
			log.Println("[Pattern] Timeout waiting for script to stop")
		}
		cancelCurrent = nil
		scriptDone = nil
	}

	for cmd := range e.cmdChan {
		stopCurrent()
		if cmd.kind == cmdStop {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancelCurrent = cancel
		done := make(chan struct{})
		scriptDone = done

		go func(cmd engineCmd) {
			defer close(done)
			switch cmd.kind {
			case cmdRunFile:
				e.execute(ctx, cmd.name, func(L *lua.LState) error {
					return L.DoFile(cmd.code)
				})
			case cmdRunString:
				e.execute(ctx, cmd.name, func(L *lua.LState) error {
					return L.DoString(cmd.code)
				})
			}
		}(cmd)
	}
}

// StopCurrentPattern cancels the running script, if any.
func (e *Engine) StopCurrentPattern() {
	select {
	case e.cmdChan <- engineCmd{kind: cmdStop}:
	default:
		log.Println("[Pattern] Command channel full, could not send stop command")
	}
}

// RunPattern queues a pattern file for execution, superseding whatever is
// running.
func (e *Engine) RunPattern(name string) {
	scriptPath, err := e.PatternPath(name)
	if err != nil {
		log.Printf("[Pattern] Could not get pattern path for '%s': %v", name, err)
		return
	}
	e.cmdChan <- engineCmd{kind: cmdRunFile, name: name, code: scriptPath}
}

// ExecuteString queues an ad hoc Lua snippet for execution.
func (e *Engine) ExecuteString(code string) {
	e.cmdChan <- engineCmd{kind: cmdRunString, name: "single line command", code: code}
}

func (e *Engine) execute(ctx context.Context, name string, executor func(*lua.LState) error) {
	log.Printf("[Pattern] Starting pattern '%s'...", name)
	e.publishRunning(name)
	defer func() {
		log.Printf("[Pattern] Pattern '%s' finished.", name)
		e.publishRunning("")
	}()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	r := &run{engine: e, ctx: ctx, frame: make([]protocol.LedColor, e.ledCount)}
	r.register(L)

	if err := executor(L); err != nil {
		if ctx.Err() == context.Canceled {
			log.Printf("[Pattern] Pattern '%s' execution was canceled.", name)
		} else {
			log.Printf("[Pattern] Error executing pattern '%s': %v", name, err)
		}
	}
}

func (e *Engine) publishRunning(name string) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(core.Event{
		Type:    core.PatternChangedEvent,
		Payload: map[string]interface{}{"running": name},
	})
}

// sanitizeFilename rejects anything but a bare ".lua" file name. Path
// components are stripped rather than rejected so a UI handing over a full
// path still resolves inside the patterns directory.
func sanitizeFilename(name string) (string, error) {
	if !strings.HasSuffix(name, ".lua") {
		return "", fmt.Errorf("filename must end with .lua")
	}
	base := filepath.Base(name)
	if base == "" || base == ".lua" || strings.Contains(base, "..") {
		return "", fmt.Errorf("invalid filename")
	}
	return base, nil
}

// PatternPath resolves a pattern name to its path inside the patterns
// directory, creating the directory on first use.
func (e *Engine) PatternPath(name string) (string, error) {
	base, err := sanitizeFilename(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(e.patternsDir); errors.Is(err, fs.ErrNotExist) {
		log.Printf("[Pattern] Creating patterns directory: %s", e.patternsDir)
		if err := os.MkdirAll(e.patternsDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create patterns directory: %w", err)
		}
	}
	return filepath.Join(e.patternsDir, base), nil
}

// PatternCode returns the source of a stored pattern.
func (e *Engine) PatternCode(name string) (string, error) {
	path, err := e.PatternPath(name)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// SavePatternCode stores Lua source under the given pattern name.
func (e *Engine) SavePatternCode(name, code string) error {
	path, err := e.PatternPath(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(code), 0644)
}

// DeletePattern removes a stored pattern.
func (e *Engine) DeletePattern(name string) error {
	path, err := e.PatternPath(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// PatternList returns the names of the stored .lua patterns. A missing
// directory is an empty list, not an error.
func (e *Engine) PatternList() ([]string, error) {
	entries, err := os.ReadDir(e.patternsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var patterns []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		patterns = append(patterns, entry.Name())
	}
	return patterns, nil
}
