// Package scheduler fires control commands on cron schedules, so recurring
// things like a nightly pattern or an hourly fronter refresh do not need an
// external timer. Schedules persist to a JSON file across restarts.
package scheduler

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/amadea-system/QmkHidGear/internal/core"

	"github.com/robfig/cron/v3"
)

// ScheduleEntry is one persisted schedule: a cron spec and the command
// string it fires.
type ScheduleEntry struct {
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler wraps a cron runner with a persisted entry table. Entries are
// edited from the server goroutine while cron fires on its own, hence the
// lock.
type Scheduler struct {
	mu       sync.RWMutex
	cron     *cron.Cron
	entries  map[cron.EntryID]ScheduleEntry
	commands core.CommandChannel
	file     string
}

// NewScheduler builds a scheduler and loads any persisted entries. Start
// must be called before anything fires.
func NewScheduler(cmdChan core.CommandChannel, schedulesFile string) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(),
		entries:  make(map[cron.EntryID]ScheduleEntry),
		commands: cmdChan,
		file:     schedulesFile,
	}
	s.load()
	return s
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("Cron scheduler started.")
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Cron scheduler stopped.")
}

// Add registers a schedule and persists the table. A bad cron spec is
// logged and ignored.
func (s *Scheduler) Add(spec, command string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.fire(command) })
	if err != nil {
		log.Printf("Error adding schedule '%s' '%s': %v", spec, command, err)
		return
	}
	s.entries[id] = ScheduleEntry{Spec: spec, Command: command}
	s.save()
	log.Printf("Added schedule (ID %d): %s -> %s", id, spec, command)
}

// Remove drops a schedule by id and persists the table.
func (s *Scheduler) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := cron.EntryID(id)
	s.cron.Remove(entryID)
	delete(s.entries, entryID)
	s.save()
	log.Printf("Removed schedule (ID %d)", id)
}

// GetAll returns a snapshot of the schedule table.
func (s *Scheduler) GetAll() map[cron.EntryID]ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[cron.EntryID]ScheduleEntry, len(s.entries))
	for id, entry := range s.entries {
		out[id] = entry
	}
	return out
}

// fire parses one schedule command and pushes it onto the command channel.
func (s *Scheduler) fire(command string) {
	log.Printf("Executing scheduled command: %s", command)
	cmd, ok := parseCommand(command)
	if !ok {
		log.Printf("Unrecognized scheduled command: %s", command)
		return
	}
	s.commands <- cmd
}

// parseCommand maps a schedule command string onto a core command.
// Supported forms:
//
//	pattern <name>
//	pattern-stop
//	leds <h> <s> <v>
//	ping
//	front-refresh
func parseCommand(command string) (core.Command, bool) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return core.Command{}, false
	}
	switch parts[0] {
	case "pattern":
		if len(parts) < 2 {
			return core.Command{}, false
		}
		return core.Command{Type: core.CmdRunPattern, Payload: map[string]interface{}{"name": parts[1]}}, true
	case "pattern-stop":
		return core.Command{Type: core.CmdStopPattern}, true
	case "leds":
		if len(parts) < 4 {
			return core.Command{}, false
		}
		vals := make([]float64, 3)
		for i, p := range parts[1:4] {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 || n > 255 {
				return core.Command{}, false
			}
			vals[i] = float64(n)
		}
		return core.Command{Type: core.CmdSetLeds, Payload: map[string]interface{}{
			"h": vals[0], "s": vals[1], "v": vals[2],
		}}, true
	case "ping":
		return core.Command{Type: core.CmdPingKeyboards}, true
	case "front-refresh":
		return core.Command{Type: core.CmdRefreshFront}, true
	}
	return core.Command{}, false
}

func (s *Scheduler) save() {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		log.Printf("Error marshalling schedules: %v", err)
		return
	}
	if err := os.WriteFile(s.file, data, 0644); err != nil {
		log.Printf("Error writing schedule file: %v", err)
	}
}

func (s *Scheduler) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Error reading schedule file: %v", err)
		}
		return
	}

	saved := make(map[cron.EntryID]ScheduleEntry)
	if err := json.Unmarshal(data, &saved); err != nil {
		log.Printf("Error unmarshalling schedule file: %v", err)
		return
	}

	log.Printf("Loading %d schedules from file '%s'...", len(saved), s.file)
	for _, entry := range saved {
		entry := entry
		id, err := s.cron.AddFunc(entry.Spec, func() { s.fire(entry.Command) })
		if err != nil {
			log.Printf("Error re-adding schedule from file: %v", err)
			continue
		}
		s.entries[id] = entry
	}
}
