// Package agent owns the poll loop that drives the keyboard sessions. All
// device I/O happens on the loop goroutine, so the sessions themselves need
// no locking; every other surface (web panel, MQTT, scheduler) reaches the
// devices through the command channel.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/amadea-system/QmkHidGear/internal/config"
	"github.com/amadea-system/QmkHidGear/internal/core"
	"github.com/amadea-system/QmkHidGear/internal/dispatch"
	"github.com/amadea-system/QmkHidGear/internal/front"
	"github.com/amadea-system/QmkHidGear/internal/hid"
	"github.com/amadea-system/QmkHidGear/internal/mqtt"
	"github.com/amadea-system/QmkHidGear/internal/notify"
	"github.com/amadea-system/QmkHidGear/internal/pattern"
	"github.com/amadea-system/QmkHidGear/internal/protocol"
	"github.com/amadea-system/QmkHidGear/internal/roster"
	"github.com/amadea-system/QmkHidGear/internal/scheduler"
	"github.com/amadea-system/QmkHidGear/internal/server"
)

type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
	wg     sync.WaitGroup

	state          *core.State
	eventBus       *core.EventBus
	commandChannel core.CommandChannel

	keyboards  []*hid.Keyboard
	dispatcher *dispatch.Dispatcher
	front      *front.Client
	members    *roster.Roster
	notifier   notify.Notifier

	patternEngine *pattern.Engine
	frames        chan []protocol.LedColor
	scheduler     *scheduler.Scheduler
	server        *server.Server
	mqttClient    *mqtt.Client

	pollInterval time.Duration
	readTimeout  time.Duration
	retryBackoff time.Duration

	// Fronter fetch pacing, owned by the poll goroutine.
	refreshFront   bool
	nextFrontFetch time.Time
}

// NewAgent wires every subsystem from the config. The transport is injected
// so tests can drive the agent without real hardware.
func NewAgent(cfg *config.Config, transport hid.Transport) (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		ctx:            ctx,
		cancel:         cancel,
		config:         cfg,
		state:          core.NewState(),
		eventBus:       core.NewEventBus(),
		commandChannel: make(core.CommandChannel, 20),
		notifier:       notify.LogNotifier{},
		pollInterval:   config.Duration(cfg.HID.PollInterval),
		readTimeout:    config.Duration(cfg.HID.ReadTimeout),
		retryBackoff:   config.Duration(cfg.Front.RetryBackoff),
	}

	ledCount := 0
	for _, name := range cfg.HID.Keyboards {
		profile, ok := hid.ProfileByName(name)
		if !ok {
			cancel()
			return nil, fmt.Errorf("unknown keyboard profile %q", name)
		}
		a.keyboards = append(a.keyboards, hid.NewKeyboard(profile, transport, cfg.HID.LedRateLimit, cfg.HID.LedRateBurst))
		if profile.LedCount > ledCount {
			ledCount = profile.LedCount
		}
	}

	members := make([]roster.Member, 0, len(cfg.Members))
	for _, m := range cfg.Members {
		members = append(members, roster.Member{Name: m.Name, FrontID: m.FrontID, DeviceID: m.DeviceID})
	}
	var err error
	a.members, err = roster.New(members)
	if err != nil {
		cancel()
		return nil, err
	}

	if cfg.Front.SystemID != "" {
		a.front = front.New(front.Options{
			BaseURL:    cfg.Front.BaseURL,
			GatewayURL: cfg.Front.GatewayURL,
			SystemID:   cfg.Front.SystemID,
			Token:      cfg.Front.Token,
			Timeout:    config.Duration(cfg.Front.Timeout),
		})
	} else {
		log.Println("[Front] No system id configured, fronter polling disabled.")
	}

	// Frames are sized for the widest board and clipped per keyboard when
	// applied.
	a.frames = make(chan []protocol.LedColor, 8)
	a.patternEngine = pattern.NewEngine(ledCount, a.frames, cfg.PatternsDir, a.eventBus)

	a.scheduler = scheduler.NewScheduler(a.commandChannel, cfg.SchedulesFile)

	a.server = server.NewServer(
		a.state,
		a.commandChannel,
		a.eventBus,
		a.patternEngine,
		a.scheduler,
		cfg.Server.Port,
		cfg.Server.WebFilesDir,
		cfg.Server.AllowedOrigins,
	)

	a.mqttClient = mqtt.NewClient(cfg, a.commandChannel, a.eventBus, a.patternEngine)

	a.dispatcher = a.newDispatcher()

	return a, nil
}

// Run starts the subsystems and drives the poll loop until Shutdown.
func (a *Agent) Run() {
	a.wg.Add(1)
	defer a.wg.Done()

	if a.mqttClient != nil {
		go func() {
			if err := a.mqttClient.Connect(); err != nil {
				log.Printf("[Agent] MQTT setup error: %v", err)
			}
		}()
	}

	a.scheduler.Start()

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()
	log.Printf("Agent running on http://localhost:%s", a.config.Server.Port)

	patternSub := a.eventBus.Subscribe(core.PatternChangedEvent)

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	a.pollCycle()

	for {
		select {
		case <-a.ctx.Done():
			log.Println("Agent poll loop shutting down...")
			return
		case cmd := <-a.commandChannel:
			a.handleCommand(cmd)
		case frame := <-a.frames:
			a.applyFrame(frame)
		case ev := <-patternSub:
			a.notePatternEvent(ev)
		case <-ticker.C:
			a.pollCycle()
		}
	}
}

// pollCycle runs one pass of the device cycle: reconnect, refresh the
// fronter, push it out, then poll each keyboard once.
func (a *Agent) pollCycle() {
	for _, kb := range a.keyboards {
		if kb.Connected() {
			continue
		}
		if kb.Connect() {
			a.state.SetKeyboardConnection(kb.Profile.Name, true)
			a.eventBus.Publish(core.Event{Type: core.DeviceConnectedEvent, Payload: map[string]interface{}{
				"keyboard":  kb.Profile.Name,
				"connected": true,
			}})
			a.syncState()
		}
	}

	a.refreshFronter()

	fronter := a.state.Fronter()
	for _, kb := range a.keyboards {
		if !kb.Connected() {
			continue
		}
		if err := kb.SendFronter(fronter.DeviceID); err != nil {
			a.noteDeviceError(kb, err)
		}
	}

	for _, kb := range a.keyboards {
		if !kb.Connected() {
			continue
		}
		ev, err := kb.ReadEvent(a.readTimeout)
		if err != nil {
			a.noteDeviceError(kb, err)
			continue
		}
		if ev.None() {
			continue
		}
		if _, err := a.dispatcher.Dispatch(kb, ev); err != nil {
			log.Printf("[Agent] %s: %s handler: %v", kb.Profile.Name, ev.Command, err)
		}
	}
}

// refreshFronter fetches the current fronter unless a failure backoff is in
// effect. A forced refresh ignores the backoff.
func (a *Agent) refreshFronter() {
	if a.front == nil {
		return
	}
	if !a.refreshFront && time.Now().Before(a.nextFrontFetch) {
		return
	}

	fronters, err := a.front.CachedFronters(a.ctx)
	if err != nil {
		log.Printf("[Front] Fetch failed: %v", err)
		a.nextFrontFetch = time.Now().Add(a.retryBackoff)
		return
	}
	a.refreshFront = false
	a.nextFrontFetch = time.Time{}
	a.applyFronters(fronters)
}

// applyFronters folds a fronters response into state. The first member is
// the one shown; nobody fronting maps to device id 0.
func (a *Agent) applyFronters(f front.Fronters) {
	next := core.FronterState{DeviceID: roster.SwitchedOut, Name: "Switched Out"}
	if len(f.Members) > 0 {
		m := f.Members[0]
		member, ok := a.members.ByFrontID(m.ID)
		if !ok {
			log.Printf("[Front] Unknown member id %q (%s), keeping previous fronter", m.ID, m.Name)
			return
		}
		next = core.FronterState{DeviceID: member.DeviceID, Name: member.Name, FrontID: member.FrontID}
	}

	prev := a.state.Fronter()
	if prev.DeviceID == next.DeviceID && prev.FrontID == next.FrontID {
		return
	}
	next.Since = f.Timestamp
	if next.Since.IsZero() {
		next.Since = time.Now()
	}
	a.state.SetFronter(next)
	log.Printf("[Front] Fronter is now %s", next.Name)
	a.eventBus.Publish(core.Event{Type: core.FronterChangedEvent, Payload: next})
	a.syncState()
}

// applyFrame pushes one pattern frame to every connected keyboard, clipped
// to each board's LED count.
func (a *Agent) applyFrame(frame []protocol.LedColor) {
	for _, kb := range a.keyboards {
		if !kb.Connected() {
			continue
		}
		colors := frame
		if len(colors) > kb.Profile.LedCount {
			colors = colors[:kb.Profile.LedCount]
		}
		if err := kb.SendLeds(a.ctx, colors, 0); err != nil {
			a.noteDeviceError(kb, err)
		}
	}
}

// noteDeviceError folds a session error into state. Only a disconnect
// changes anything; corrupt or unknown traffic is logged and the session
// stays up.
func (a *Agent) noteDeviceError(kb *hid.Keyboard, err error) {
	name := kb.Profile.Name
	switch {
	case errors.Is(err, hid.ErrKeyboardDisconnected):
		if !a.state.Clone().Keyboards[name].Connected {
			return
		}
		log.Printf("[HID] %s disconnected: %v", name, err)
		a.state.SetKeyboardConnection(name, false)
		a.eventBus.Publish(core.Event{Type: core.DeviceConnectedEvent, Payload: map[string]interface{}{
			"keyboard":  name,
			"connected": false,
		}})
		a.syncState()
	case errors.Is(err, protocol.ErrCorruptResponse):
		log.Printf("[HID] %s sent a corrupt packet: %v", name, err)
	case errors.Is(err, protocol.ErrUnknownCommand):
		log.Printf("[HID] %s sent an unknown command: %v", name, err)
	default:
		log.Printf("[HID] %s error: %v", name, err)
	}
}

func (a *Agent) notePatternEvent(ev core.Event) {
	payload, ok := ev.Payload.(map[string]interface{})
	if !ok {
		return
	}
	if name, ok := payload["running"].(string); ok {
		a.state.SetRunningPattern(name)
		a.syncState()
	}
}

func (a *Agent) syncState() {
	a.eventBus.Publish(core.Event{Type: core.StateChangedEvent, Payload: a.state.Clone()})
}

// notice surfaces a short message on the notifier and the web panel.
func (a *Agent) notice(title, message string) {
	a.notifier.Notify(title, message)
	a.eventBus.Publish(core.Event{Type: core.NoticeEvent, Payload: core.Notice{Title: title, Message: message}})
}

// forceRefresh makes the next cycle fetch the fronter even if a failure
// backoff is pending.
func (a *Agent) forceRefresh() {
	a.refreshFront = true
	a.nextFrontFetch = time.Time{}
}

// Shutdown stops the subsystems, waits for the poll loop to exit and closes
// the device handles.
func (a *Agent) Shutdown() {
	a.scheduler.Stop()
	_ = a.server.Shutdown(context.Background())
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	a.patternEngine.StopCurrentPattern()
	a.cancel()
	a.wg.Wait()
	for _, kb := range a.keyboards {
		kb.Close()
	}
}
