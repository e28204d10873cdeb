// Package mqtt mirrors application state to an MQTT broker and accepts
// commands from it, so the agent plugs into Home Assistant and similar
// automation without a custom integration.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/amadea-system/QmkHidGear/internal/config"
	"github.com/amadea-system/QmkHidGear/internal/core"
	"github.com/amadea-system/QmkHidGear/internal/pattern"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Client struct {
	client   mqtt.Client
	cfg      *config.Config
	commands core.CommandChannel
	events   *core.EventBus
	patterns *pattern.Engine
	prefix   string
}

// NewClient builds a client with reconnect handling, or nil when MQTT is
// disabled in the config. Callers must treat a nil client as "no mirror".
func NewClient(cfg *config.Config, commands core.CommandChannel, events *core.EventBus, patterns *pattern.Engine) *Client {
	if !cfg.MQTT.Enabled {
		return nil
	}

	prefix := strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// Keep retrying the first connect too, so a broker that comes up after
	// us (common under Docker) does not kill the agent.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetOrderMatters(false)

	// The broker announces our death if the process drops without a clean
	// disconnect.
	opts.SetWill(prefix+"/availability", "offline", 1, true)

	c := &Client{
		cfg:      cfg,
		commands: commands,
		events:   events,
		patterns: patterns,
		prefix:   prefix,
	}

	opts.SetOnConnectHandler(c.onConnect)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v. Retrying in background...", err)
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		log.Println("[MQTT] Attempting to reconnect...")
	})

	c.client = mqtt.NewClient(opts)

	go c.pumpEvents()

	return c
}

// Connect initiates the connection loop.
func (c *Client) Connect() error {
	if c.client == nil {
		return nil
	}
	log.Printf("[MQTT] Starting connection loop to %s...", c.cfg.MQTT.Broker)

	token := c.client.Connect()
	// With ConnectRetry enabled an error here means a bad configuration
	// (such as an invalid broker URL), not a temporarily absent broker.
	if token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] Initial connection error: %v", token.Error())
		return token.Error()
	}

	return nil
}

// Disconnect publishes the offline status, then closes the socket.
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] Disconnecting...")

		token := c.client.Publish(c.prefix+"/availability", 0, true, "offline")
		if token.WaitTimeout(2 * time.Second) {
			if token.Error() != nil {
				log.Printf("[MQTT] Warning: failed to publish offline status: %v", token.Error())
			}
		} else {
			log.Println("[MQTT] Warning: timed out publishing offline status")
		}

		c.client.Disconnect(250)
		log.Println("[MQTT] Disconnected.")
	}
}

// Publish sends a payload to prefix/subtopic without blocking the caller.
func (c *Client) Publish(subtopic string, payload interface{}, retained bool) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}

	topic := fmt.Sprintf("%s/%s", c.prefix, subtopic)
	msg := fmt.Sprintf("%v", payload)

	token := c.client.Publish(topic, 0, retained, msg)

	go func() {
		if token.WaitTimeout(5 * time.Second) {
			if token.Error() != nil {
				log.Printf("[MQTT] Publish error to %s: %v", topic, token.Error())
			}
		} else {
			log.Printf("[MQTT] Timeout publishing to %s", topic)
		}
	}()
}

// onConnect runs on Paho's event goroutine after every (re)connect.
func (c *Client) onConnect(client mqtt.Client) {
	log.Println("[MQTT] Connected to broker.")

	topics := map[string]mqtt.MessageHandler{
		"fronter/set":  c.handleFronterSet,
		"fronter/sync": c.handleFronterSync,
		"pattern/run":  c.handlePatternRun,
		"pattern/stop": c.handlePatternStop,
		"leds/set":     c.handleLedsSet,
	}

	for sub, handler := range topics {
		topic := fmt.Sprintf("%s/%s", c.prefix, sub)
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("[MQTT] Subscribed to %s", topic)
		}
	}

	// Discovery sleeps before publishing, keep it off the Paho goroutine.
	go func() {
		c.Publish("availability", "online", true)
		if c.cfg.MQTT.HADiscoveryEnabled {
			c.PublishHADiscovery()
		}
	}()
}

// PublishHADiscovery announces the agent's entities to Home Assistant: a
// sensor for the current fronter and a connectivity binary_sensor per
// configured keyboard.
func (c *Client) PublishHADiscovery() {
	// Let the subscriptions settle first.
	time.Sleep(1 * time.Second)

	safeID := sanitizeID(c.cfg.MQTT.ClientID)

	device := map[string]interface{}{
		"identifiers":  []string{safeID},
		"name":         "QMK HID Gear",
		"manufacturer": "Amadea System",
		"model":        "QMK HID Agent",
		"sw_version":   "2.0",
	}
	availability := []map[string]string{
		{
			"topic":                 fmt.Sprintf("%s/availability", c.prefix),
			"payload_available":     "online",
			"payload_not_available": "offline",
		},
	}

	fronterTopic := fmt.Sprintf("%s/sensor/%s_fronter/config", c.cfg.MQTT.HADiscoveryPrefix, safeID)
	fronterPayload := map[string]interface{}{
		"name":         "Fronter",
		"unique_id":    safeID + "_fronter",
		"object_id":    safeID + "_fronter",
		"icon":         "mdi:account-switch",
		"state_topic":  fmt.Sprintf("%s/fronter/state", c.prefix),
		"availability": availability,
		"device":       device,
	}
	c.publishDiscovery(fronterTopic, fronterPayload)

	for _, name := range c.cfg.HID.Keyboards {
		topic := fmt.Sprintf("%s/binary_sensor/%s_%s/config", c.cfg.MQTT.HADiscoveryPrefix, safeID, name)
		payload := map[string]interface{}{
			"name":         name,
			"unique_id":    fmt.Sprintf("%s_%s_connection", safeID, name),
			"object_id":    fmt.Sprintf("%s_%s", safeID, name),
			"device_class": "connectivity",
			"state_topic":  fmt.Sprintf("%s/keyboard/%s/connection", c.prefix, name),
			"payload_on":   "connected",
			"payload_off":  "disconnected",
			"availability": availability,
			"device":       device,
		}
		c.publishDiscovery(topic, payload)
	}

	log.Printf("[MQTT] HA Discovery sent for %d entities", 1+len(c.cfg.HID.Keyboards))
}

func (c *Client) publishDiscovery(topic string, payload map[string]interface{}) {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[MQTT] Error marshalling discovery payload: %v", err)
		return
	}
	c.client.Publish(topic, 0, true, jsonPayload)
}

// sanitizeID strips characters Home Assistant rejects in object ids.
func sanitizeID(id string) string {
	id = strings.ReplaceAll(id, " ", "_")
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return -1
	}, id)
}

// pumpEvents republishes bus events as retained state topics.
func (c *Client) pumpEvents() {
	sub := c.events.Subscribe(
		core.FronterChangedEvent,
		core.LayerChangedEvent,
		core.DeviceConnectedEvent,
		core.PatternChangedEvent,
	)
	for ev := range sub {
		switch ev.Type {
		case core.FronterChangedEvent:
			if f, ok := ev.Payload.(core.FronterState); ok {
				c.Publish("fronter/state", f.Name, true)
				c.Publish("fronter/id", f.FrontID, true)
			}
		case core.LayerChangedEvent:
			if m, ok := ev.Payload.(map[string]interface{}); ok {
				c.Publish(fmt.Sprintf("keyboard/%v/layer", m["keyboard"]), m["name"], true)
			}
		case core.DeviceConnectedEvent:
			if m, ok := ev.Payload.(map[string]interface{}); ok {
				state := "disconnected"
				if connected, _ := m["connected"].(bool); connected {
					state = "connected"
				}
				c.Publish(fmt.Sprintf("keyboard/%v/connection", m["keyboard"]), state, true)
			}
		case core.PatternChangedEvent:
			if m, ok := ev.Payload.(map[string]interface{}); ok {
				c.Publish("pattern/state", m["running"], true)
			}
		}
	}
}

// --- Command topic handlers ---

func (c *Client) handleFronterSet(client mqtt.Client, msg mqtt.Message) {
	name := strings.TrimSpace(string(msg.Payload()))
	if name == "" {
		return
	}
	c.commands <- core.Command{Type: core.CmdSetFronter, Payload: map[string]interface{}{"name": name}}
}

func (c *Client) handleFronterSync(client mqtt.Client, msg mqtt.Message) {
	c.commands <- core.Command{Type: core.CmdRefreshFront}
}

func (c *Client) handlePatternRun(client mqtt.Client, msg mqtt.Message) {
	name := strings.TrimSpace(string(msg.Payload()))
	if name == "" {
		return
	}
	c.commands <- core.Command{Type: core.CmdRunPattern, Payload: map[string]interface{}{"name": name}}
}

func (c *Client) handlePatternStop(client mqtt.Client, msg mqtt.Message) {
	c.commands <- core.Command{Type: core.CmdStopPattern}
}

// handleLedsSet accepts "h,s,v" with each component in 0..255.
func (c *Client) handleLedsSet(client mqtt.Client, msg mqtt.Message) {
	parts := strings.Split(string(msg.Payload()), ",")
	if len(parts) != 3 {
		log.Printf("[MQTT] Bad leds/set payload: %q", msg.Payload())
		return
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			log.Printf("[MQTT] Bad leds/set payload: %q", msg.Payload())
			return
		}
		vals[i] = float64(n)
	}
	c.commands <- core.Command{Type: core.CmdSetLeds, Payload: map[string]interface{}{
		"h": vals[0], "s": vals[1], "v": vals[2],
	}}
}
