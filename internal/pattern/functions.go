package pattern

import (
	"context"
	"log"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/amadea-system/QmkHidGear/internal/protocol"
)

// run is the per-script state: the frame being painted and the script's
// cancellation context. A fresh run is created for every execution, so a
// cancelled script can never touch the next one's frame.
type run struct {
	engine  *Engine
	ctx     context.Context
	frame   []protocol.LedColor
	dropped bool
}

// register exposes the pattern API to the given Lua state. LED indices are
// zero based, matching the firmware's absolute LED numbering.
func (r *run) register(L *lua.LState) {
	L.SetGlobal("led_count", L.NewFunction(r.luaLedCount))
	L.SetGlobal("set_led", L.NewFunction(r.luaSetLed))
	L.SetGlobal("fill", L.NewFunction(r.luaFill))
	L.SetGlobal("show", L.NewFunction(r.luaShow))
	L.SetGlobal("sleep", L.NewFunction(r.luaSleep))
	L.SetGlobal("should_stop", L.NewFunction(r.luaShouldStop))
	L.SetGlobal("print", L.NewFunction(luaPrint))
}

func luaPrint(L *lua.LState) int {
	log.Printf("[LUA] %s", L.ToString(1))
	return 0
}

func (r *run) luaLedCount(L *lua.LState) int {
	L.Push(lua.LNumber(len(r.frame)))
	return 1
}

// luaSetLed paints one LED: set_led(i, h, s, v). Channel values wrap at
// 256; out of range indices are ignored.
func (r *run) luaSetLed(L *lua.LState) int {
	i := L.ToInt(1)
	if i < 0 || i >= len(r.frame) {
		return 0
	}
	r.frame[i] = protocol.LedColor{
		H: uint8(L.ToInt(2)),
		S: uint8(L.ToInt(3)),
		V: uint8(L.ToInt(4)),
	}
	return 0
}

// luaFill paints the whole frame one color: fill(h, s, v).
func (r *run) luaFill(L *lua.LState) int {
	c := protocol.LedColor{
		H: uint8(L.ToInt(1)),
		S: uint8(L.ToInt(2)),
		V: uint8(L.ToInt(3)),
	}
	for i := range r.frame {
		r.frame[i] = c
	}
	return 0
}

// luaShow publishes a snapshot of the frame. If the agent is busy the frame
// is dropped; animation frames are disposable and the script keeps running.
func (r *run) luaShow(L *lua.LState) int {
	snapshot := append([]protocol.LedColor(nil), r.frame...)
	select {
	case r.engine.frames <- snapshot:
	default:
		if !r.dropped {
			log.Println("[Pattern] Frame channel full, dropping frames")
			r.dropped = true
		}
	}
	return 0
}

// luaSleep pauses the script: sleep(ms). It wakes immediately when the
// pattern is stopped.
func (r *run) luaSleep(L *lua.LState) int {
	ms := L.ToInt(1)
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-r.ctx.Done():
	}
	return 0
}

func (r *run) luaShouldStop(L *lua.LState) int {
	select {
	case <-r.ctx.Done():
		L.Push(lua.LBool(true))
	default:
		L.Push(lua.LBool(false))
	}
	return 1
}
