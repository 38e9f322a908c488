package core

import "testing"

func TestEventFireStopsAtFirstHandler(t *testing.T) {
	if !EventInitialize() {
		t.Fatal("EventInitialize() = false, want true")
	}
	defer EventShutdown()

	var calls []string
	first, second := "first", "second"
	EventRegister(EVENT_CODE_RESIZED, &first, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, *listener.(*string))
		return data.Data.U32[0] == 0
	})
	EventRegister(EVENT_CODE_RESIZED, &second, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, *listener.(*string))
		return true
	})

	ctx := EventContext{}
	ctx.Data.U32[0] = 800
	if !EventFire(EVENT_CODE_RESIZED, nil, ctx) {
		t.Errorf("EventFire() = false, want true")
	}
	if len(calls) != 2 {
		t.Fatalf("handlers called = %v, want both", calls)
	}

	calls = nil
	EventFire(EVENT_CODE_RESIZED, nil, EventContext{})
	if len(calls) != 1 || calls[0] != "first" {
		t.Errorf("handlers called = %v, want [first]", calls)
	}
}

func TestEventRegisterRejectsDuplicateListener(t *testing.T) {
	EventInitialize()
	defer EventShutdown()

	l := new(int)
	fn := func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }
	if !EventRegister(EVENT_CODE_APPLICATION_QUIT, l, fn) {
		t.Fatal("first EventRegister() = false, want true")
	}
	if EventRegister(EVENT_CODE_APPLICATION_QUIT, l, fn) {
		t.Error("duplicate EventRegister() = true, want false")
	}
	if !EventUnregister(EVENT_CODE_APPLICATION_QUIT, l) {
		t.Error("EventUnregister() = false, want true")
	}
	if EventFire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}) {
		t.Error("EventFire() after unregister = true, want false")
	}
}
