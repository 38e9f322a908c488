package core

import "sync"

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

type MouseState struct {
	X       float64
	Y       float64
	Buttons [BUTTON_MAX_BUTTONS]bool
}

type InputState struct {
	MouseCurrent  MouseState
	MousePrevious MouseState
}

var inputMutex sync.Mutex
var inputInitialized bool = false
var inputState *InputState = nil

func InputInitialize() error {
	inputMutex.Lock()
	defer inputMutex.Unlock()
	inputState = &InputState{}
	inputInitialized = true
	LogInfo("Input subsystem initialized.")
	return nil
}

func InputShutdown() error {
	inputMutex.Lock()
	defer inputMutex.Unlock()
	inputInitialized = false
	inputState = nil
	return nil
}

// InputUpdate copies current states to previous states. Call once per frame.
func InputUpdate() {
	if !inputInitialized {
		return
	}
	inputState.MousePrevious = inputState.MouseCurrent
}

func InputIsButtonDown(button Button) bool {
	if !inputInitialized || button >= BUTTON_MAX_BUTTONS {
		return false
	}
	return inputState.MouseCurrent.Buttons[button]
}

func InputIsButtonUp(button Button) bool {
	return !InputIsButtonDown(button)
}

func InputWasButtonDown(button Button) bool {
	if !inputInitialized || button >= BUTTON_MAX_BUTTONS {
		return false
	}
	return inputState.MousePrevious.Buttons[button]
}

func InputGetMousePosition() (float64, float64) {
	if !inputInitialized {
		return 0, 0
	}
	return inputState.MouseCurrent.X, inputState.MouseCurrent.Y
}

func InputGetPreviousMousePosition() (float64, float64) {
	if !inputInitialized {
		return 0, 0
	}
	return inputState.MousePrevious.X, inputState.MousePrevious.Y
}

// InputProcessButton records a button transition and fires
// EVENT_CODE_BUTTON_PRESSED or EVENT_CODE_BUTTON_RELEASED with the cursor position.
func InputProcessButton(button Button, pressed bool) {
	if !inputInitialized || button >= BUTTON_MAX_BUTTONS {
		return
	}
	// If the state changed, fire an event.
	if inputState.MouseCurrent.Buttons[button] == pressed {
		return
	}
	inputState.MouseCurrent.Buttons[button] = pressed

	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	ctx := EventContext{}
	ctx.Data.U16[0] = uint16(button)
	ctx.Data.F64[0] = inputState.MouseCurrent.X
	ctx.Data.F64[1] = inputState.MouseCurrent.Y
	EventFire(code, nil, ctx)
}

func InputProcessMouseMove(x, y float64) {
	if !inputInitialized {
		return
	}
	// Only process if actually different
	if inputState.MouseCurrent.X == x && inputState.MouseCurrent.Y == y {
		return
	}
	inputState.MouseCurrent.X = x
	inputState.MouseCurrent.Y = y

	ctx := EventContext{}
	ctx.Data.F64[0] = x
	ctx.Data.F64[1] = y
	EventFire(EVENT_CODE_MOUSE_MOVED, nil, ctx)
}
