package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// PinReader samples digital inputs. ReadPin is called from pin-change
// handlers, so it must not block.
type PinReader interface {
	// ReadPin returns the current electrical level, true for high
	ReadPin(pin GPIOPin) bool
}

// PinWriter drives digital outputs such as stepper step/dir lines
type PinWriter interface {
	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool)
}
