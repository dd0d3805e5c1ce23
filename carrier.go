package wwvb

import (
	"fmt"

	"github.com/davecheney/gpio"
)

// Carrier switches the transmitted carrier between full and reduced power
type Carrier interface {
	SetFull() error
	SetLow() error
}

// NopCarrier discards level changes
type NopCarrier struct{}

// SetFull does nothing
func (NopCarrier) SetFull() error { return nil }

// SetLow does nothing
func (NopCarrier) SetLow() error { return nil }

// GPIOCarrier keys an external 60 kHz oscillator through a GPIO line: high enables the
// full carrier, low attenuates it
type GPIOCarrier struct {
	pin       gpio.Pin
	activeLow bool
}

// OpenGPIOCarrier opens pinNum as an output and starts at full power
func OpenGPIOCarrier(pinNum int, activeLow bool) (*GPIOCarrier, error) {
	pin, err := gpio.OpenPin(pinNum, gpio.ModeOutput)
	if err != nil {
		return nil, fmt.Errorf("open gpio %d: %w", pinNum, err)
	}
	c := &GPIOCarrier{pin: pin, activeLow: activeLow}
	if err := c.SetFull(); err != nil {
		_ = pin.Close()
		return nil, err
	}
	return c, nil
}

// SetFull restores the full carrier
func (c *GPIOCarrier) SetFull() error {
	return c.write(!c.activeLow)
}

// SetLow attenuates the carrier
func (c *GPIOCarrier) SetLow() error {
	return c.write(c.activeLow)
}

func (c *GPIOCarrier) write(level bool) error {
	if level {
		c.pin.Set()
	} else {
		c.pin.Clear()
	}
	return c.pin.Err()
}

// Close releases the pin
func (c *GPIOCarrier) Close() error {
	return c.pin.Close()
}
