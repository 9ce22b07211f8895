package drivers

import (
	"fmt"
	"plugin"
)

// driverSymbol is the exported symbol an external driver plugin must carry.
const driverSymbol = "BlocklessDriver"

// LoadExternal loads a driver compiled as a Go plugin. The plugin exports a
// BlocklessDriver symbol that is either a Driver value or a pointer to one.
// This keeps the late-bound driver path open for hosts that ship drivers
// separately from the runtime binary.
func LoadExternal(path string) (Driver, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cdylib: open %s: %w", path, err)
	}
	sym, err := p.Lookup(driverSymbol)
	if err != nil {
		return nil, fmt.Errorf("cdylib: %s has no %s symbol: %w", path, driverSymbol, err)
	}
	switch d := sym.(type) {
	case Driver:
		return d, nil
	case *Driver:
		if *d == nil {
			return nil, fmt.Errorf("cdylib: %s exports a nil driver", path)
		}
		return *d, nil
	default:
		return nil, fmt.Errorf("cdylib: %s symbol %s is %T, not a driver", path, driverSymbol, sym)
	}
}
