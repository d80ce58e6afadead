package workflow

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

// Catalog maps recognized action IDs to provider commands
type Catalog struct {
	actions map[api.ActionID]*api.ActionSpec
}

// Provider names used by the built-in catalog
const (
	ProviderADB      = "adb"
	ProviderFastboot = "fastboot"
	ProviderIOS      = "ios"
	ProviderSystem   = "system"
)

var builtinActions = map[api.ActionID]*api.ActionSpec{
	"android.adb.devices": {
		Provider:    ProviderADB,
		Command:     "devices",
		Args:        []string{"-l"},
		Description: "List attached devices",
	},
	"android.adb.get_state": {
		Provider:    ProviderADB,
		Command:     "get-state",
		Description: "Read the device connection state",
	},
	"android.adb.device_model": {
		Provider:    ProviderADB,
		Command:     "shell",
		Args:        []string{"getprop", "ro.product.model"},
		Description: "Read the device model",
	},
	"android.adb.android_version": {
		Provider:    ProviderADB,
		Command:     "shell",
		Args:        []string{"getprop", "ro.build.version.release"},
		Description: "Read the Android release version",
	},
	"android.adb.security_patch": {
		Provider:    ProviderADB,
		Command:     "shell",
		Args:        []string{"getprop", "ro.build.version.security_patch"},
		Description: "Read the security patch level",
	},
	"android.adb.battery": {
		Provider:    ProviderADB,
		Command:     "shell",
		Args:        []string{"dumpsys", "battery"},
		Description: "Dump battery status",
	},
	"android.adb.storage": {
		Provider:    ProviderADB,
		Command:     "shell",
		Args:        []string{"df", "/data"},
		Description: "Report data partition usage",
	},
	"android.adb.reboot": {
		Provider:    ProviderADB,
		Command:     "reboot",
		Description: "Reboot the device",
	},
	"android.adb.reboot_bootloader": {
		Provider:    ProviderADB,
		Command:     "reboot",
		Args:        []string{"bootloader"},
		Description: "Reboot into the bootloader",
	},
	"android.adb.reboot_recovery": {
		Provider:    ProviderADB,
		Command:     "reboot",
		Args:        []string{"recovery"},
		Description: "Reboot into recovery",
	},
	"android.fastboot.devices": {
		Provider:    ProviderFastboot,
		Command:     "devices",
		Description: "List devices in fastboot mode",
	},
	"android.fastboot.getvar_unlocked": {
		Provider:    ProviderFastboot,
		Command:     "getvar",
		Args:        []string{"unlocked"},
		Description: "Read the bootloader lock state",
	},
	"android.fastboot.getvar_product": {
		Provider:    ProviderFastboot,
		Command:     "getvar",
		Args:        []string{"product"},
		Description: "Read the product name",
	},
	"android.fastboot.unlock": {
		Provider:    ProviderFastboot,
		Command:     "flashing",
		Args:        []string{"unlock"},
		Description: "Unlock the bootloader",
		Destructive: true,
	},
	"android.fastboot.lock": {
		Provider:    ProviderFastboot,
		Command:     "flashing",
		Args:        []string{"lock"},
		Description: "Relock the bootloader",
		Destructive: true,
	},
	"android.fastboot.flash": {
		Provider:    ProviderFastboot,
		Command:     "flash",
		Args:        []string{"{partition}", "{image}"},
		Description: "Flash an image to a partition",
		Destructive: true,
	},
	"android.fastboot.erase": {
		Provider:    ProviderFastboot,
		Command:     "erase",
		Args:        []string{"{partition}"},
		Description: "Erase a partition",
		Destructive: true,
	},
	"android.fastboot.reboot": {
		Provider:    ProviderFastboot,
		Command:     "reboot",
		Description: "Reboot out of fastboot",
	},
	"ios.pair_validate": {
		Provider:    ProviderIOS,
		Command:     "idevicepair",
		Args:        []string{"validate"},
		Description: "Validate the host pairing record",
	},
	"ios.device_info": {
		Provider:    ProviderIOS,
		Command:     "ideviceinfo",
		Args:        []string{"-k", "ProductType"},
		Description: "Read the product type",
	},
	"ios.os_version": {
		Provider:    ProviderIOS,
		Command:     "ideviceinfo",
		Args:        []string{"-k", "ProductVersion"},
		Description: "Read the iOS version",
	},
	"ios.battery": {
		Provider:    ProviderIOS,
		Command:     "ideviceinfo",
		Args:        []string{"-q", "com.apple.mobile.battery"},
		Description: "Read battery domain values",
	},
	"ios.diagnostics": {
		Provider:    ProviderIOS,
		Command:     "idevicediagnostics",
		Args:        []string{"diagnostics", "All"},
		Description: "Collect diagnostics",
	},
	"system.wait": {
		Provider:    ProviderSystem,
		Command:     "wait",
		Description: "Pause between steps",
	},
	"system.log": {
		Provider:    ProviderSystem,
		Command:     "log",
		Description: "Record an operator-visible note",
	},
}

// NewCatalog returns a catalog holding the built-in actions
func NewCatalog() *Catalog {
	res := &Catalog{actions: make(map[api.ActionID]*api.ActionSpec)}
	for id, a := range builtinActions {
		res.actions[id] = cloneAction(a)
	}
	return res
}

// With returns a new catalog with extra actions layered over this one.
// Extra actions replace built-ins with the same ID
func (c *Catalog) With(
	extra map[api.ActionID]*api.ActionSpec,
) (*Catalog, error) {
	res := &Catalog{actions: maps.Clone(c.actions)}
	for id, a := range extra {
		if a == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAction, id)
		}
		if err := a.Validate(id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}
		res.actions[id] = cloneAction(a)
	}
	return res, nil
}

// Lookup returns the action bound to an ID
func (c *Catalog) Lookup(id api.ActionID) (*api.ActionSpec, bool) {
	a, ok := c.actions[id]
	return a, ok
}

// Contains reports whether the action ID is recognized
func (c *Catalog) Contains(id api.ActionID) bool {
	_, ok := c.actions[id]
	return ok
}

// IDs returns every recognized action ID in sorted order
func (c *Catalog) IDs() []api.ActionID {
	return slices.Sorted(maps.Keys(c.actions))
}

// Providers returns the distinct provider names the catalog refers to
func (c *Catalog) Providers() []string {
	seen := map[string]struct{}{}
	for _, a := range c.actions {
		seen[a.Provider] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

func cloneAction(a *api.ActionSpec) *api.ActionSpec {
	res := *a
	res.Args = slices.Clone(a.Args)
	return &res
}
