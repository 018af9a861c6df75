package auth

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"cassa/internal/core"
)

// Capability names a view a role may open.
type Capability string

const (
	CapDashboard     Capability = "dashboard"
	CapIncomeExpense Capability = "income-expense"
	CapApprovals     Capability = "approvals"
	CapIncome        Capability = "income"
	CapWallet        Capability = "wallet"
	CapCalendar      Capability = "calendar"
	CapSettings      Capability = "settings"
)

// AllCapabilities lists every known capability.
var AllCapabilities = []Capability{
	CapDashboard, CapIncomeExpense, CapApprovals, CapIncome, CapWallet, CapCalendar, CapSettings,
}

//go:embed capabilities.toml
var defaultCapabilities []byte

// Capabilities maps each role to the views it may open.
type Capabilities struct {
	roles map[core.Role][]Capability
}

type capabilityFile struct {
	Roles map[string]struct {
		Capabilities []string `toml:"capabilities"`
	} `toml:"roles"`
}

// DefaultCapabilities returns the embedded role map.
func DefaultCapabilities() Capabilities {
	caps, err := ParseCapabilities(defaultCapabilities)
	if err != nil {
		panic(fmt.Sprintf("embedded capabilities: %v", err))
	}
	return caps
}

// LoadCapabilities reads the role map from path, or the embedded default
// when path is empty.
func LoadCapabilities(path string) (Capabilities, error) {
	if path == "" {
		return DefaultCapabilities(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Capabilities{}, fmt.Errorf("read capabilities file: %w", err)
	}
	return ParseCapabilities(data)
}

// ParseCapabilities decodes a TOML role map. Unknown roles or capabilities
// are rejected.
func ParseCapabilities(data []byte) (Capabilities, error) {
	var f capabilityFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return Capabilities{}, fmt.Errorf("decode capabilities: %w", err)
	}

	caps := Capabilities{roles: make(map[core.Role][]Capability, len(f.Roles))}
	for name, entry := range f.Roles {
		role := core.Role(name)
		if !role.Valid() {
			return Capabilities{}, fmt.Errorf("capabilities: %w %q", core.ErrInvalidRole, name)
		}
		for _, c := range entry.Capabilities {
			capability := Capability(c)
			if !slices.Contains(AllCapabilities, capability) {
				return Capabilities{}, fmt.Errorf("capabilities: unknown capability %q for role %s", c, name)
			}
			if !slices.Contains(caps.roles[role], capability) {
				caps.roles[role] = append(caps.roles[role], capability)
			}
		}
	}
	return caps, nil
}

// Allows reports whether role may open capability.
func (c Capabilities) Allows(role core.Role, capability Capability) bool {
	return slices.Contains(c.roles[role], capability)
}

// For returns the capabilities of role in declaration order.
func (c Capabilities) For(role core.Role) []Capability {
	return slices.Clone(c.roles[role])
}
