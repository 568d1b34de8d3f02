// Package address maps the logical roles on a SIP gimbal bus to the single
// character codes carried in the source and destination slots of a frame.
package address

import (
	"fmt"
	"strings"
)

// Role identifies a logical endpoint on the gimbal bus.
type Role uint8

const (
	Unknown Role = iota
	// Network is a host talking to the gimbal over UDP.
	Network
	// Gimbal is the pan/tilt/roll controller.
	Gimbal
	// Lens is the zoom and focus controller.
	Lens
	// System is the system and image processor (recording, tracking, OSD).
	System
	// Auxiliary is auxiliary equipment such as a laser rangefinder.
	Auxiliary
	// Serial is a host talking to the gimbal over its UART.
	Serial
)

var roleCodes = [...]byte{
	Network:   'P',
	Gimbal:    'G',
	Lens:      'M',
	System:    'D',
	Auxiliary: 'E',
	Serial:    'U',
}

var roleNames = [...]string{
	Unknown:   "unknown",
	Network:   "network",
	Gimbal:    "gimbal",
	Lens:      "lens",
	System:    "system",
	Auxiliary: "auxiliary",
	Serial:    "serial",
}

// codeRoles is the reverse of roleCodes, indexed by wire byte.
var codeRoles [256]Role

func init() {
	for r, c := range roleCodes {
		if c != 0 {
			codeRoles[c] = Role(r)
		}
	}
}

// Roles returns every known role in declaration order.
func Roles() []Role {
	return []Role{Network, Gimbal, Lens, System, Auxiliary, Serial}
}

// Code returns the wire code for r, or 0 when r is not a known role.
func (r Role) Code() byte {
	if int(r) >= len(roleCodes) {
		return 0
	}
	return roleCodes[r]
}

// Valid reports whether r has a wire code.
func (r Role) Valid() bool { return r.Code() != 0 }

func (r Role) String() string {
	if int(r) >= len(roleNames) {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return roleNames[r]
}

// Lookup returns the role for a wire code.
func Lookup(code byte) (Role, bool) {
	r := codeRoles[code]
	return r, r != Unknown
}

// Parse accepts either a role name ("gimbal") or its single character code ("G").
func Parse(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if len(s) == 1 {
		if r, ok := Lookup(s[0]); ok {
			return r, nil
		}
		if r, ok := Lookup(strings.ToUpper(s)[0]); ok {
			return r, nil
		}
	}
	for _, r := range Roles() {
		if strings.EqualFold(s, r.String()) {
			return r, nil
		}
	}
	return Unknown, fmt.Errorf("unknown address role %q", s)
}

// MarshalText implements encoding.TextMarshaler so roles read naturally in
// JSON configuration and admin responses.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Swapped reports whether (src, dst) is the exact reverse of (reqSrc, reqDst),
// which is how a device addresses its reply.
func Swapped(reqSrc, reqDst, src, dst Role) bool {
	return src == reqDst && dst == reqSrc
}
