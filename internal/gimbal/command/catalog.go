// Package command names the identifiers a SIP-series gimbal understands,
// builds request frames for them and interprets the frames it sends back.
package command

import (
	"sort"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

// Identifiers understood by the gimbal.
const (
	PTZ frame.Identifier = "PTZ" // pan/tilt action
	GAC frame.Identifier = "GAC" // attitude, magnetic
	GIC frame.Identifier = "GIC" // attitude, gyro
	GAA frame.Identifier = "GAA" // attitude auto-send
	GSM frame.Identifier = "GSM" // yaw and pitch speed
	GSY frame.Identifier = "GSY" // yaw speed
	GAY frame.Identifier = "GAY" // yaw angle
	ZMC frame.Identifier = "ZMC" // zoom action
	ZOM frame.Identifier = "ZOM" // zoom position
	ZMP frame.Identifier = "ZMP" // zoom magnification
	FCC frame.Identifier = "FCC" // focus action
	FOC frame.Identifier = "FOC" // focus position
	IRC frame.Identifier = "IRC" // day/night
	REC frame.Identifier = "REC" // recording
	CAP frame.Identifier = "CAP" // still capture
	VID frame.Identifier = "VID" // video resolution
	BIT frame.Identifier = "BIT" // video bitrate
	PIP frame.Identifier = "PIP" // picture in picture
	SDC frame.Identifier = "SDC" // SD card space
	ROT frame.Identifier = "ROT" // image rotation
	VSN frame.Identifier = "VSN" // firmware version
	LOC frame.Identifier = "LOC" // tracking rectangle
	LRF frame.Identifier = "LRF" // laser range
)

// Definition describes one identifier.
type Definition struct {
	Identifier  frame.Identifier
	Description string
	Destination address.Role
	// Kind is the header kind requests are sent with.
	Kind frame.HeaderKind
	// Readable is set when the device answers a read request.
	Readable bool
}

var catalog = map[frame.Identifier]Definition{
	PTZ: {PTZ, "pan/tilt action", address.Gimbal, frame.Fixed, false},
	GAC: {GAC, "attitude (magnetic)", address.Gimbal, frame.Fixed, true},
	GIC: {GIC, "attitude (gyro)", address.Gimbal, frame.Fixed, true},
	GAA: {GAA, "attitude auto-send", address.Gimbal, frame.Fixed, true},
	GSM: {GSM, "yaw and pitch speed", address.Gimbal, frame.Variable, false},
	GSY: {GSY, "yaw speed", address.Gimbal, frame.Variable, false},
	GAY: {GAY, "yaw angle", address.Gimbal, frame.Variable, false},
	ZMC: {ZMC, "zoom action", address.Lens, frame.Fixed, false},
	ZOM: {ZOM, "zoom position", address.Lens, frame.Fixed, true},
	ZMP: {ZMP, "zoom magnification", address.Lens, frame.Fixed, true},
	FCC: {FCC, "focus action", address.Lens, frame.Fixed, false},
	FOC: {FOC, "focus position", address.Lens, frame.Fixed, true},
	IRC: {IRC, "day/night mode", address.Lens, frame.Fixed, true},
	REC: {REC, "recording", address.System, frame.Fixed, true},
	CAP: {CAP, "still capture", address.System, frame.Fixed, false},
	VID: {VID, "video resolution", address.System, frame.Fixed, true},
	BIT: {BIT, "video bitrate", address.System, frame.Fixed, true},
	PIP: {PIP, "picture in picture", address.System, frame.Fixed, true},
	SDC: {SDC, "SD card space", address.System, frame.Fixed, true},
	ROT: {ROT, "image rotation", address.System, frame.Fixed, true},
	VSN: {VSN, "firmware version", address.System, frame.Fixed, true},
	LOC: {LOC, "tracking rectangle", address.System, frame.Variable, false},
	LRF: {LRF, "laser range", address.System, frame.Variable, false},
}

// Lookup returns the definition for id.
func Lookup(id frame.Identifier) (Definition, bool) {
	d, ok := catalog[id]
	return d, ok
}

// All returns every definition sorted by identifier.
func All() []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}
