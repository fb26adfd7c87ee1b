// Package device models compute devices discovered by the Compiler Gateway
// and gives them a stable, reproducible identity.
package device

import (
	"hash/crc32"
	"strconv"
)

// Device is a compute device discovered through the Compiler Gateway.
//
// ID is a CRC-32 fingerprint over the device's driver-reported identity
// strings (see Fingerprint), stable across runs on the same hardware/driver
// combination. PowerIndex is a coarse capability score used to rank devices
// when no explicit selection is requested. Handle is the gateway's opaque
// native handle (e.g. a cl_device_id) and is never inspected by this
// package.
type Device struct {
	ID          uint32
	Description string
	PowerIndex  uint64
	Handle      any
}

// Identity is the set of driver-reported strings that determine a device's
// fingerprint. All fields come straight off the driver; order matters, see
// Fingerprint.
type Identity struct {
	Name          string
	Type          uint64
	Version       string
	Vendor        string
	VendorID      uint32
	DriverVersion string
}

// Fingerprint computes the CRC-32 (IEEE) checksum over the concatenation of
// the device's identity strings, in the same field order the original
// server used (name, type, version, vendor, vendor id, driver version). The
// concatenation order is part of the on-wire contract with existing
// editor-side device pinning (identifier in DiagnosticsConfig), so it must
// not change.
func Fingerprint(id Identity) uint32 {
	buf := id.Name +
		strconv.FormatUint(id.Type, 10) +
		id.Version +
		id.Vendor +
		strconv.FormatUint(uint64(id.VendorID), 10) +
		id.DriverVersion
	return crc32.ChecksumIEEE([]byte(buf))
}

// PowerIndex is the coarse device-capability score used to auto-rank
// devices: max compute units times max clock frequency (MHz).
func PowerIndex(maxComputeUnits, maxClockFrequencyMHz uint32) uint64 {
	return uint64(maxComputeUnits) * uint64(maxClockFrequencyMHz)
}
