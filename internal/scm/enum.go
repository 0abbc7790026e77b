package scm

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// EnumServicesStatusW returns its records as a raw byte array: a run of
// ENUM_SERVICE_STATUSW structures whose name fields are offsets from the
// start of the buffer to NUL-terminated UTF-16LE strings.
const (
	enumEntrySize         = 36 // two 4-byte offsets + SERVICE_STATUS (7 DWORDs)
	displayNameOffsetPos  = 4
	maxReasonableServices = 64 * 1024
)

type enumEntry struct {
	name        string
	displayName string
}

func parseServiceEntries(buf []byte, count uint32) ([]enumEntry, error) {
	if count == 0 {
		return nil, nil
	}
	if count > maxReasonableServices {
		return nil, fmt.Errorf("service enumeration claims %d entries", count)
	}
	if uint32(len(buf)) < count*enumEntrySize {
		return nil, fmt.Errorf("service enumeration buffer truncated: %d bytes for %d entries", len(buf), count)
	}

	entries := make([]enumEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		rec := buf[i*enumEntrySize:]
		nameOff := binary.LittleEndian.Uint32(rec)
		displayOff := binary.LittleEndian.Uint32(rec[displayNameOffsetPos:])

		name, err := utf16StringAt(buf, nameOff)
		if err != nil {
			return nil, fmt.Errorf("entry %d service name: %w", i, err)
		}
		display, err := utf16StringAt(buf, displayOff)
		if err != nil {
			return nil, fmt.Errorf("entry %d display name: %w", i, err)
		}
		entries = append(entries, enumEntry{name: name, displayName: display})
	}
	return entries, nil
}

// utf16StringAt decodes the NUL-terminated UTF-16LE string starting at off.
func utf16StringAt(buf []byte, off uint32) (string, error) {
	if off == 0 {
		return "", nil
	}
	if uint32(len(buf)) < off || (uint32(len(buf))-off) < 2 {
		return "", fmt.Errorf("string offset 0x%x outside %d-byte buffer", off, len(buf))
	}

	var units []uint16
	for pos := off; pos+1 < uint32(len(buf)); pos += 2 {
		u := binary.LittleEndian.Uint16(buf[pos:])
		if u == 0 {
			return string(utf16.Decode(units)), nil
		}
		units = append(units, u)
	}
	return "", fmt.Errorf("unterminated string at offset 0x%x", off)
}
