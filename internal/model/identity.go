package model

import (
	"fmt"
	"strconv"
	"strings"
)

// PlatformCode identifies the platform an account originates from
type PlatformCode uint16

const (
	PlatformUnknown PlatformCode = iota
	PlatformSTM                  // Steam
	PlatformPSN                  // PlayStation Network
	PlatformXBX                  // Xbox Live
	PlatformOVRORG               // Oculus organization-scoped id
	PlatformOVR                  // Oculus
	PlatformBOT                  // Bot accounts
	PlatformDMO                  // Demo accounts
	PlatformTEN                  // Tencent
)

var platformNames = map[PlatformCode]string{
	PlatformSTM:    "STM",
	PlatformPSN:    "PSN",
	PlatformXBX:    "XBX",
	PlatformOVRORG: "OVR-ORG",
	PlatformOVR:    "OVR",
	PlatformBOT:    "BOT",
	PlatformDMO:    "DMO",
	PlatformTEN:    "TEN",
}

var platformsByName = func() map[string]PlatformCode {
	m := make(map[string]PlatformCode, len(platformNames))
	for code, name := range platformNames {
		m[name] = code
	}
	return m
}()

// String returns the canonical platform prefix
func (p PlatformCode) String() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return "UNK"
}

// XPlatformID is a cross-platform player identifier: a platform code qualifying a
// numeric account id. It is comparable and used as a map key.
type XPlatformID struct {
	Platform  PlatformCode
	AccountID uint64
}

// ParseXPlatformID parses the canonical "<PLATFORM>-<accountId>" form, e.g. "OVR-ORG-123".
// The platform prefix is matched case-insensitively.
func ParseXPlatformID(s string) (XPlatformID, error) {
	s = strings.TrimSpace(s)
	sep := strings.LastIndexByte(s, '-')
	if sep <= 0 || sep == len(s)-1 {
		return XPlatformID{}, fmt.Errorf("%w: %q", ErrMalformedIdentity, s)
	}

	platform, ok := platformsByName[strings.ToUpper(s[:sep])]
	if !ok {
		return XPlatformID{}, fmt.Errorf("%w: unknown platform in %q", ErrMalformedIdentity, s)
	}

	// ParseUint rejects sign prefixes
	accountID, err := strconv.ParseUint(s[sep+1:], 10, 64)
	if err != nil {
		return XPlatformID{}, fmt.Errorf("%w: bad account id in %q", ErrMalformedIdentity, s)
	}

	return XPlatformID{Platform: platform, AccountID: accountID}, nil
}

// String returns the canonical form
func (id XPlatformID) String() string {
	return id.Platform.String() + "-" + strconv.FormatUint(id.AccountID, 10)
}

// IsValid reports whether the platform is known
func (id XPlatformID) IsValid() bool {
	_, ok := platformNames[id.Platform]
	return ok
}

// MarshalText implements encoding.TextMarshaler
func (id XPlatformID) MarshalText() ([]byte, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("%w: platform %d", ErrMalformedIdentity, id.Platform)
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *XPlatformID) UnmarshalText(text []byte) error {
	parsed, err := ParseXPlatformID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
