package fumo

import (
	"errors"
	"strings"
)

// FirmwareVersion holds the up to three components of a combined
// firmware version string, parsed positionally.
type FirmwareVersion struct {
	// Platform is the application-processor build.
	Platform string

	// CP is the modem (cellular-processor) build.
	CP string

	// CSC is the region-customization build.
	CSC string
}

// String renders the version in its combined slash-delimited form.
func (v FirmwareVersion) String() string {
	parts := []string{v.Platform}
	if v.CP != "" {
		parts = append(parts, v.CP)
	}
	if v.CSC != "" {
		parts = append(parts, v.CSC)
	}
	return strings.Join(parts, "/")
}

// ParseVersion parses a slash-delimited combined version string.
// Components are trimmed; anything beyond the third is ignored. An
// empty string is an error.
func ParseVersion(s string) (FirmwareVersion, error) {
	if strings.TrimSpace(s) == "" {
		return FirmwareVersion{}, errors.New("empty version string")
	}

	parts := strings.Split(s, "/")
	var v FirmwareVersion
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch i {
		case 0:
			v.Platform = p
		case 1:
			v.CP = p
		case 2:
			v.CSC = p
		}
	}
	return v, nil
}
