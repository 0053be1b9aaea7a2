// Package steamid converts the identity formats game servers emit into canonical SteamID64 strings.
package steamid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// individualBase is the SteamID64 of account id 0 in the public universe.
const individualBase uint64 = 76561197960265728

var (
	// ErrInvalid is returned for input that is not a recognizable Steam identity.
	ErrInvalid = errors.New("invalid steam id")

	legacyRe = regexp.MustCompile(`^STEAM_([0-5]):([01]):(\d+)$`)
	steam3Re = regexp.MustCompile(`^\[?U:1:(\d+)\]?$`)
)

// Normalize accepts STEAM_X:Y:Z, [U:1:N], a bare account id or a SteamID64 and
// returns the SteamID64 as a decimal string.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalid
	}

	if m := legacyRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.ParseUint(m[2], 10, 64)
		z, err := strconv.ParseUint(m[3], 10, 32)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
		}
		return strconv.FormatUint(individualBase+z*2+y, 10), nil
	}

	if m := steam3Re.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
		}
		return strconv.FormatUint(individualBase+n, 10), nil
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
	}
	if n < individualBase {
		if n > 0xFFFFFFFF {
			return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
		}
		return strconv.FormatUint(individualBase+n, 10), nil
	}
	return strconv.FormatUint(n, 10), nil
}

// IsBot reports whether a log identity belongs to a server-side bot.
func IsBot(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "BOT")
}
