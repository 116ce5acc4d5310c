package flagsmith

import (
	"fmt"
	"runtime/debug"

	"github.com/blang/semver/v4"
)

const (
	sdkName        = "flagsmith-mobile-go-sdk"
	unknownVersion = "unknown"
)

// getUserAgent returns the User-Agent header value in the format "flagsmith-mobile-go-sdk/<version>".
// If the version cannot be determined (e.g., during development), it returns "flagsmith-mobile-go-sdk/unknown".
func getUserAgent() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s/%s", sdkName, unknownVersion)
	}
	return fmt.Sprintf("%s/%s", sdkName, normalizeVersion(info.Main.Version))
}

// normalizeVersion returns version as "v<semver>", or "unknown" when it is
// empty, "(devel)" or not a semantic version.
func normalizeVersion(version string) string {
	if version == "" || version == "(devel)" {
		return unknownVersion
	}
	v, err := semver.ParseTolerant(version)
	if err != nil {
		return unknownVersion
	}
	return "v" + v.String()
}
