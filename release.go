// Package corestrap contains the distribution and architecture
// enumerations and the download URL derivation for ubuntu-core root
// filesystem images.
package corestrap

import "fmt"

// Distributions contains one entry for each supported distribution
// codename.
var Distributions = map[string]bool{
	"oneiric": true,
	"precise": true,
}

// Architectures contains one entry for each supported architecture
// identifier.
var Architectures = map[string]bool{
	"armel": true,
	"armhf": true,
}

const (
	releaseBaseURL = "http://cdimage.ubuntu.com/ubuntu-core/releases"
	dailyBaseURL   = "http://cdimage.ubuntu.com/ubuntu-core/daily"

	// defaultVersion is the release version of every distribution that
	// is not special-cased in ReleaseVersion.
	defaultVersion = "12.04.1"
)

// ReleaseVersion returns the release version string for dist,
// e.g. oneiric → 11.10.
func ReleaseVersion(dist string) string {
	if dist == "oneiric" {
		return "11.10"
	}
	return defaultVersion
}

// ImageReference identifies one downloadable root filesystem image.
type ImageReference struct {
	URL      string
	Filename string
}

// ReleaseImage returns the stable release image for dist on arch. It is
// the first candidate to try.
func ReleaseImage(dist, arch string) ImageReference {
	version := ReleaseVersion(dist)
	fn := fmt.Sprintf("ubuntu-core-%s-core-%s.tar.gz", version, arch)
	return ImageReference{
		URL:      releaseBaseURL + "/" + version + "/release/" + fn,
		Filename: fn,
	}
}

// DailyImage returns the rolling daily build image for dist on arch. It
// is tried only after the release image turned out to be unavailable.
func DailyImage(dist, arch string) ImageReference {
	fn := fmt.Sprintf("%s-core-%s.tar.gz", dist, arch)
	return ImageReference{
		URL:      dailyBaseURL + "/current/" + fn,
		Filename: fn,
	}
}
