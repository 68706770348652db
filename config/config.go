// Package config holds the deployment-specific values of the bootloader
// core: the ones that differ between boards and firmware fleets, without
// being compiled-in literals scattered across the handler packages.
// Follows the teacher's embedded-override-file pattern: every tunable has
// a coded default, optionally replaced by the contents of a small text
// file baked in at build time.
package config

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/openenterprise/smpboot/flash"
	"github.com/openenterprise/smpboot/manifest"
)

// Defaults for operational configuration. These can be overridden by
// placing a non-empty value in the corresponding .text file.
const (
	DefaultNumImages          = 1
	DefaultUDPPort            = 1337
	DefaultUDPBindAddr        = "0.0.0.0"
	DefaultMaxDatagramSize    = 2048
	DefaultMaxResponsePayload = 1024
	DefaultScratchBufSize     = 2048
	DefaultLinkUpRetries      = 5
	DefaultHashAlgorithm      = manifest.SHA256
)

// Fixed geometry of the reference two-partition flash layout this module
// ships with, grounded in the teacher's RP2350 partition table
// (bootloader + two ~1984KB A/B partitions). A board with a different
// layout supplies its own []flash.AreaConfig instead of calling
// DefaultAreaTable.
const (
	bootloaderOffset = 0x2000
	partitionSize    = 0x1F0000
	primaryOffset    = 0x2000
	scratchSize      = 0x20000
)

// Overridable, deployment-specific values.
var (
	//go:embed num_images.text
	numImagesOverride string

	//go:embed udp_port.text
	udpPortOverride string

	//go:embed udp_bind_addr.text
	udpBindAddrOverride string

	//go:embed hash_algorithm.text
	hashAlgorithmOverride string

	//go:embed scratch_buf_size.text
	scratchBufSizeOverride string

	//go:embed link_up_retries.text
	linkUpRetriesOverride string
)

// NumImages returns the number of images the bootloader manages.
func NumImages() int {
	if n, ok := parseIntOverride(numImagesOverride); ok {
		return n
	}
	return DefaultNumImages
}

// UDPPort returns the port the dispatch loop binds to.
func UDPPort() int {
	if n, ok := parseIntOverride(udpPortOverride); ok {
		return n
	}
	return DefaultUDPPort
}

// UDPBindAddr returns the address the dispatch loop binds to.
func UDPBindAddr() string {
	if v := strings.TrimSpace(udpBindAddrOverride); v != "" {
		return v
	}
	return DefaultUDPBindAddr
}

// HashAlgorithm returns the configured image-identity hash algorithm.
func HashAlgorithm() manifest.HashAlgorithm {
	switch strings.ToLower(strings.TrimSpace(hashAlgorithmOverride)) {
	case "sha256":
		return manifest.SHA256
	case "sha384":
		return manifest.SHA384
	case "sha512":
		return manifest.SHA512
	default:
		return DefaultHashAlgorithm
	}
}

// ScratchBufSize returns the CBOR scratch/transfer buffer size reported
// to the peer via params' "buf_size".
func ScratchBufSize() int {
	if n, ok := parseIntOverride(scratchBufSizeOverride); ok {
		return n
	}
	return DefaultScratchBufSize
}

// LinkUpRetries returns the network link-up retry count. Not used inside
// this module; passed through for the embedding application's network
// bring-up sequence.
func LinkUpRetries() int {
	if n, ok := parseIntOverride(linkUpRetriesOverride); ok {
		return n
	}
	return DefaultLinkUpRetries
}

func parseIntOverride(raw string) (int, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DefaultAreaTable builds the reference board's flash-area table: one
// bootloader area, a primary/secondary pair per image, and a shared
// scratch area, all on device 0. Boards with their own layout construct
// their own []flash.AreaConfig directly instead.
func DefaultAreaTable(numImages int) []flash.AreaConfig {
	areas := make([]flash.AreaConfig, 0, 2+2*numImages)
	areas = append(areas, flash.AreaConfig{ID: flash.AreaBootloader, DeviceID: 0, BaseOffset: 0, Size: bootloaderOffset})

	offset := uint32(primaryOffset)
	for i := 0; i < numImages; i++ {
		areas = append(areas, flash.AreaConfig{ID: flash.PrimaryID(i), DeviceID: 0, BaseOffset: offset, Size: partitionSize})
		offset += partitionSize
		areas = append(areas, flash.AreaConfig{ID: flash.SecondaryID(i), DeviceID: 0, BaseOffset: offset, Size: partitionSize})
		offset += partitionSize
	}

	areas = append(areas, flash.AreaConfig{ID: flash.AreaScratch, DeviceID: 0, BaseOffset: offset, Size: scratchSize})
	return areas
}

// Summary renders the resolved configuration as a human-readable string.
func Summary() string {
	return fmt.Sprintf("images=%d udp=%s:%d hash=%d buf_size=%d",
		NumImages(), UDPBindAddr(), UDPPort(), HashAlgorithm(), ScratchBufSize())
}
