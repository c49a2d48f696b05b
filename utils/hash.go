package utils

import (
	"hash/crc32"
	"strings"
)

// BoneNameHash returns the id the game pipeline derives for a bone:
// CRC32 (IEEE) of the lower-cased name. Skeleton files store this hash
// next to every bone so tools can match bones across model revisions
// even when the bone order changes.
func BoneNameHash(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(strings.ToLower(name)))
}
