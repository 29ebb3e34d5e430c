package models

// ArchiveFormat identifies how a downloaded exporter archive is packed.
type ArchiveFormat string

// Supported archive formats.
const (
	FormatZip   ArchiveFormat = "zip"
	FormatTarGz ArchiveFormat = "tar.gz"
	FormatTarXz ArchiveFormat = "tar.xz"
)

// BinaryDescriptor identifies where to fetch, how to verify and how to
// unpack the platform-specific exporter executable. One descriptor exists
// per platform/arch pair; all descriptors share one pinned version.
type BinaryDescriptor struct {
	Version    string
	Platform   string
	Arch       string
	URL        string
	SHA256     string
	Format     ArchiveFormat
	InnerPaths []string
}
