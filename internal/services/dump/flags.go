package dump

// FlagCatalog is the fixed list of supported exporter options offered for
// selection, in the order they are passed to the exporter. Entries are
// referenced by id from Target.Flags.
var FlagCatalog = []string{
	"single-transaction",
	"quick",
	"skip-lock-tables",
	"no-tablespaces",
	"routines",
	"triggers",
	"events",
	"hex-blob",
	"compact",
	"no-create-info",
	"no-data",
}

// ResolveFlags turns selected catalog ids and free-form custom flags into
// the final argument list: catalog entries in catalog order with a leading
// "--", followed by custom flags verbatim. Unknown ids are ignored.
func ResolveFlags(selected, custom []string) []string {
	chosen := make(map[string]bool, len(selected))
	for _, id := range selected {
		chosen[id] = true
	}

	out := make([]string, 0, len(selected)+len(custom))
	for _, id := range FlagCatalog {
		if chosen[id] {
			out = append(out, "--"+id)
		}
	}
	out = append(out, custom...)
	return out
}
