package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/mesh-intelligence/propbag/pkg/propbag"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// recordOf returns the archive record of key in bag.
func recordOf(reg *archive.Registry, bag *propbag.Bag, key string) (archive.Record, error) {
	a, err := reg.Encode(bag)
	if err != nil {
		return archive.Record{}, err
	}

	idx := slices.IndexFunc(a.Entries, func(r archive.Record) bool { return r.Key == key })
	if idx < 0 {
		return archive.Record{}, fmt.Errorf("%w: %q", propbag.ErrKeyNotFound, key)
	}
	return a.Entries[idx], nil
}

// valueText renders a record value for plain output. Strings print without
// quotes, everything else as compact JSON.
func valueText(r archive.Record) string {
	if r.Type == "string" {
		var s string
		if err := json.Unmarshal(r.Value, &s); err == nil {
			return s
		}
	}
	return string(r.Value)
}

// writeRecords prints records as an aligned table.
func writeRecords(w io.Writer, records []archive.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tSTATE\tVALUE\tDOC")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Key, r.Type, r.State, valueText(r), r.Doc)
	}
	return tw.Flush()
}
