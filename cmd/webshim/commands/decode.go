package commands

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/webshim/internal/cli/output"
	"github.com/marmos91/webshim/pkg/webarg"
)

var decodeHex bool

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decode a web applet argument blob",
	Long: `Decode a raw web applet argument blob and print its header and entries.

The file holds the wire-format buffer a guest pushes to the web applet:
the fixed argument header followed by the TLV entry table. Use "-" to read
from stdin and --hex when the input is hex text instead of raw bytes.

Examples:
  # Decode a captured argument buffer
  webshim decode args.bin

  # Decode a hex dump from stdin
  xxd -p args.bin | webshim decode --hex -`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeHex, "hex", false, "Treat the input as hex text instead of raw bytes")
}

func runDecode(cmd *cobra.Command, args []string) error {
	blob, err := readBlob(args[0])
	if err != nil {
		return err
	}

	if decodeHex {
		cleaned := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, string(blob))
		blob, err = hex.DecodeString(cleaned)
		if err != nil {
			return fmt.Errorf("invalid hex input: %w", err)
		}
	}

	header, entries, err := webarg.Decode(blob)
	if err != nil {
		return err
	}

	if err := output.SimpleTable(os.Stdout, [][2]string{
		{"Shim kind", header.ShimKind.String()},
		{"Declared entries", fmt.Sprintf("%d", header.TotalEntries)},
		{"Decoded entries", fmt.Sprintf("%d", len(entries))},
	}); err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	types := make([]webarg.InputTLVType, 0, len(entries))
	for t := range entries {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	fmt.Println()
	table := output.NewTableData("TYPE", "SIZE", "VALUE")
	for _, t := range types {
		data := entries[t]
		table.AddRow(t.String(), fmt.Sprintf("%d", len(data)), renderEntry(t, data))
	}
	return output.PrintTable(os.Stdout, table)
}

func readBlob(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// renderEntry formats an entry payload for display based on its type:
// ids as hex, paths and URLs as strings, everything else as a hex dump.
func renderEntry(t webarg.InputTLVType, data []byte) string {
	switch t {
	case webarg.TLVDocumentKind:
		if len(data) == 4 {
			return webarg.DocumentKind(binary.LittleEndian.Uint32(data)).String()
		}
	case webarg.TLVApplicationID, webarg.TLVSystemDataID:
		if len(data) == 8 {
			return fmt.Sprintf("%016X", binary.LittleEndian.Uint64(data))
		}
	case webarg.TLVInitialURL, webarg.TLVCallbackURL, webarg.TLVCallbackableURL,
		webarg.TLVDocumentPath, webarg.TLVShareStartPage, webarg.TLVWhitelist:
		return strings.TrimRight(string(data), "\x00")
	}

	const maxDump = 24
	if len(data) > maxDump {
		return hex.EncodeToString(data[:maxDump]) + "..."
	}
	return hex.EncodeToString(data)
}
