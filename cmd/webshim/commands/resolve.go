package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/webshim/internal/cli/output"
	"github.com/marmos91/webshim/pkg/applet"
	"github.com/marmos91/webshim/pkg/config"
	"github.com/marmos91/webshim/pkg/content"
	"github.com/marmos91/webshim/pkg/webarg"
)

var (
	resolveKind  string
	resolveTitle string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <document-path>",
	Short: "Resolve an offline document into the extraction cache",
	Long: `Resolve an offline document the way an invocation would: locate the
registered archive, extract it into the cache if needed and print the
local path of the document.

The document kind selects where the archive comes from: "manual" reads the
running title's manual archive, "legal_information" an application's legal
archive and "system_data" a system data archive (synthesized when absent).

Examples:
  # Resolve a manual page for the configured title
  webshim resolve index.html

  # Resolve legal information for an explicit title
  webshim resolve --kind legal_information --title 0100AAAA00000000 legal.html

  # Resolve a system data page
  webshim resolve --kind system_data --title 0100000000001000 index.html`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveKind, "kind", "manual", "Document kind: manual, legal_information, system_data")
	resolveCmd.Flags().StringVar(&resolveTitle, "title", "", "Title id (16 hex digits, default: runtime.title_id)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	kind, err := parseDocumentKind(resolveKind)
	if err != nil {
		return err
	}

	env, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	title := env.title
	if resolveTitle != "" {
		v, err := strconv.ParseUint(resolveTitle, 16, 64)
		if err != nil {
			return fmt.Errorf("invalid title id %q: want hex digits", resolveTitle)
		}
		title = content.TitleID(v)
	}

	doc, err := env.resolver.Resolve(context.Background(), applet.DocumentRequest{
		Kind:  kind,
		Title: title,
		Path:  args[0],
	})
	if err != nil {
		return err
	}

	if !doc.Resolved {
		fmt.Printf("No archive registered for title %s (%s)\n", title, kind)
		return nil
	}

	return output.SimpleTable(os.Stdout, [][2]string{
		{"Title", title.String()},
		{"Kind", kind.String()},
		{"Source", doc.Source},
		{"Cache hit", strconv.FormatBool(doc.CacheHit)},
		{"Cache dir", doc.CacheDir},
		{"Document", doc.DocumentPath},
	})
}

func parseDocumentKind(s string) (webarg.DocumentKind, error) {
	switch s {
	case "manual":
		return webarg.DocumentOfflineHtmlPage, nil
	case "legal_information":
		return webarg.DocumentApplicationLegalInformation, nil
	case "system_data":
		return webarg.DocumentSystemDataPage, nil
	default:
		return 0, fmt.Errorf("unknown document kind %q, want manual, legal_information or system_data", s)
	}
}
