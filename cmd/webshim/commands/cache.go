package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/webshim/internal/bytesize"
	"github.com/marmos91/webshim/internal/cli/output"
	"github.com/marmos91/webshim/internal/cli/prompt"
	"github.com/marmos91/webshim/pkg/config"
)

var cacheClearForce bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the offline extraction cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show extracted document trees and their sizes",
	RunE:  runCacheStatus,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all extracted document trees",
	Long: `Remove all extracted document trees from the cache.

Cleared documents are re-extracted from their registered archives on the
next invocation that needs them.`,
	RunE: runCacheClear,
}

func init() {
	cacheClearCmd.Flags().BoolVarP(&cacheClearForce, "force", "f", false, "Skip confirmation prompt")
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	entries, total, err := collectCacheEntries(cfg.Cache.Root)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Printf("Cache at %s is empty\n", cfg.Cache.Root)
		return nil
	}

	table := output.NewTableData("KIND", "TITLE ID", "SIZE")
	for _, e := range entries {
		table.AddRow(e.kind, e.title, bytesize.ByteSize(e.bytes).String())
	}
	if err := output.PrintTable(os.Stdout, table); err != nil {
		return err
	}

	fmt.Printf("\nTotal: %s of %s (%d entries) at %s\n",
		bytesize.ByteSize(total).String(), cfg.Cache.MaxSize.String(), len(entries), cfg.Cache.Root)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	entries, total, err := collectCacheEntries(cfg.Cache.Root)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("Cache at %s is already empty\n", cfg.Cache.Root)
		return nil
	}

	label := fmt.Sprintf("Clear %d cached documents (%s) from %s?",
		len(entries), bytesize.ByteSize(total).String(), cfg.Cache.Root)
	ok, err := prompt.ConfirmWithForce(label, cacheClearForce)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted")
		return nil
	}

	children, err := os.ReadDir(cfg.Cache.Root)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := os.RemoveAll(filepath.Join(cfg.Cache.Root, child.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", child.Name(), err)
		}
	}

	fmt.Printf("Cleared %d entries from %s\n", len(entries), cfg.Cache.Root)
	return nil
}

type cacheListEntry struct {
	kind  string
	title string
	bytes int64
}

// collectCacheEntries walks the two-level cache layout: one directory per
// document kind, one title directory underneath.
func collectCacheEntries(root string) ([]cacheListEntry, int64, error) {
	kinds, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	var entries []cacheListEntry
	var total int64
	for _, kind := range kinds {
		if !kind.IsDir() {
			continue
		}
		titles, err := os.ReadDir(filepath.Join(root, kind.Name()))
		if err != nil {
			return nil, 0, err
		}
		for _, title := range titles {
			if !title.IsDir() {
				continue
			}
			size, err := treeSize(filepath.Join(root, kind.Name(), title.Name()))
			if err != nil {
				return nil, 0, err
			}
			entries = append(entries, cacheListEntry{
				kind:  kind.Name(),
				title: title.Name(),
				bytes: size,
			})
			total += size
		}
	}
	return entries, total, nil
}

func treeSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
