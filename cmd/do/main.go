package main

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/DuyAnh662/Fileshare/cmd/do/cmd"

	"github.com/spf13/cobra"
)

// Sources compiled into bin/do. migrate embeds internal/db and tiers prints
// the table from internal/model, so edits there also make the binary stale.
var watchedSources = []string{"cmd/do", "internal/db", "internal/model", "internal/config"}

func main() {
	if os.Getenv("DO_NO_REBUILD") == "" {
		rebuildIfStale()
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "do",
		Short: "Developer tasks for the fileshare upload gate",
		Long: `Developer tasks for the fileshare upload gate.

  dev       run the gate server under air, restarting on changes
  migrate   apply or roll back the tier, usage and completion tables
  tiers     check a tiers file before pointing TIERS_FILE at it

Database commands read DB_DRIVER and DB_CONNECTION from the environment
or a .env file. When run as bin/do the binary rebuilds itself if its
sources changed; set DO_NO_REBUILD=1 to skip that.`,
		SilenceUsage: true,
	}

	root.AddCommand(cmd.DevCmd())
	root.AddCommand(cmd.MigrateCmd())
	root.AddCommand(cmd.TiersCmd())

	return root
}

func rebuildIfStale() {
	exe, err := os.Executable()
	if err != nil || !strings.HasSuffix(exe, "bin/do") {
		return
	}

	info, err := os.Stat(exe)
	if err != nil {
		return
	}

	changed := newestSource(watchedSources)
	if !changed.After(info.ModTime()) {
		return
	}

	fmt.Fprintln(os.Stderr, "bin/do is older than its sources, rebuilding")
	build := exec.Command("go", "build", "-o", exe, "./cmd/do")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "rebuild failed, running the old binary:", err)
		return
	}

	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		fmt.Fprintln(os.Stderr, "re-exec failed:", err)
	}
}

// newestSource returns the latest modification time of the .go and .sql files
// under roots. Missing roots are skipped.
func newestSource(roots []string) time.Time {
	var newest time.Time
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			switch filepath.Ext(path) {
			case ".go", ".sql":
			default:
				return nil
			}
			info, err := d.Info()
			if err == nil && info.ModTime().After(newest) {
				newest = info.ModTime()
			}
			return nil
		})
	}
	return newest
}
