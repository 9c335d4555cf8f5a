package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ansa/internal/core/services"
	"github.com/custodia-labs/ansa/internal/logger"
	"github.com/custodia-labs/ansa/internal/watcher"
)

var (
	indexWatch      bool
	indexExtensions []string
)

var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Ingest documents into the corpus",
	Long: `Splits each document into overlapping chunks, embeds them and stores
them in the corpus. Directories are walked recursively. Re-indexing a file
replaces its previous chunks.

With --watch, keeps running and re-ingests files as they change.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "watch paths and re-ingest on change")
	indexCmd.Flags().StringSliceVar(&indexExtensions, "ext", []string{"txt", "md"}, "file extensions to ingest")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	total := 0
	files := 0
	for _, path := range args {
		n, f, err := ingestPath(ctx, a.ingestor, path)
		if err != nil {
			return err
		}
		total += n
		files += f
	}
	cmd.Printf("Indexed %d file(s), %d chunk(s)\n", files, total)

	if !indexWatch {
		return nil
	}

	return watchPaths(cmd, a, args)
}

// ingestPath ingests a file, or every matching file under a directory.
func ingestPath(ctx context.Context, ingestor *services.Ingestor, path string) (chunks, files int, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		_, n, err := ingestor.IngestFile(ctx, path)
		if err != nil {
			return 0, 0, err
		}
		return n, 1, nil
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		if !matchesExtension(p) {
			return nil
		}
		_, n, err := ingestor.IngestFile(ctx, p)
		if err != nil {
			return err
		}
		chunks += n
		files++
		return nil
	})
	return chunks, files, err
}

// watchPaths blocks, re-ingesting changed files until interrupted.
func watchPaths(cmd *cobra.Command, a *app, paths []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			roots = append(roots, p)
		} else {
			roots = append(roots, filepath.Dir(p))
		}
	}

	w := watcher.New(roots, indexExtensions,
		func(path string) {
			if _, _, err := a.ingestor.IngestFile(ctx, path); err != nil {
				logger.Error("re-ingest %s: %v", path, err)
				return
			}
			cmd.Printf("Re-indexed %s\n", path)
		},
		func(path string) {
			id := services.DocumentIDForPath(path)
			if err := a.index.DeleteDocument(ctx, id); err != nil {
				logger.Error("remove %s from index: %v", path, err)
				return
			}
			if err := a.store.ChunkStore().DeleteDocument(ctx, id); err != nil {
				logger.Error("remove %s from store: %v", path, err)
			}
			cmd.Printf("Removed %s\n", path)
		})
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	cmd.Println("Watching for changes (ctrl-c to stop)...")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func matchesExtension(path string) bool {
	ext := filepath.Ext(path)
	if ext == "" {
		return false
	}
	ext = ext[1:]
	for _, e := range indexExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
