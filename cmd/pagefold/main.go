// Command pagefold inspects EPUB files: structural validation, navigation
// listing and chapter text extraction.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagefold/pagefold"
)

var opts struct {
	maxEntries    int
	maxTotalBytes int64
	maxEntryBytes int
	maxNavBytes   int
	maxCSSBytes   int
	chunkSize     int
	lazyNav       bool
}

func bookOptions() pagefold.Options {
	return pagefold.Options{
		ZipLimits: pagefold.ZipLimits{
			MaxTotalBytes: opts.maxTotalBytes,
			MaxEntries:    opts.maxEntries,
		},
		Memory: pagefold.MemoryBudget{
			MaxEntryBytes: opts.maxEntryBytes,
			MaxNavBytes:   opts.maxNavBytes,
			MaxCSSBytes:   opts.maxCSSBytes,
		},
		LazyNav:   opts.lazyNav,
		ChunkSize: opts.chunkSize,
	}
}

func openBook(path string) (*pagefold.Book, error) {
	return pagefold.OpenWithOptions(path, bookOptions())
}

func main() {
	root := &cobra.Command{
		Use:           "pagefold",
		Short:         "Inspect and extract text from EPUB files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.IntVar(&opts.maxEntries, "max-entries", 0, "archive entry count limit (0 = default)")
	pf.Int64Var(&opts.maxTotalBytes, "max-total-bytes", 0, "declared uncompressed total limit (0 = default)")
	pf.IntVar(&opts.maxEntryBytes, "max-entry-bytes", 0, "per-resource decompression cap (0 = default)")
	pf.IntVar(&opts.maxNavBytes, "max-nav-bytes", 0, "navigation read budget (0 = default)")
	pf.IntVar(&opts.maxCSSBytes, "max-css-bytes", 0, "stylesheet budget (0 = default)")
	pf.IntVar(&opts.chunkSize, "chunk-size", 0, "decompression chunk width (0 = default)")
	pf.BoolVar(&opts.lazyNav, "lazy-nav", false, "defer navigation resolution until first use")

	root.AddCommand(newValidateCmd(), newChaptersCmd(), newChapterTextCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pagefold: %v\n", err)
		os.Exit(1)
	}
}

func newValidateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check an EPUB for structural well-formedness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()

			anomalies, err := book.Validate(strict)
			for _, a := range anomalies {
				fmt.Fprintf(cmd.OutOrStdout(), "anomaly: %s\n", a)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d anomalies\n", len(anomalies))
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on recoverable anomalies")
	return cmd
}

func newChaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chapters <file>",
		Short: "List the navigation table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()

			chapters, err := book.Chapters()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "count=%d\n", len(chapters))
			for i, ch := range chapters {
				title := ch.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Fprintf(out, "%d\t%s\t%s\n", i, ch.Href, title)
			}
			return nil
		},
	}
}

func newChapterTextCmd() *cobra.Command {
	var index int
	var raw bool
	cmd := &cobra.Command{
		Use:   "chapter-text <file>",
		Short: "Emit one chapter's resolved text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()

			out := cmd.OutOrStdout()
			if raw {
				var buf bytes.Buffer
				if _, err := book.ReadChapterRaw(index, &buf); err != nil {
					return describeErr(err)
				}
				_, err = buf.WriteTo(out)
				return err
			}
			text, err := book.ChapterText(index)
			if err != nil {
				return describeErr(err)
			}
			fmt.Fprintln(out, text)
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "chapter index in reading order")
	cmd.Flags().BoolVar(&raw, "raw", false, "emit the chapter's raw markup bytes")
	return cmd
}

// describeErr augments budget breaches with the offending values so users
// can retry with a raised limit.
func describeErr(err error) error {
	var le *pagefold.LimitError
	if errors.As(err, &le) {
		return fmt.Errorf("%w (retry with a larger %s budget)", err, le.Kind)
	}
	return err
}
