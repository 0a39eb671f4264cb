package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

func newExportCmd(a *app) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export <bag>",
		Short: "Write a bag as a JSON or YAML archive",
		Long: `Export renders the bag as an archive that import reads back, to stdout or
to the file named by --output.

Example:
  propbag export settings
  propbag export settings --format yaml --output settings.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			f, err := archive.ParseFormat(format)
			if err != nil {
				return err
			}

			return a.withStore(cmd.Context(), func(s store.Store) error {
				bag, err := loadBag(cmd.Context(), s, name)
				if err != nil {
					return err
				}

				data, err := a.registry.Marshal(bag, f)
				if err != nil {
					return classify(fmt.Errorf("export %s: %w", name, err))
				}

				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return sysError(fmt.Errorf("write %s: %w", output, err))
				}
				a.logger.Debug("exported bag", zap.String("bag", name), zap.String("file", output))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(archive.FormatJSON), "archive format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <bag> <file>",
		Short: "Store an archive under a bag name",
		Long: `Import reads a JSON or YAML archive and stores it under the bag name,
replacing any bag of that name. The format follows the file extension unless
--format is given; "-" reads stdin.

Example:
  propbag import settings settings.yaml
  propbag export settings | propbag import settings-copy -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, file := args[0], args[1]
			ctx := cmd.Context()

			f, err := importFormat(format, file)
			if err != nil {
				return err
			}

			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			bag, err := a.registry.Unmarshal(data, f)
			if err != nil {
				return fmt.Errorf("import %s: %w", file, err)
			}

			return a.withStore(ctx, func(s store.Store) error {
				rev, err := s.Save(ctx, name, bag)
				if err != nil {
					return classify(fmt.Errorf("save %s: %w", name, err))
				}

				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"bag": name, "properties": bag.Size(), "revision": rev})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d properties into %s (revision %s)\n", bag.Size(), name, rev)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "archive format: json or yaml (default: from the file extension)")
	return cmd
}

// importFormat picks the archive format from the flag or the file extension,
// falling back to JSON.
func importFormat(flag, file string) (archive.Format, error) {
	if flag != "" {
		return archive.ParseFormat(flag)
	}

	ext := strings.TrimPrefix(filepath.Ext(file), ".")
	if f, err := archive.ParseFormat(ext); err == nil {
		return f, nil
	}
	return archive.FormatJSON, nil
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, sysError(fmt.Errorf("read stdin: %w", err))
		}
		return data, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		// a missing file is a usage mistake
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return nil, sysError(fmt.Errorf("read %s: %w", file, err))
	}
	return data, nil
}

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the value types that bags can store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := a.registry.Names()
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), names)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
