package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/pkg/propbag"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [bag]",
		Short: "List stored bags, or the properties of one bag",
		Long: `Without arguments list prints the names of the stored bags. Given a bag
name it prints every property with its type, state, value and description.

Example:
  propbag list
  propbag list settings
  propbag list settings --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s store.Store) error {
				if len(args) == 0 {
					return a.listBags(cmd, s)
				}
				return a.listProperties(cmd, s, args[0])
			})
		},
	}
}

func (a *app) listBags(cmd *cobra.Command, s store.Store) error {
	ctx := cmd.Context()

	names, err := s.List(ctx)
	if err != nil {
		return classify(fmt.Errorf("list bags: %w", err))
	}

	if !a.flags.jsonMode {
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	infos := make([]store.Info, 0, len(names))
	for _, name := range names {
		info, err := s.Stat(ctx, name)
		if errors.Is(err, store.ErrBagNotFound) {
			// deleted since List
			continue
		}
		if err != nil {
			return classify(fmt.Errorf("stat %s: %w", name, err))
		}
		infos = append(infos, info)
	}
	return writeJSON(cmd.OutOrStdout(), infos)
}

func (a *app) listProperties(cmd *cobra.Command, s store.Store, name string) error {
	bag, err := loadBag(cmd.Context(), s, name)
	if err != nil {
		return err
	}

	archived, err := a.registry.Encode(bag)
	if err != nil {
		return classify(err)
	}

	if a.flags.jsonMode {
		return writeJSON(cmd.OutOrStdout(), archived)
	}
	return writeRecords(cmd.OutOrStdout(), archived.Entries)
}

func newGetCmd(a *app) *cobra.Command {
	var retrieval string

	cmd := &cobra.Command{
		Use:   "get <bag> <key>",
		Short: "Print the value of one property",
		Long: `Get prints the value stored under key. Under the quiet retrieval policy a
missing key exits with status 1 and prints nothing; under throw it also
reports the keys the bag holds. The policy stored with the bag applies unless
--retrieval is given.

Example:
  propbag get settings timeout
  propbag get settings timeout --retrieval throw`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, key := args[0], args[1]

			return a.withStore(cmd.Context(), func(s store.Store) error {
				bag, err := loadBag(cmd.Context(), s, name)
				if err != nil {
					return err
				}

				if retrieval != "" {
					policy, err := propbag.ParseRetrievalPolicy(retrieval)
					if err != nil {
						return err
					}
					bag.SetRetrievalPolicy(policy)
				}

				p, err := bag.FindProperty(key)
				if err != nil {
					return fmt.Errorf("bag %s: %w", name, err)
				}
				if p == nil {
					return &silentError{code: exitUserError}
				}

				rec, err := recordOf(a.registry, bag, key)
				if err != nil {
					return classify(err)
				}

				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), rec)
				}
				fmt.Fprintln(cmd.OutOrStdout(), valueText(rec))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&retrieval, "retrieval", "", "override the bag's retrieval policy: quiet or throw")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	var typeName, doc string

	cmd := &cobra.Command{
		Use:   "set <bag> <key> <value>",
		Short: "Create or update a property",
		Long: `Set stores value under key, creating the bag if needed. A new key takes
its type from --type (default string); an existing key keeps its type and
rejects values of another type. Values of non-string types are JSON text.

Example:
  propbag set settings name alice
  propbag set settings timeout 30 --type int --doc "request timeout in seconds"
  propbag set settings tags '["a","b"]' --type '[]string'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, key, raw := args[0], args[1], args[2]
			ctx := cmd.Context()

			return a.withStore(ctx, func(s store.Store) error {
				bag, err := a.loadOrCreateBag(ctx, s, name)
				if err != nil {
					return err
				}

				var existing *propbag.Property
				if bag.Exists(key) {
					existing = bag.GetProperty(key)
				}

				kind := typeName
				if kind == "" {
					kind = "string"
					if existing != nil {
						kind = a.registry.NameOf(existing.Type())
					}
				}

				value, err := a.parseValue(kind, raw)
				if err != nil {
					return err
				}

				if existing == nil {
					bag.AddProperty(key, value, doc)
				} else {
					if err := existing.Set(value); err != nil {
						return fmt.Errorf("property '%s': %w", key, err)
					}
					if cmd.Flags().Changed("doc") {
						existing.SetDescription(doc)
					}
				}

				rev, err := s.Save(ctx, name, bag)
				if err != nil {
					return classify(fmt.Errorf("save %s: %w", name, err))
				}
				a.logger.Debug("saved bag", zap.String("bag", name), zap.String("key", key), zap.String("revision", rev))

				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"bag": name, "key": key, "revision": rev})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s/%s (revision %s)\n", name, key, rev)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "registered type name of a new key, see 'propbag types'")
	cmd.Flags().StringVar(&doc, "doc", "", "description of the property")
	return cmd
}

// parseValue converts command line text to a value of the registered type
// kind. Strings are taken literally.
func (a *app) parseValue(kind, raw string) (any, error) {
	if kind == "string" {
		return raw, nil
	}
	return a.registry.ParseValue(kind, []byte(raw))
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <bag> [key]",
		Short: "Delete a bag, or one property of a bag",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := cmd.Context()

			return a.withStore(ctx, func(s store.Store) error {
				if len(args) == 1 {
					existed, err := s.Delete(ctx, name)
					if err != nil {
						return classify(fmt.Errorf("delete %s: %w", name, err))
					}
					if !existed {
						return fmt.Errorf("%w: %s", store.ErrBagNotFound, name)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
					return nil
				}

				key := args[1]
				bag, err := loadBag(ctx, s, name)
				if err != nil {
					return err
				}

				if !bag.RemoveProperty(key) {
					// report the missing key with the keys that do exist
					bag.SetRetrievalPolicy(propbag.RetrievalThrow)
					_, err := bag.FindProperty(key)
					return fmt.Errorf("bag %s: %w", name, err)
				}

				if _, err := s.Save(ctx, name, bag); err != nil {
					return classify(fmt.Errorf("save %s: %w", name, err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s\n", name, key)
				return nil
			})
		},
	}
}

// loadBag loads name, marking store failures as system errors.
func loadBag(ctx context.Context, s store.Store, name string) (*propbag.Bag, error) {
	bag, err := s.Load(ctx, name)
	if err != nil {
		return nil, classify(fmt.Errorf("load %s: %w", name, err))
	}
	return bag, nil
}

// loadOrCreateBag loads name, or returns a new empty bag with the configured
// retrieval policy.
func (a *app) loadOrCreateBag(ctx context.Context, s store.Store, name string) (*propbag.Bag, error) {
	bag, err := s.Load(ctx, name)
	if err == nil {
		return bag, nil
	}
	if !errors.Is(err, store.ErrBagNotFound) {
		return nil, classify(fmt.Errorf("load %s: %w", name, err))
	}

	policy, err := a.retrieval()
	if err != nil {
		return nil, err
	}
	bag = &propbag.Bag{}
	bag.SetRetrievalPolicy(policy)
	return bag, nil
}
