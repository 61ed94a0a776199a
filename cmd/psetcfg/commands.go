package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lixenwraith/pset"
	"github.com/lixenwraith/pset/hcalsim"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const formatCfg = "cfg"

func newDumpCmd(a *app) *cobra.Command {
	var (
		name   string
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "dump [file.hcl]",
		Short: "Print a producer or parameter set, built-in configuration by default.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(fileArg(args))
			if err != nil {
				return err
			}

			if format == "" {
				format = a.settings.Output.Format
			}

			if name == "" && format == formatCfg && out == "" {
				return dumpAll(cmd.OutOrStdout(), reg)
			}

			ps, err := selectSet(reg, name)
			if err != nil {
				return err
			}

			if out != "" {
				if err := pset.SaveFile(out, ps); err != nil {
					return err
				}
				a.logger.Info("Wrote parameter set", zap.String("file", out), zap.String("id", ps.ID()))
				return nil
			}
			return writeSet(cmd.OutOrStdout(), ps, format)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "producer label or parameter set name")
	cmd.Flags().StringVarP(&format, "format", "f", "", "cfg, toml, json or yaml (default from output.format)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead, format chosen by extension")
	return cmd
}

// selectSet finds name among producers, then parameter sets. An empty name
// selects the only producer.
func selectSet(reg *pset.Registry, name string) (*pset.ParameterSet, error) {
	if name == "" {
		producers := reg.Producers()
		if len(producers) != 1 {
			return nil, fmt.Errorf("configuration declares %d producers, select one with --name", len(producers))
		}
		return producers[0].Params(), nil
	}

	if p, err := reg.Producer(name); err == nil {
		return p.Params(), nil
	}
	ps, err := reg.PSet(name)
	if err != nil {
		return nil, fmt.Errorf("no producer or parameter set named %s: %w", name, err)
	}
	return ps, nil
}

func writeSet(w io.Writer, ps *pset.ParameterSet, format string) error {
	if format == formatCfg {
		_, err := fmt.Fprintln(w, ps.Pretty())
		return err
	}
	f, err := pset.ParseFormat(format)
	if err != nil {
		return err
	}
	return pset.Encode(w, ps, f)
}

func dumpAll(w io.Writer, reg *pset.Registry) error {
	for _, name := range reg.PSetNames() {
		ps, err := reg.PSet(name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "pset %s = %s\n\n", name, ps.Pretty()); err != nil {
			return err
		}
	}
	for _, p := range reg.Producers() {
		if _, err := fmt.Fprintf(w, "producer %s = %s %s\n\n", p.Label(), p.Type(), p.Params().Pretty()); err != nil {
			return err
		}
	}
	return nil
}

func newIDCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "id [file.hcl]",
		Short: "Print the identity hash of every producer and parameter set.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(fileArg(args))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, name := range reg.PSetNames() {
				ps, err := reg.PSet(name)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "pset\t%s\t%s\n", name, ps.ID()); err != nil {
					return err
				}
			}
			for _, p := range reg.Producers() {
				if _, err := fmt.Fprintf(w, "producer\t%s\t%s\n", p.Label(), p.ID()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// productLister is implemented by modules that declare their data products.
type productLister interface {
	Products() []hcalsim.Product
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [file.hcl]",
		Short: "Configure every producer through its registered module type.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(fileArg(args))
			if err != nil {
				return err
			}

			catalog := pset.NewCatalog()
			if err := hcalsim.Register(catalog, a.logger); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			var errs []error
			for _, p := range reg.Producers() {
				m, err := catalog.Make(p)
				if err != nil {
					errs = append(errs, err)
					fmt.Fprintf(w, "FAIL\t%s\t%s\n", p.Label(), p.Type())
					continue
				}

				line := fmt.Sprintf("ok\t%s\t%s", m.Label(), p.Type())
				if pl, ok := m.(productLister); ok {
					products := make([]string, 0)
					for _, product := range pl.Products() {
						products = append(products, product.String())
					}
					line += "\t" + strings.Join(products, ",")
				}
				fmt.Fprintln(w, line)
			}
			return errors.Join(errs...)
		},
	}
}

func newBuiltinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "builtin",
		Short: "Print the built-in configuration source.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(hcalsim.Source)
			return err
		},
	}
}
