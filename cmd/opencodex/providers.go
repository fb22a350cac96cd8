package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/ce-data-e/opencodex/pkg/endpoint"
)

func runProviders(args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	fs := pflag.NewFlagSet("providers", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	registry, err := endpoint.NewRegistry(cfg)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tWIRE\tMODEL\tSTREAMING\tBASE URL")
	for _, name := range registry.Names() {
		ep, _ := registry.Get(name)
		c := ep.Config()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n", c.Name, c.Wire, c.Model, c.Streaming, c.BaseURL)
	}
	return tw.Flush()
}
