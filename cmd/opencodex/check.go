package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/ce-data-e/opencodex/pkg/security"
)

func runCheck(args []string, stdout, stderr io.Writer) error {
	var (
		common    commonFlags
		deny      []string
		forbidden []string
	)
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	common.add(fs)
	fs.StringArrayVar(&deny, "deny", nil, "additional deny pattern (repeatable)")
	fs.StringArrayVar(&forbidden, "forbidden", nil, "additional forbidden pattern (repeatable)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	argv := fs.Args()
	if len(argv) == 0 {
		return errors.New("a command to check is required (use -- before it)")
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	policy := security.NewPolicy(
		append(append([]string(nil), cfg.Security.Deny...), deny...),
		append(append([]string(nil), cfg.Security.Forbidden...), forbidden...),
	)

	res := security.Check(argv, policy)
	switch res.Decision {
	case security.Forbidden:
		fmt.Fprintf(stdout, "forbidden (matched %q)\n", res.MatchedPattern)
		return &exitError{code: exitForbidden}
	case security.RequiresApproval:
		fmt.Fprintf(stdout, "requires approval (matched %q)\n", res.MatchedPattern)
		return &exitError{code: exitRequiresApproval}
	default:
		fmt.Fprintln(stdout, "allowed")
		return nil
	}
}
