package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"pkt.systems/fcrepo/api"
)

type opFlags struct {
	uri        string
	prefer     string
	accept     string
	transacted bool
	noCache    bool
	input      string
	output     string
}

func (f *opFlags) register(cmd *cobra.Command, entity bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.uri, "uri", "", "absolute resource URI (overrides base URL and identifier)")
	flags.BoolVar(&f.transacted, "transacted", false, "run the request inside a repository transaction")
	flags.BoolVar(&f.noCache, "no-cache", false, "stream the response instead of caching it")
	flags.StringVarP(&f.output, "output", "o", "-", "write the response body to a file (- for stdout)")
	if entity {
		flags.StringVarP(&f.input, "body", "f", "", "read the request entity from a file (- for stdin, default no entity)")
	} else {
		flags.StringVar(&f.prefer, "prefer", "", "verbatim Prefer header value")
		flags.StringVar(&f.accept, "accept", "", "Accept value for this request")
	}
}

func (f *opFlags) request(method, identifier string) (api.Request, error) {
	req := api.Request{
		Method:             method,
		Identifier:         identifier,
		URI:                f.uri,
		Prefer:             f.prefer,
		Accept:             f.accept,
		Transacted:         f.transacted,
		DisableStreamCache: f.noCache,
	}
	if f.input != "" {
		body, err := openInput(f.input)
		if err != nil {
			return api.Request{}, err
		}
		req.Body = body
	}
	return req, nil
}

func openInput(path string) (io.Reader, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func runOp(cmd *cobra.Command, cfg *cliConfig, f *opFlags, method, identifier string) error {
	cli, err := cfg.client()
	if err != nil {
		return err
	}
	req, err := f.request(method, identifier)
	if err != nil {
		return err
	}
	if closer, ok := req.Body.(io.Closer); ok && req.Body != os.Stdin {
		defer closer.Close()
	}
	ctx := commandContext(cmd)
	resp, err := cli.Process(ctx, req)
	if err != nil {
		return err
	}
	if resp == nil {
		// Suppressed transport failure.
		return writeSummary(map[string]any{"suppressed": true})
	}
	defer resp.Close()
	if resp.Body != nil {
		out := io.Writer(os.Stdout)
		if f.output != "" && f.output != "-" {
			fh, err := os.Create(f.output)
			if err != nil {
				return err
			}
			defer fh.Close()
			out = fh
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			return err
		}
	}
	return writeSummary(map[string]any{
		"status":       resp.StatusCode,
		"content_type": resp.ContentType,
	})
}

// writeSummary emits a one-line JSON result on stderr so the body on stdout
// stays pipeable.
func writeSummary(fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", data)
	return err
}

func newGetCommand(cfg *cliConfig) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:          "get [identifier]",
		Short:        "Retrieve a resource or its metadata document",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, cfg, f, http.MethodGet, firstArg(args))
		},
	}
	f.register(cmd, false)
	return cmd
}

func newHeadCommand(cfg *cliConfig) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:          "head [identifier]",
		Short:        "Probe a resource without transferring its body",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, cfg, f, http.MethodHead, firstArg(args))
		},
	}
	f.register(cmd, false)
	return cmd
}

func newPutCommand(cfg *cliConfig) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:          "put [identifier]",
		Short:        "Create or replace a resource",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, cfg, f, http.MethodPut, firstArg(args))
		},
	}
	f.register(cmd, true)
	return cmd
}

func newPostCommand(cfg *cliConfig) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:          "post [identifier]",
		Short:        "Create a resource under a container",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, cfg, f, http.MethodPost, firstArg(args))
		},
	}
	f.register(cmd, true)
	return cmd
}

func newPatchCommand(cfg *cliConfig) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:          "patch [identifier]",
		Short:        "Apply a SPARQL-Update to a resource's metadata",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, cfg, f, http.MethodPatch, firstArg(args))
		},
	}
	f.register(cmd, true)
	return cmd
}

func newDeleteCommand(cfg *cliConfig) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:          "delete [identifier]",
		Short:        "Delete a resource",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, cfg, f, http.MethodDelete, firstArg(args))
		},
	}
	f.register(cmd, false)
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
