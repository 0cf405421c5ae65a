package main

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestEntityBodyFlagDefaultsToNoEntity(t *testing.T) {
	cfg := &cliConfig{}
	for _, build := range []func(*cliConfig) *cobra.Command{
		newPutCommand, newPostCommand, newPatchCommand,
	} {
		cmd := build(cfg)
		flag := cmd.Flags().Lookup("body")
		if flag == nil {
			t.Fatalf("%s: body flag missing", cmd.Use)
		}
		if flag.DefValue != "" {
			t.Fatalf("%s: body flag defaults to %q; must not read stdin unasked", cmd.Use, flag.DefValue)
		}
	}
}

func TestOpFlagsRequestWithoutBody(t *testing.T) {
	f := &opFlags{}
	req, err := f.request(http.MethodPut, "/x")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Body != nil {
		t.Fatal("no --body must mean no request entity")
	}
}

func TestOpFlagsRequestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.ttl")
	const payload = "<> a <http://example.com/Thing> ."
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	f := &opFlags{input: path}
	req, err := f.request(http.MethodPut, "/x")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Body == nil {
		t.Fatal("request entity missing")
	}
	if closer, ok := req.Body.(io.Closer); ok {
		defer closer.Close()
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read entity: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("entity %q", data)
	}
}
