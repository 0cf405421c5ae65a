// Package fcrepo provides a Go client for Fedora Commons style linked data
// repositories: content-negotiated CRUD over HTTP, RFC 5988 Link header
// parsing, LDP Prefer header synthesis, and repository transactions driven
// through the fcr:tx REST sub-protocol.
//
// # Talking to a repository
//
// A Client is configured once per endpoint and then drives any number of
// requests. Endpoint-level settings (content type, Accept, metadata mode,
// preferences) resolve against per-request values with the endpoint taking
// precedence.
//
//	cli, err := fcrepo.New("http://localhost:8080/rest",
//	    fcrepo.WithAccept("text/turtle"),
//	    fcrepo.WithAuth("fedoraAdmin", "secret"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := cli.Process(ctx, api.Request{Identifier: "/collection/item"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer resp.Close()
//
// In metadata mode (the default) GET and PATCH requests first discover the
// resource's metadata document by issuing a HEAD request and following the
// describedby Link relation, so that binaries and their RDF descriptions
// resolve to the right target transparently. WithMetadata(false) switches to
// raw binary access, and WithFixityCheck(true) redirects GETs to the
// resource's fixity-check endpoint.
//
// Response bodies are cached into a replayable spool by default: small
// bodies stay in memory, large ones spill to a temp file, and the network
// connection is released before Process returns. Set
// api.Request.DisableStreamCache to stream directly from the connection
// instead.
//
// # Transactions
//
// TransactionManager begins, commits, and rolls back repository
// transactions. Requests marked Transacted run as one unit of work with the
// session id threaded into the request path:
//
//	tm, err := fcrepo.NewTransactionManager("http://localhost:8080/rest")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cli, err := fcrepo.New("http://localhost:8080/rest",
//	    fcrepo.WithTransactionManager(tm),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := cli.Process(ctx, api.Request{
//	    Method:     "PUT",
//	    Identifier: "/collection/item",
//	    Body:       strings.NewReader(turtle),
//	    Transacted: true,
//	})
//
// Units of work spanning several requests run through Client.InTransaction,
// with each request dispatched via ProcessIn so every operation shares the
// session:
//
//	err = cli.InTransaction(ctx, func(ctx context.Context, tx *fcrepo.Transaction) error {
//	    if _, err := cli.ProcessIn(ctx, tx, api.Request{
//	        Method:     "PUT",
//	        Identifier: "/collection/item",
//	        Body:       strings.NewReader(turtle),
//	    }); err != nil {
//	        return err
//	    }
//	    resp, err := cli.ProcessIn(ctx, tx, api.Request{Identifier: "/collection/item"})
//	    if err != nil {
//	        return err
//	    }
//	    defer resp.Close()
//	    return inspect(resp)
//	})
//
// The transaction commits when the function returns nil and rolls back when
// it returns an error. Units of work can also be driven explicitly with
// TransactionManager's Begin, Commit, and Rollback.
package fcrepo
