package main

import (
	"context"
	"io"

	"github.com/germanamz/promptforge/pkg/server"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", "Start the local HTTP API used by the browser front end.", stderr)

	common := commonFlags{defaultLevel: "info"}
	common.register(fs)
	addr := fs.String("addr", "", "listen address (overrides server.addr, default "+server.DefaultAddr+")")

	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, common, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	if *addr != "" {
		a.cfg.Server.Addr = *addr
	}

	srv, err := server.New(a.cfg, a.gw, a.prober, a.log)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
