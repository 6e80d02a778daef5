package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
)

func toolsCommand(ctx context.Context, argv []string, cfgPath string, streams ioStreams) error {
	set := flag.NewFlagSet("tools", flag.ContinueOnError)
	set.SetOutput(streams.err)
	configFlag := set.String("config", cfgPath, "Path to config file.")
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: structgenctl tools [flags]")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadSettings(*configFlag, "", "")
	if err != nil {
		return err
	}
	registry, closers, err := buildRegistry(ctx, cfg)
	defer closeAll(closers)
	if err != nil {
		return err
	}

	for _, t := range registry.List() {
		fmt.Fprintf(streams.out, "%s\t%s\n", t.Name(), t.Description())
	}
	return nil
}
