package main

import (
	"context"
	"fmt"
	"io"

	"github.com/meigma/pixgrid/config"
)

func configCommand(c *common) runFunc {
	var write string
	c.fs.StringVarP(&write, "write", "w", "", "save the effective configuration to this file")
	return func(_ context.Context, args []string, stdout io.Writer) error {
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments %v", args)
		}
		cfg, err := c.settings()
		if err != nil {
			return err
		}
		if write != "" {
			if err := config.Save(write, cfg); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", write)
			return nil
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}
}
