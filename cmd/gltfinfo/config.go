package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Faultbox/gltfview/internal/config"
)

// cmdConfig prints the viewer's default configuration, or writes it where
// gltfview will pick it up.
func cmdConfig(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	out := fs.String("o", "", "Write to this path")
	user := fs.Bool("user", false, "Write to the user config directory")
	fs.Parse(args)

	cfg := config.Default()
	switch {
	case *user:
		path, err := cfg.Save()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", path)
	case *out != "":
		if err := cfg.SaveTo(*out); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", *out)
	default:
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return nil
}
