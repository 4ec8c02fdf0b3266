// Command mfdump reads a media file and prints, checks or rewrites its
// atom structure.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/spf13/afero"

	"github.com/tetsuo/mp4atom"
)

// globals are the flags shared by every command.
type globals struct {
	configFile string
	verbosity  int
	strict     bool
}

func (g *globals) config(fs afero.Fs) (mp4atom.Config, error) {
	cfg := mp4atom.DefaultConfig()
	if g.configFile != "" {
		var err error
		if cfg, err = mp4atom.LoadConfig(fs, g.configFile); err != nil {
			return cfg, err
		}
	}
	if g.verbosity > cfg.Verbosity {
		cfg.Verbosity = g.verbosity
	}
	if g.strict {
		cfg.CountPolicy = mp4atom.CountStrict
	}
	return cfg, nil
}

// open opens name on fs with the logger and configuration the flags
// select.
func (g *globals) open(fs afero.Fs, name string) (*mp4atom.Stream, mp4atom.Config, error) {
	cfg, err := g.config(fs)
	if err != nil {
		return nil, cfg, err
	}
	s, err := mp4atom.OpenStream(fs, name,
		mp4atom.WithConfig(cfg),
		mp4atom.WithLogger(g.logger(cfg)),
		mp4atom.WithName(name),
	)
	return s, cfg, err
}

func (g *globals) logger(cfg mp4atom.Config) log.Logger {
	return mp4atom.NewLogger(os.Stderr, cfg.Verbosity)
}

func main() {
	app := kingpin.New("mfdump", "Inspect and rewrite MP4 files.")
	g := &globals{}
	app.Flag("config", "YAML configuration file").StringVar(&g.configFile)
	app.Flag("verbose", "More output; repeat for more").Short('v').CounterVar(&g.verbosity)
	app.Flag("strict", "Fail on count mismatches instead of repairing them").BoolVar(&g.strict)

	fs := afero.NewOsFs()
	addDumpCommand(app, g, fs)
	addScanCommand(app, g, fs)
	addValidateCommand(app, g, fs)
	addRewriteCommand(app, g, fs)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func exitWithErr(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func headerf(format string, args ...any) {
	color.New(color.Bold).Printf(format, args...)
	fmt.Println()
}
