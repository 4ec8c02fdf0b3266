package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/tetsuo/mp4atom"
)

// dumpCommand prints the full atom tree of each file.
type dumpCommand struct {
	g     *globals
	fs    afero.Fs
	files *[]string
}

func addDumpCommand(app *kingpin.Application, g *globals, fs afero.Fs) {
	cmd := &dumpCommand{g: g, fs: fs}
	c := app.Command("dump", "Print the atom tree with every property.")
	cmd.files = c.Arg("file", "MP4 files").Required().ExistingFiles()
	c.Action(cmd.run)
}

func (cmd *dumpCommand) run(_ *kingpin.ParseContext) error {
	for _, name := range *cmd.files {
		s, cfg, err := cmd.g.open(cmd.fs, name)
		if err != nil {
			exitWithErr(err)
		}
		root, err := mp4atom.Load(s)
		if err != nil {
			exitWithErr(fmt.Errorf("%s: %w", name, err))
		}
		size, _ := s.Size()
		headerf("%s (%s)", name, humanize.IBytes(uint64(size)))
		root.Dump(os.Stdout, 0, cfg.Verbosity)
		_ = s.Close()
	}
	return nil
}

// scanCommand lists top-level atoms without reading their bodies, then
// loads only moov to summarise the tracks.
type scanCommand struct {
	g     *globals
	fs    afero.Fs
	files *[]string
}

func addScanCommand(app *kingpin.Application, g *globals, fs afero.Fs) {
	cmd := &scanCommand{g: g, fs: fs}
	c := app.Command("scan", "List top-level atoms and track codecs.")
	cmd.files = c.Arg("file", "MP4 files").Required().ExistingFiles()
	c.Action(cmd.run)
}

func (cmd *scanCommand) run(_ *kingpin.ParseContext) error {
	typ := color.New(color.FgCyan)
	for _, name := range *cmd.files {
		s, _, err := cmd.g.open(cmd.fs, name)
		if err != nil {
			exitWithErr(err)
		}
		headerf("%s", name)
		sc := mp4atom.NewScanner(s)
		for sc.Next() {
			e := sc.Entry()
			typ.Printf("[%s]", e.Type)
			fmt.Printf(" offset=%d size=%s\n", e.Offset, humanize.IBytes(uint64(e.Size)))
			if e.Type != mp4atom.TypeMoov {
				continue
			}
			moov, err := sc.ReadAtom()
			if err != nil {
				exitWithErr(fmt.Errorf("%s: %w", name, err))
			}
			printTracks(moov)
		}
		if err := sc.Err(); err != nil {
			exitWithErr(fmt.Errorf("%s: %w", name, err))
		}
		_ = s.Close()
	}
	return nil
}

func printTracks(moov *mp4atom.Atom) {
	for i := 0; ; i++ {
		trak := moov.FindAtom(fmt.Sprintf("trak[%d]", i))
		if trak == nil {
			return
		}
		var fields []string
		if p, _ := trak.FindProperty("tkhd.trackId"); p != nil {
			fields = append(fields, fmt.Sprintf("trackId=%d", p.(*mp4atom.IntProperty).Value(0)))
		}
		if p, _ := trak.FindProperty("mdia.hdlr.handlerType"); p != nil {
			fields = append(fields, fmt.Sprintf("handler=%s", p.(*mp4atom.StringProperty).Value(0)))
		}
		if avcC := trak.FindAtom("mdia.minf.stbl.stsd.*.avcC"); avcC != nil {
			fields = append(fields, "codec=avc1."+mp4atom.AvcCodec(avcC))
		}
		if esds := trak.FindAtom("mdia.minf.stbl.stsd.*.esds"); esds != nil {
			fields = append(fields, "codec=mp4a."+mp4atom.EsdsCodec(esds))
		}
		if stsz := trak.FindAtom("mdia.minf.stbl.stsz"); stsz != nil {
			fields = append(fields, fmt.Sprintf("samples=%d", len(mp4atom.SampleSizes(stsz))))
		}
		fmt.Printf("  track %d: %s\n", i, strings.Join(fields, " "))
	}
}

// validateCommand loads each file and reports structural problems.
type validateCommand struct {
	g     *globals
	fs    afero.Fs
	files *[]string
}

func addValidateCommand(app *kingpin.Application, g *globals, fs afero.Fs) {
	cmd := &validateCommand{g: g, fs: fs}
	c := app.Command("validate", "Check required atoms, counts and descriptors.")
	cmd.files = c.Arg("file", "MP4 files").Required().ExistingFiles()
	c.Action(cmd.run)
}

func (cmd *validateCommand) run(_ *kingpin.ParseContext) error {
	failed := false
	for _, name := range *cmd.files {
		s, cfg, err := cmd.g.open(cmd.fs, name)
		if err != nil {
			exitWithErr(err)
		}
		root, err := mp4atom.Load(s)
		if err == nil {
			err = mp4atom.Validate(root, cfg)
		}
		_ = s.Close()
		if err != nil {
			failed = true
			color.New(color.FgRed).Printf("%s: FAIL\n", name)
			fmt.Println(err)
			continue
		}
		color.New(color.FgGreen).Printf("%s: OK\n", name)
	}
	if failed {
		os.Exit(1)
	}
	return nil
}

// rewriteCommand loads a file and writes it out again, applying the
// configured size, version and descriptor length policies.
type rewriteCommand struct {
	g       *globals
	fs      afero.Fs
	input   *string
	output  *string
	time64  *bool
	compact *bool
	large   *[]string
}

func addRewriteCommand(app *kingpin.Application, g *globals, fs afero.Fs) {
	cmd := &rewriteCommand{g: g, fs: fs}
	c := app.Command("rewrite", "Read a file and write it back out.")
	cmd.input = c.Arg("input", "Source MP4 file").Required().ExistingFile()
	cmd.output = c.Arg("output", "Destination file").Required().String()
	cmd.time64 = c.Flag("time64", "Write 64-bit times in mvhd, tkhd and mdhd").Bool()
	cmd.compact = c.Flag("compact-descriptors", "Write the shortest descriptor lengths").Bool()
	cmd.large = c.Flag("large-size", "Atom type written with a 64-bit size (repeatable)").Strings()
	c.Action(cmd.run)
}

func (cmd *rewriteCommand) run(_ *kingpin.ParseContext) error {
	src, cfg, err := cmd.g.open(cmd.fs, *cmd.input)
	if err != nil {
		exitWithErr(err)
	}
	defer src.Close()
	root, err := mp4atom.Load(src)
	if err != nil {
		exitWithErr(fmt.Errorf("%s: %w", *cmd.input, err))
	}

	cfg.Time64 = cfg.Time64 || *cmd.time64
	cfg.CompactDescriptorLength = cfg.CompactDescriptorLength || *cmd.compact
	cfg.LargeSize = append(cfg.LargeSize, *cmd.large...)
	if err := cfg.Validate(); err != nil {
		exitWithErr(err)
	}
	dst, err := mp4atom.CreateStream(cmd.fs, *cmd.output,
		mp4atom.WithConfig(cfg),
		mp4atom.WithLogger(cmd.g.logger(cfg)),
		mp4atom.WithName(*cmd.output),
	)
	if err != nil {
		exitWithErr(err)
	}
	if err := root.Write(dst); err != nil {
		_ = dst.Close()
		exitWithErr(fmt.Errorf("%s: %w", *cmd.output, err))
	}
	size, _ := dst.Size()
	if err := dst.Close(); err != nil {
		exitWithErr(err)
	}
	fmt.Printf("wrote %s (%s)\n", *cmd.output, humanize.IBytes(uint64(size)))
	return nil
}
