// The apngframes command decodes a PNG or APNG stream and writes each
// displayed frame to a separate image file.
//
// Usage:
//
//	apngframes [options] file.png
//
// A summary of the stream and of each frame is printed to standard output.
// Options may also be given in a TOML file named by -config, with the keys
// out, format, prefix, default, json and log. Flags given on the command
// line take precedence over the file.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	apng "github.com/shutej/apngreader"
)

func main() {
	os.Exit(Main())
}

// config holds the command's options.
type config struct {
	Out     string `toml:"out"`
	Format  string `toml:"format"`
	Prefix  string `toml:"prefix"`
	Default bool   `toml:"default"`
	JSON    bool   `toml:"json"`
	Log     string `toml:"log"`
}

type encoder struct {
	ext    string
	encode func(io.Writer, image.Image) error
}

var encoders = map[string]encoder{
	"png":  {ext: ".png", encode: png.Encode},
	"gif":  {ext: ".gif", encode: encodeGIF},
	"bmp":  {ext: ".bmp", encode: bmp.Encode},
	"tiff": {ext: ".tiff", encode: encodeTIFF},
}

func encodeGIF(w io.Writer, m image.Image) error {
	return gif.Encode(w, m, nil)
}

func encodeTIFF(w io.Writer, m image.Image) error {
	return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
}

// Main is the entry point of the command. It returns the exit status:
// 0 on success, 1 if the stream could not be decoded or frames could not
// be written and 2 for usage errors.
func Main() int {
	fs := flag.NewFlagSet("apngframes", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [options] file.png\n", fs.Name())
		fs.PrintDefaults()
	}
	cfgPath := fs.String("config", "", "TOML configuration file")
	out := fs.String("out", "", "directory to write frames to (frames are not written if empty)")
	format := fs.String("format", "png", "output image format (png, gif, bmp or tiff)")
	prefix := fs.String("prefix", "frame", "output file name prefix")
	def := fs.Bool("default", false, "also write the hidden default image")
	jsonOut := fs.Bool("json", false, "print the summary as JSON")
	logging := fs.String("log", "warn", "logging level (debug, info, warn or error)")
	err := fs.Parse(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	cfg := config{
		Out:     *out,
		Format:  *format,
		Prefix:  *prefix,
		Default: *def,
		JSON:    *jsonOut,
		Log:     *logging,
	}
	if *cfgPath != "" {
		cfg, err = loadConfig(*cfgPath, cfg, fs)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	var level slog.LevelVar
	err = level.UnmarshalText([]byte(cfg.Log))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return 2
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: &level,
	}))

	enc, ok := encoders[cfg.Format]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown format: %q\n", cfg.Format)
		fs.Usage()
		return 2
	}

	err = run(fs.Arg(0), cfg, enc, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// loadConfig reads the TOML configuration at path over the values in cfg.
// Flags explicitly set in fs take precedence over the file.
func loadConfig(path string, cfg config, fs *flag.FlagSet) (config, error) {
	flags := cfg
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return flags, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return flags, fmt.Errorf("%s: unknown keys: %v", path, undecoded)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Out = flags.Out
		case "format":
			cfg.Format = flags.Format
		case "prefix":
			cfg.Prefix = flags.Prefix
		case "default":
			cfg.Default = flags.Default
		case "json":
			cfg.JSON = flags.JSON
		case "log":
			cfg.Log = flags.Log
		}
	})
	return cfg, nil
}

// summary describes a decoded stream.
type summary struct {
	Width         int         `json:"width"`
	Height        int         `json:"height"`
	Animated      bool        `json:"animated"`
	Frames        int         `json:"frames"`
	Loops         int         `json:"loops"`
	HiddenDefault string      `json:"hidden_default,omitempty"`
	FrameList     []frameInfo `json:"frame_list"`
}

type frameInfo struct {
	Index   int    `json:"index"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	DelayMS int    `json:"delay_ms"`
	Dispose string `json:"dispose"`
	Blend   string `json:"blend"`
	File    string `json:"file,omitempty"`
}

func run(path string, cfg config, enc encoder, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	d := apng.NewDecoder(f, &apng.Options{Logger: log})
	err = d.Scan()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Out != "" {
		err = os.MkdirAll(cfg.Out, 0o755)
		if err != nil {
			return err
		}
	}

	b := d.Bounds()
	sum := summary{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Animated: d.IsAnimated(),
		Frames:   d.FrameCount(),
		Loops:    d.LoopCount(),
	}
	for d.CanReadMore() {
		m, err := d.ReadNextFrame()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fc := d.CurrentFrameControl()
		info := frameInfo{
			Index:   d.CurrentFrameIndex(),
			X:       fc.Rect.Min.X,
			Y:       fc.Rect.Min.Y,
			Width:   fc.Rect.Dx(),
			Height:  fc.Rect.Dy(),
			DelayMS: d.NextFrameDelayMilliseconds(),
			Dispose: fc.DisposeOp.String(),
			Blend:   fc.BlendOp.String(),
		}
		if cfg.Out != "" {
			info.File, err = write(cfg, enc, fmt.Sprintf("%03d", info.Index), m)
			if err != nil {
				return err
			}
			log.Info("wrote frame", slog.Any("control", fc), slog.String("file", info.File))
		}
		sum.FrameList = append(sum.FrameList, info)
	}

	if cfg.Default {
		m, err := d.DefaultImage()
		switch {
		case errors.Is(err, apng.ErrNoDefaultImage):
			log.Info("no hidden default image", slog.String("path", path))
		case err != nil:
			return fmt.Errorf("%s: %w", path, err)
		case cfg.Out != "":
			sum.HiddenDefault, err = write(cfg, enc, "default", m)
			if err != nil {
				return err
			}
		default:
			sum.HiddenDefault = "-"
		}
	}

	if cfg.JSON {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "\t")
		return e.Encode(sum)
	}
	printSummary(os.Stdout, sum)
	return nil
}

// write encodes m to a file in the output directory named by the configured
// prefix and the given name, and returns the path of the file.
func write(cfg config, enc encoder, name string, m image.Image) (string, error) {
	path := filepath.Join(cfg.Out, cfg.Prefix+name+enc.ext)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	err = enc.encode(f, m)
	if err != nil {
		f.Close()
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return path, f.Close()
}

func printSummary(w io.Writer, sum summary) {
	fmt.Fprintf(w, "size %dx%d\n", sum.Width, sum.Height)
	fmt.Fprintf(w, "frames %d\n", sum.Frames)
	switch {
	case !sum.Animated:
		fmt.Fprintln(w, "loops none")
	case sum.Loops == apng.LoopForever:
		fmt.Fprintln(w, "loops forever")
	default:
		fmt.Fprintf(w, "loops %d\n", sum.Loops)
	}
	for _, f := range sum.FrameList {
		fmt.Fprintf(w, "frame %d rect=%v delay=%dms dispose=%s blend=%s",
			f.Index, image.Rect(f.X, f.Y, f.X+f.Width, f.Y+f.Height), f.DelayMS, f.Dispose, f.Blend)
		if f.File != "" {
			fmt.Fprintf(w, " file=%s", filepath.ToSlash(f.File))
		}
		fmt.Fprintln(w)
	}
	if sum.HiddenDefault != "" {
		fmt.Fprintf(w, "default %s\n", filepath.ToSlash(sum.HiddenDefault))
	}
}
