// Command gvid encodes raw 8-bit video into GVID streams and decodes them
// back from the command line.
//
// Usage:
//
//	gvid enc [options] -w W -h H <input.yuv>   raw Y or I420 → GVID (use "-" for stdin)
//	gvid dec [options] <input.gvid>            GVID → raw Y or I420 (-o - for stdout)
//	gvid info <input.gvid>                     Display stream header
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deepteams/blockvid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "enc":
		err = runEnc(ctx, os.Args[2:], os.Stdout, os.Stderr)
	case "dec":
		err = runDec(os.Args[2:], os.Stdout, os.Stderr)
	case "info":
		err = runInfo(os.Args[2:], os.Stdout)
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "gvid: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "gvid: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  gvid enc [options] -w W -h H <input>   Encode raw Y or I420 frames to GVID
  gvid dec [options] <input.gvid>        Decode GVID to raw Y or I420
  gvid info <input.gvid>                 Display stream header

Use "-" as input to read from stdin, "-o -" to write to stdout.

Run "gvid <command> -h" for command-specific options.
`)
}

// openInput returns an io.ReadCloser for the given path.
// If path is "-", stdin is returned (caller should not close).
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// openOutput returns the writer for path, stdout for "-".
func openOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// outputPath derives a default output path from the input.
func outputPath(input, ext string) string {
	if input == "-" {
		return "output" + ext
	}
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ext
}

// rawFormat describes how frames are laid out in raw files.
type rawFormat string

const (
	formatY    rawFormat = "y"
	formatI420 rawFormat = "i420"
)

func parseFormat(s string) (rawFormat, error) {
	switch f := rawFormat(strings.ToLower(s)); f {
	case formatY, formatI420:
		return f, nil
	}
	return "", fmt.Errorf("unknown raw format %q (use y/i420)", s)
}

// chromaSize returns the bytes of both chroma planes of an I420 frame.
func (f rawFormat) chromaSize(w, h int) int {
	if f != formatI420 {
		return 0
	}
	return 2 * ((w + 1) / 2) * ((h + 1) / 2)
}

// readFrames reads up to limit frames (all when limit is 0). Only luma
// is kept.
func readFrames(r io.Reader, f rawFormat, w, h, limit int) ([]blockvid.Frame, error) {
	br := bufio.NewReader(r)
	chroma := make([]byte, f.chromaSize(w, h))
	var frames []blockvid.Frame
	for limit == 0 || len(frames) < limit {
		y := make([]uint8, w*h)
		if _, err := io.ReadFull(br, y); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("frame %d: %w", len(frames), err)
		}
		if _, err := io.ReadFull(br, chroma); err != nil {
			return nil, fmt.Errorf("frame %d chroma: %w", len(frames), err)
		}
		frames = append(frames, blockvid.Frame{Width: w, Height: h, Y: y})
	}
	return frames, nil
}

// writeFrame writes f, with neutral chroma for I420.
func writeFrame(w io.Writer, f blockvid.Frame, format rawFormat) error {
	if _, err := w.Write(f.Y); err != nil {
		return err
	}
	if n := format.chromaSize(f.Width, f.Height); n > 0 {
		chroma := make([]byte, n)
		for i := range chroma {
			chroma[i] = 128
		}
		if _, err := w.Write(chroma); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(verbose bool, stderr io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// --- enc ---

func runEnc(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("enc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	width := fs.Int("w", 0, "frame width in pixels")
	height := fs.Int("h", 0, "frame height in pixels")
	format := fs.String("fmt", "y", "raw input format: y/i420")
	configPath := fs.String("config", "", "YAML configuration file")
	blockSize := fs.Int("bs", 0, "block size (0=from config)")
	qp := fs.Int("qp", -1, "quantization parameter (-1=from config)")
	iPeriod := fs.Int("i", -2, "I-frame period (-2=from config)")
	frames := fs.Int("n", -1, "number of frames to encode (-1=from config, 0=all)")
	workers := fs.Int("j", 0, "parallel row workers (0=from config)")
	output := fs.String("o", "", `output path (default: <input>.gvid, "-" for stdout)`)
	verbose := fs.Bool("v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("enc: missing input file\nUsage: gvid enc [options] -w W -h H <input>")
	}
	if *width <= 0 || *height <= 0 {
		return fmt.Errorf("enc: -w and -h are required")
	}
	inputPath := fs.Arg(0)
	rf, err := parseFormat(*format)
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}

	cfg := blockvid.DefaultConfig(8)
	if *configPath != "" {
		if cfg, err = blockvid.LoadConfig(*configPath); err != nil {
			return fmt.Errorf("enc: %w", err)
		}
	}
	// Explicit flags override the configuration file.
	if *blockSize > 0 {
		cfg.BlockSize = *blockSize
	}
	if *qp >= 0 {
		cfg.QP = *qp
	}
	if *iPeriod >= -1 {
		cfg.IPeriod = *iPeriod
	}
	if *frames >= 0 {
		cfg.TotalFrames = *frames
	}
	if *workers > 0 {
		cfg.ParallelWorkers = *workers
	}
	cfg.Logger = newLogger(*verbose, stderr)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("enc: %w", err)
	}

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	raw, err := readFrames(in, rf, *width, *height, cfg.TotalFrames)
	in.Close()
	if err != nil {
		return fmt.Errorf("enc: reading input: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("enc: %s holds no complete %dx%d frame", inputPath, *width, *height)
	}

	if *output == "" {
		*output = outputPath(inputPath, ".gvid")
	}
	out, err := openOutput(*output, stdout)
	if err != nil {
		return err
	}
	start := time.Now()
	stats, err := blockvid.EncodeVideo(ctx, out, raw, cfg)
	if err != nil {
		out.Close()
		if *output != "-" {
			os.Remove(*output)
		}
		return fmt.Errorf("enc: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Fprintf(stderr, "Encoded %s → %s (%d frames, %d bits, %.1f kbit/s, PSNR %.2f dB, %s)\n",
		inputPath, *output, len(stats.Frames), stats.TotalBits(), stats.Bitrate()/1000,
		stats.MeanPSNR(), time.Since(start).Round(time.Millisecond))
	return nil
}

// --- dec ---

func runDec(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dec", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("fmt", "y", "raw output format: y/i420")
	configPath := fs.String("config", "", "YAML configuration file (for n_ref_frames)")
	output := fs.String("o", "", `output path (default: <input>.yuv, "-" for stdout)`)
	verbose := fs.Bool("v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dec: missing input file\nUsage: gvid dec [options] <input.gvid>")
	}
	inputPath := fs.Arg(0)
	rf, err := parseFormat(*format)
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	base := blockvid.DefaultConfig(8)
	if *configPath != "" {
		if base, err = blockvid.LoadConfig(*configPath); err != nil {
			return fmt.Errorf("dec: %w", err)
		}
	}
	base.Logger = newLogger(*verbose, stderr)

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	frames, err := blockvid.DecodeVideo(bufio.NewReader(in), base)
	in.Close()
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	if *output == "" {
		*output = outputPath(inputPath, ".yuv")
	}
	out, err := openOutput(*output, stdout)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(out)
	for _, f := range frames {
		if err := writeFrame(bw, f, rf); err != nil {
			out.Close()
			return fmt.Errorf("dec: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("dec: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Fprintf(stderr, "Decoded %s → %s (%d frames)\n", inputPath, *output, len(frames))
	return nil
}

// --- info ---

func runInfo(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("info: missing input file\nUsage: gvid info <input.gvid>")
	}
	inputPath := args[0]

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	sr, err := blockvid.NewStreamReader(in)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	info := sr.Info()

	name := inputPath
	if inputPath == "-" {
		name = "<stdin>"
	}

	fmt.Fprintf(stdout, "File:       %s\n", name)
	fmt.Fprintf(stdout, "Dimensions: %d x %d\n", info.Width, info.Height)
	fmt.Fprintf(stdout, "Block size: %d\n", info.BlockSize)
	fmt.Fprintf(stdout, "VBS:        %v\n", info.VBS)
	fmt.Fprintf(stdout, "FME:        %v\n", info.FME)
	fmt.Fprintf(stdout, "Digests:    %v\n", info.Digest)
	fmt.Fprintf(stdout, "FPS:        %g\n", info.FPS)
	fmt.Fprintf(stdout, "Frames:     %d\n", info.Frames)

	if inputPath != "-" {
		fi, err := os.Stat(inputPath)
		if err == nil {
			fmt.Fprintf(stdout, "File size:  %d bytes\n", fi.Size())
		}
	}
	return nil
}
