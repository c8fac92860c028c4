package blockvid

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/deepteams/blockvid/internal/container"
	"github.com/deepteams/blockvid/internal/dsp"
	"github.com/deepteams/blockvid/internal/lossy"
	"github.com/deepteams/blockvid/internal/motion"
	"github.com/deepteams/blockvid/internal/ratectl"
)

// Rate-control modes accepted by Config.RCMode.
const (
	RCConstant = int(ratectl.Constant)
	RCPerRow   = int(ratectl.PerRow)
	RCTwoPass  = int(ratectl.TwoPass)
	RCSceneCut = int(ratectl.SceneCut)
)

// Config controls encoding and decoding. The zero value is not valid; start
// from DefaultConfig. Field names in YAML follow the experiment files of
// the codec, so existing configurations and JSON rate tables load as is.
type Config struct {
	// BlockSize is the side of a block in pixels (even, at least 2).
	// Sub-blocks are half as wide.
	BlockSize int `yaml:"block_size"`

	// SearchRange is the full-search radius in whole pixels.
	SearchRange int `yaml:"block_search_offset"`

	// IPeriod sets the frame pattern: -1 codes only the first frame as an
	// I-frame, 0 codes every frame as an I-frame, and N > 0 codes an
	// I-frame every N frames.
	IPeriod int `yaml:"i_period"`

	// QP is the constant quantization parameter (0 to dsp.MaxQP), and the
	// reference QP of the two-pass statistics pass.
	QP int `yaml:"qp"`

	// ApproximateResidual coarsens residuals to multiples of
	// 2^ApproximateN before the transform.
	ApproximateResidual bool `yaml:"do_approximated_residual"`
	ApproximateN        int  `yaml:"approximated_residual_n"`

	// Entropy selects Exp-Golomb coded payloads. Without it frames carry
	// raw token lists and cannot be written to a stream.
	Entropy bool `yaml:"do_entropy"`

	// Lambda weights bits against distortion in mode decision.
	Lambda float64 `yaml:"rd_lambda"`

	// VBS enables splitting blocks into four sub-blocks.
	VBS bool `yaml:"vbs_enable"`

	// FME enables half-pixel motion vectors.
	FME bool `yaml:"fme_enable"`

	// FastME replaces full search with the cross-pattern descent, limited
	// to FastMELimit whole pixels from its start. A negative limit means
	// unset, which is an error when FastME is on.
	FastME      bool `yaml:"fast_me"`
	FastMELimit int  `yaml:"fast_me_limit"`

	// FastMEFractional selects how FastME treats half pixels when FME is
	// on: "grid" (default) or "refine".
	FastMEFractional string `yaml:"fast_me_fractional"`

	// RefFrames is the number of reconstructed frames P-frames may
	// reference.
	RefFrames int `yaml:"n_ref_frames"`

	// RCMode selects rate control: RCConstant, RCPerRow, RCTwoPass or
	// RCSceneCut.
	RCMode int `yaml:"rc_flag"`

	// RCTable maps QP to the bits one block row costs, per frame type.
	RCTable ratectl.Tables `yaml:"rc_table"`

	// TargetBitrate is in bits per second at FPS frames per second.
	TargetBitrate float64 `yaml:"target_bitrate"`
	FPS           float64 `yaml:"fps"`

	// TotalFrames bounds the number of frames read by tools; 0 means all.
	TotalFrames int `yaml:"total_frames"`

	// SceneCutThreshold maps the reference QP to the statistics-pass frame
	// size above which RCSceneCut codes a P-frame as an I-frame.
	SceneCutThreshold ratectl.Table `yaml:"scene_cut_threshold"`

	// ParallelWorkers > 1 encodes block rows as a wavefront on that many
	// goroutines. Output does not depend on it.
	ParallelWorkers int `yaml:"parallel_workers"`

	// VerifyDigest makes the decoder check every frame against the digest
	// of the encoder's reconstruction.
	VerifyDigest bool `yaml:"verify_digest"`

	// Logger receives structured logs. Nil means logrus.StandardLogger().
	Logger logrus.FieldLogger `yaml:"-"`
}

// DefaultConfig returns a constant-QP configuration for blockSize.
func DefaultConfig(blockSize int) Config {
	return Config{
		BlockSize:        blockSize,
		SearchRange:      2,
		IPeriod:          8,
		QP:               3,
		Entropy:          true,
		Lambda:           1,
		FastMELimit:      -1,
		FastMEFractional: "grid",
		RefFrames:        1,
		FPS:              30,
		ParallelWorkers:  1,
		VerifyDigest:     true,
	}
}

// ParseConfig reads a YAML (or JSON) configuration on top of
// DefaultConfig(8) and validates it.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig(8)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("blockvid: reading config: %w", err)
	}
	return ParseConfig(data)
}

// Validate reports the first configuration error, wrapped in
// ErrInvalidConfig.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
	}
	switch {
	case c.BlockSize < 2 || c.BlockSize%2 != 0 || c.BlockSize > container.MaxBlockSize:
		return bad("block size %d must be even and in [2, %d]", c.BlockSize, container.MaxBlockSize)
	case c.SearchRange < 0:
		return bad("negative search range %d", c.SearchRange)
	case c.IPeriod < -1:
		return bad("i_period %d must be -1, 0 or positive", c.IPeriod)
	case c.QP < 0 || c.QP > dsp.MaxQP:
		return bad("qp %d outside [0, %d]", c.QP, dsp.MaxQP)
	case c.ApproximateResidual && c.ApproximateN < 0:
		return bad("negative approximation exponent %d", c.ApproximateN)
	case c.Lambda < 0:
		return bad("negative rd_lambda %g", c.Lambda)
	case c.FastME && c.FastMELimit < 0:
		return bad("%v", motion.ErrNoFastLimit)
	case c.RefFrames < 1:
		return bad("n_ref_frames %d must be at least 1", c.RefFrames)
	case c.ParallelWorkers < 0:
		return bad("negative parallel_workers %d", c.ParallelWorkers)
	case c.TotalFrames < 0:
		return bad("negative total_frames %d", c.TotalFrames)
	}
	if _, err := motion.ParseFractional(c.FastMEFractional); err != nil {
		return bad("%v", err)
	}
	rc := c.rateParams(1)
	if err := rc.Validate(); err != nil {
		return bad("%v", err)
	}
	return nil
}

func (c *Config) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

// frameType returns the type of frame number n under IPeriod.
func (c *Config) frameType(n int) lossy.FrameType {
	switch {
	case n == 0, c.IPeriod == 0:
		return lossy.FrameI
	case c.IPeriod > 0 && n%c.IPeriod == 0:
		return lossy.FrameI
	}
	return lossy.FrameP
}

func (c *Config) lossyConfig() lossy.Config {
	frac, _ := motion.ParseFractional(c.FastMEFractional)
	lc := lossy.Config{
		BlockSize: c.BlockSize,
		VBS:       c.VBS,
		Lambda:    c.Lambda,
		FME:       c.FME,
		Entropy:   c.Entropy,
		Motion: motion.Params{
			Range:      c.SearchRange,
			HalfPel:    c.FME,
			Fast:       c.FastME,
			FastLimit:  c.FastMELimit,
			Fractional: frac,
		},
		Logger: c.logger(),
	}
	if c.ApproximateResidual {
		lc.Approximate = c.ApproximateN
	}
	return lc
}

func (c *Config) rateParams(rows int) ratectl.Params {
	return ratectl.Params{
		Mode:              ratectl.Mode(c.RCMode),
		QP:                c.QP,
		Tables:            c.RCTable,
		TargetBitrate:     c.TargetBitrate,
		FPS:               c.FPS,
		Rows:              rows,
		SceneCutThreshold: c.SceneCutThreshold,
		Logger:            c.logger(),
	}
}

// flags returns the container flags for streams written with c.
func (c *Config) flags() container.Flags {
	var f container.Flags
	if c.VBS {
		f |= container.FlagVBS
	}
	if c.FME {
		f |= container.FlagFME
	}
	if c.VerifyDigest {
		f |= container.FlagDigest
	}
	return f
}
