// Package ratectl converts a target bitrate into per-row quantization
// parameters using empirical QP to bitcount tables, optionally adapted to
// the sequence by a statistics pass over each frame.
package ratectl

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidMode reports an unsupported rate-control mode.
	ErrInvalidMode = errors.New("ratectl: unsupported mode")

	// ErrInvalidTable reports a missing or malformed rate table.
	ErrInvalidTable = errors.New("ratectl: invalid rate table")

	// ErrInvalidBudget reports a non-positive bitrate or frame rate.
	ErrInvalidBudget = errors.New("ratectl: invalid budget")
)

// Mode selects how QPs are chosen.
type Mode int

const (
	// Constant uses the configured QP for every row.
	Constant Mode = 0
	// PerRow splits the remaining frame budget evenly over the remaining rows.
	PerRow Mode = 1
	// TwoPass weights rows by their cost in a statistics pass at the
	// reference QP and rescales the tables to the measured frame cost.
	TwoPass Mode = 2
	// SceneCut is TwoPass that also codes a P-frame as an I-frame when its
	// statistics pass exceeds the scene-cut threshold.
	SceneCut Mode = 3
)

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool { return m >= Constant && m <= SceneCut }

// TwoPass reports whether m runs a statistics pass.
func (m Mode) TwoPass() bool { return m >= TwoPass }

func (m Mode) String() string {
	switch m {
	case Constant:
		return "constant"
	case PerRow:
		return "per-row"
	case TwoPass:
		return "two-pass"
	case SceneCut:
		return "scene-cut"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Params configures a Controller.
type Params struct {
	Mode Mode
	// QP is the constant QP, and the reference QP of the statistics pass.
	QP            int
	Tables        Tables
	TargetBitrate float64 // bits per second
	FPS           float64
	Rows          int // block rows per frame
	// SceneCutThreshold maps the reference QP to the statistics-pass frame
	// size above which a P-frame is coded as an I-frame.
	SceneCutThreshold Table
	Logger            logrus.FieldLogger
}

// Validate checks p for the selected mode.
func (p *Params) Validate() error {
	if !p.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(p.Mode))
	}
	if p.Mode == Constant {
		return nil
	}
	if !(p.TargetBitrate > 0) || !(p.FPS > 0) {
		return fmt.Errorf("%w: target bitrate %v at %v fps", ErrInvalidBudget, p.TargetBitrate, p.FPS)
	}
	if p.Rows <= 0 {
		return fmt.Errorf("%w: %d block rows", ErrInvalidBudget, p.Rows)
	}
	if err := p.Tables.I.validate("I"); err != nil {
		return err
	}
	if err := p.Tables.P.validate("P"); err != nil {
		return err
	}
	if p.Mode.TwoPass() {
		if _, ok := p.Tables.I[p.QP]; !ok {
			return fmt.Errorf("%w: I table lacks reference qp %d", ErrInvalidTable, p.QP)
		}
		if _, ok := p.Tables.P[p.QP]; !ok {
			return fmt.Errorf("%w: P table lacks reference qp %d", ErrInvalidTable, p.QP)
		}
	}
	if p.Mode == SceneCut {
		if _, ok := p.SceneCutThreshold[p.QP]; !ok {
			return fmt.Errorf("%w: scene-cut threshold lacks reference qp %d", ErrInvalidTable, p.QP)
		}
	}
	return nil
}

// Controller tracks the bit budget of the frame being coded.
type Controller struct {
	p      Params
	log    logrus.FieldLogger
	iTable lookup
	pTable lookup

	budgetPerFrame float64
	remaining      float64
	codedRows      int
	weights        []float64
}

// New returns a Controller for p.
func New(p Params) (*Controller, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{p: p, log: p.Logger}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if p.Mode != Constant {
		c.iTable = newLookup(p.Tables.I, 1)
		c.pTable = newLookup(p.Tables.P, 1)
		c.budgetPerFrame = p.TargetBitrate / p.FPS
	}
	c.RefreshFrame()
	return c, nil
}

// Mode returns the configured mode.
func (c *Controller) Mode() Mode { return c.p.Mode }

// Adaptive reports whether row QPs depend on the bits spent by earlier
// rows of the frame.
func (c *Controller) Adaptive() bool { return c.p.Mode != Constant }

// ReferenceQP returns the constant QP, also used by the statistics pass.
func (c *Controller) ReferenceQP() int { return c.p.QP }

// BudgetPerFrame returns the bit budget of one frame.
func (c *Controller) BudgetPerFrame() float64 { return c.budgetPerFrame }

// Remaining returns the unspent budget of the current frame.
func (c *Controller) Remaining() float64 { return c.remaining }

// RemainingRows returns the number of rows not yet coded in this frame.
func (c *Controller) RemainingRows() int { return c.p.Rows - c.codedRows }

// RefreshFrame resets the frame budget. It is called before every frame.
func (c *Controller) RefreshFrame() {
	c.remaining = c.budgetPerFrame
	c.codedRows = 0
}

// UseBits charges bits against the frame budget.
func (c *Controller) UseBits(bits int) {
	if c.p.Mode == Constant {
		return
	}
	c.remaining -= float64(bits)
}

// UpdateUsedRows marks one more row of the frame as coded.
func (c *Controller) UpdateUsedRows() {
	if c.p.Mode == Constant {
		return
	}
	c.codedRows++
}

// SetRowWeights sets the per-row weights of the weighted modes, normally
// the per-row bits of the statistics pass.
func (c *Controller) SetRowWeights(w []float64) {
	c.weights = append(c.weights[:0], w...)
}

// Rescale adapts the table for the frame type to a statistics pass that
// spent frameBits at the reference QP. Every entry is scaled by
// frameBits / table[refQP] / rows.
func (c *Controller) Rescale(isI bool, frameBits int) {
	if !c.p.Mode.TwoPass() {
		return
	}
	base := c.p.Tables.P
	if isI {
		base = c.p.Tables.I
	}
	factor := float64(frameBits) / base[c.p.QP] / float64(c.p.Rows)
	if isI {
		c.iTable = newLookup(base, factor)
	} else {
		c.pTable = newLookup(base, factor)
	}
	c.log.WithFields(logrus.Fields{
		"function": "Rescale",
		"i_frame":  isI,
		"bits":     frameBits,
		"factor":   factor,
	}).Debug("rate table rescaled")
}

// IsSceneCut reports whether a P-frame whose statistics pass spent
// frameBits should be coded as an I-frame.
func (c *Controller) IsSceneCut(frameBits int) bool {
	if c.p.Mode != SceneCut {
		return false
	}
	return float64(frameBits) > c.p.SceneCutThreshold[c.p.QP]
}

// rowBudget returns the bits available to the next row.
func (c *Controller) rowBudget() float64 {
	left := c.p.Rows - c.codedRows
	if left <= 0 {
		return c.remaining
	}
	if c.p.Mode.TwoPass() && len(c.weights) == c.p.Rows {
		var sum float64
		for _, w := range c.weights[c.codedRows:] {
			sum += w
		}
		if sum > 0 {
			return c.remaining * c.weights[c.codedRows] / sum
		}
	}
	return c.remaining / float64(left)
}

// QP returns the QP for the next block row. It is called once per row.
func (c *Controller) QP(isI bool) int {
	if c.p.Mode == Constant {
		return c.p.QP
	}
	t := c.pTable
	if isI {
		t = c.iTable
	}
	budget := c.rowBudget()
	qp, clamped := t.closest(budget)
	if clamped {
		c.log.WithFields(logrus.Fields{
			"function": "QP",
			"row":      c.codedRows,
			"budget":   budget,
			"qp":       qp,
		}).Warn("row budget outside rate table, clamping qp")
	}
	return qp
}
