package ratectl

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// linear maps qp 0..11 to 1000 - 80*qp bits per row.
func linear() Table {
	t := Table{}
	for qp := 0; qp <= 11; qp++ {
		t[qp] = float64(1000 - 80*qp)
	}
	return t
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func params(mode Mode) Params {
	return Params{
		Mode:          mode,
		QP:            4,
		Tables:        Tables{I: linear(), P: linear()},
		TargetBitrate: 30 * 5000,
		FPS:           30,
		Rows:          10,
		Logger:        quietLogger(),
	}
}

func TestLookup_Closest(t *testing.T) {
	l := newLookup(Table{0: 100, 1: 80, 2: 60, 3: 40}, 1)
	tests := []struct {
		budget  float64
		qp      int
		clamped bool
	}{
		{50, 3, false}, // exact tie prefers the lower bitcount
		{52, 2, false},
		{60, 2, false},
		{40, 3, false},
		{10, 3, true},
		{1000, 0, true},
		{90, 1, false},
	}
	for _, tt := range tests {
		qp, clamped := l.closest(tt.budget)
		assert.Equal(t, tt.qp, qp, "budget %v", tt.budget)
		assert.Equal(t, tt.clamped, clamped, "budget %v", tt.budget)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		err    error
	}{
		{"negative mode", func(p *Params) { p.Mode = -1 }, ErrInvalidMode},
		{"mode too large", func(p *Params) { p.Mode = 4 }, ErrInvalidMode},
		{"no I table", func(p *Params) { p.Tables.I = nil }, ErrInvalidTable},
		{"bad bits", func(p *Params) { p.Tables.P = Table{0: 0} }, ErrInvalidTable},
		{"negative qp", func(p *Params) { p.Tables.P = Table{-1: 3} }, ErrInvalidTable},
		{"qp above max", func(p *Params) { p.Tables.I = Table{40: 100, 41: 50} }, ErrInvalidTable},
		{"zero fps", func(p *Params) { p.FPS = 0 }, ErrInvalidBudget},
		{"zero bitrate", func(p *Params) { p.TargetBitrate = 0 }, ErrInvalidBudget},
		{"zero rows", func(p *Params) { p.Rows = 0 }, ErrInvalidBudget},
		{"two-pass without reference", func(p *Params) { p.Mode = TwoPass; p.QP = 20 }, ErrInvalidTable},
		{"scene cut without threshold", func(p *Params) { p.Mode = SceneCut }, ErrInvalidTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(PerRow)
			tt.mutate(&p)
			_, err := New(p)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	p := params(Constant)
	p.Tables = Tables{}
	_, err := New(p)
	assert.NoError(t, err, "constant mode needs no tables")
}

func TestConstant(t *testing.T) {
	c, err := New(params(Constant))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 4, c.QP(i == 0))
		c.UseBits(1000)
		c.UpdateUsedRows()
	}
	assert.Zero(t, c.Remaining())
	assert.Equal(t, 10, c.RemainingRows())
	assert.False(t, c.Adaptive())
}

func TestPerRow_BudgetNearZero(t *testing.T) {
	table := linear()
	for _, perFrame := range []float64{2000, 3100, 4444, 5000, 7321, 8000} {
		p := params(PerRow)
		p.TargetBitrate = perFrame * p.FPS
		c, err := New(p)
		require.NoError(t, err)
		assert.True(t, c.Adaptive())
		for frame := 0; frame < 3; frame++ {
			c.RefreshFrame()
			require.InDelta(t, perFrame, c.Remaining(), 1e-6)
			for row := 0; row < p.Rows; row++ {
				qp := c.QP(false)
				c.UseBits(int(table[qp]))
				c.UpdateUsedRows()
			}
			assert.InDelta(t, 0, c.Remaining(), 40, "budget %v", perFrame)
			assert.Zero(t, c.RemainingRows())
		}
	}
}

func TestRowBudget_Weighted(t *testing.T) {
	p := params(TwoPass)
	p.Rows = 4
	p.TargetBitrate = 1000 * p.FPS
	c, err := New(p)
	require.NoError(t, err)

	c.SetRowWeights([]float64{1, 1, 2, 0})
	assert.InDelta(t, 250, c.rowBudget(), 1e-9)
	c.UseBits(250)
	c.UpdateUsedRows()
	assert.InDelta(t, 250, c.rowBudget(), 1e-9)
	c.UseBits(100)
	c.UpdateUsedRows()
	assert.InDelta(t, 650, c.rowBudget(), 1e-9)
	c.UseBits(650)
	c.UpdateUsedRows()
	assert.InDelta(t, 0, c.rowBudget(), 1e-9)

	// Weights that do not cover every row fall back to the uniform split.
	c.RefreshFrame()
	c.SetRowWeights([]float64{1})
	assert.InDelta(t, 250, c.rowBudget(), 1e-9)

	// All-zero remaining weights fall back as well.
	c.SetRowWeights([]float64{0, 0, 0, 0})
	assert.InDelta(t, 250, c.rowBudget(), 1e-9)
}

func TestRescale(t *testing.T) {
	p := params(TwoPass)
	p.QP = 0
	p.Rows = 2
	p.Tables = Tables{I: Table{0: 300, 1: 150}, P: Table{0: 100, 1: 50}}
	c, err := New(p)
	require.NoError(t, err)

	c.Rescale(false, 400) // factor 400 / 100 / 2 = 2
	assert.Equal(t, lookup{{100, 1}, {200, 0}}, c.pTable)
	assert.Equal(t, lookup{{150, 1}, {300, 0}}, c.iTable, "I table untouched")

	c.Rescale(true, 300) // factor 300 / 300 / 2 = 0.5
	assert.Equal(t, lookup{{75, 1}, {150, 0}}, c.iTable)

	// Rescaling starts from the configured table, not the previous result.
	c.Rescale(false, 200)
	assert.Equal(t, lookup{{50, 1}, {100, 0}}, c.pTable)
}

func TestSceneCut(t *testing.T) {
	p := params(SceneCut)
	p.SceneCutThreshold = Table{4: 1000}
	c, err := New(p)
	require.NoError(t, err)
	assert.True(t, c.IsSceneCut(1001))
	assert.False(t, c.IsSceneCut(1000))

	c2, err := New(params(TwoPass))
	require.NoError(t, err)
	assert.False(t, c2.IsSceneCut(1<<30))
}

func TestQP_ClampWarns(t *testing.T) {
	l, hook := test.NewNullLogger()
	p := params(PerRow)
	p.Logger = l
	p.TargetBitrate = 10 * p.FPS
	c, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, 11, c.QP(true))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestTable_UnmarshalYAML(t *testing.T) {
	src := []byte(`
I: {"0": 100.5, "1": 50}
P:
  0: 10
  1: 5
`)
	var tables Tables
	require.NoError(t, yaml.Unmarshal(src, &tables))
	assert.Equal(t, Table{0: 100.5, 1: 50}, tables.I)
	assert.Equal(t, Table{0: 10, 1: 5}, tables.P)

	assert.Error(t, yaml.Unmarshal([]byte(`I: {x: 1}`), &tables))
	assert.Error(t, yaml.Unmarshal([]byte(`I: [1, 2]`), &tables))
	assert.Error(t, yaml.Unmarshal([]byte(`I: {"1": abc}`), &tables))
}

func TestMode(t *testing.T) {
	assert.True(t, SceneCut.TwoPass())
	assert.False(t, PerRow.TwoPass())
	assert.Equal(t, "two-pass", TwoPass.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}
