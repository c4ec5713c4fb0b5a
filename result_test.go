package funcptr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/BarrensZeppelin/funcptr/ir"
)

func sampleReport() *Report {
	r := NewReport()
	r.Record(12, "plus")
	r.Record(12, "minus")
	r.Record(3, "malloc")
	r.Record(12, "plus")
	return r
}

func TestRender(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, []int{3, 12}, r.Lines())
	assert.Equal(t, []string{"minus", "plus"}, r.Callees(12))
	assert.Empty(t, r.Callees(4))

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	assert.Equal(t, "3 : malloc\n12 : minus, plus\n", buf.String())

	assert.Empty(t, NewReport().String())
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().WriteYAML(&buf))
	assert.Contains(t, buf.String(), "line: 12")

	var sites []CallSite
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &sites))
	assert.Equal(t, []CallSite{
		{Line: 3, Callees: []string{"malloc"}},
		{Line: 12, Callees: []string{"minus", "plus"}},
	}, sites)
}

func TestMsgpackRoundTrip(t *testing.T) {
	r := sampleReport()

	var buf bytes.Buffer
	require.NoError(t, r.WriteMsgpack(&buf))

	back, err := ReadMsgpack(&buf)
	require.NoError(t, err)
	assert.Equal(t, r.String(), back.String())
	assert.Equal(t, r.CallSites(), back.CallSites())

	_, err = ReadMsgpack(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)
}

func TestEdges(t *testing.T) {
	prog := ir.NewProgram()
	plus := prog.NewFunction("plus", ir.ScalarType)
	minus := prog.NewFunction("minus", ir.ScalarType)
	main := prog.NewFunction("main", ir.ScalarType)
	site := &ir.Call{Line: 4}

	r := NewReport()
	r.record(main, site, plus)
	r.record(main, site, minus)
	r.record(main, site, plus)

	assert.Equal(t, []Edge{{main, site, plus}, {main, site, minus}}, r.Edges())
	assert.Equal(t, "4 : minus, plus\n", r.String())
}
