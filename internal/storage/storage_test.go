package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ljmd/internal/dynamo"
)

func sampleParticles() *dynamo.Particles {
	p := dynamo.NewParticles(3)
	for i := 0; i < 3; i++ {
		p.Rx[i], p.Ry[i], p.Rz[i] = float64(i)+0.125, -float64(i)/3, 1e-3*float64(i)
		p.Vx[i], p.Vy[i], p.Vz[i] = 1e-3, -2e-3*float64(i), 0
	}
	return p
}

func TestRestartRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.rest")
	want := sampleParticles()

	require.NoError(t, WriteRestart(path, want))
	got, err := ReadRestart(path, 3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, want.Rx[i], got.Rx[i], 1e-13)
		assert.InDelta(t, want.Ry[i], got.Ry[i], 1e-13)
		assert.InDelta(t, want.Vy[i], got.Vy[i], 1e-13)
	}
}

func TestDecodeRestartFreeFormat(t *testing.T) {
	in := "0 0 0\n4.0 0 0\n\n  0.1\t0.2 0.3\n-0.1 -0.2 -0.3"
	p, err := DecodeRestart(strings.NewReader(in), 2)
	require.NoError(t, err)
	assert.Equal(t, 4.0, p.Rx[1])
	assert.Equal(t, []float64{0.3, -0.3}, p.Vz)
}

func TestRestartErrors(t *testing.T) {
	_, err := ReadRestart(filepath.Join(t.TempDir(), "missing.rest"), 2)
	assert.True(t, errors.Is(err, dynamo.ErrRestart), "missing file: %v", err)

	_, err = DecodeRestart(strings.NewReader("0 0 0\n1 1 1\n0 0 0\n"), 2)
	assert.True(t, errors.Is(err, dynamo.ErrRestart), "short file: %v", err)

	_, err = DecodeRestart(strings.NewReader("0 0 x\n"), 1)
	assert.True(t, errors.Is(err, dynamo.ErrRestart), "bad number: %v", err)
}

func TestFormatEnergy(t *testing.T) {
	s := dynamo.State{Step: 100, Temp: 119.5, Ekin: 38.25, Epot: -150.125}
	want := "     100         119.50000000          38.25000000        -150.12500000        -111.87500000"
	assert.Equal(t, want, FormatEnergy(s))
}

func TestEnergyLog(t *testing.T) {
	var buf bytes.Buffer
	log := NewEnergyLog(&buf)
	require.NoError(t, log.OnFrame(dynamo.Frame{State: dynamo.State{Step: 0, Epot: -1}}))
	assert.Zero(t, buf.Len(), "buffered log should not write before close")

	require.NoError(t, log.Close())
	assert.Equal(t, FormatEnergy(dynamo.State{Epot: -1})+"\n", buf.String())
}

func TestConsoleLogUnbuffered(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLog(&buf)
	require.NoError(t, log.OnFrame(dynamo.Frame{State: dynamo.State{Step: 5}}))
	assert.Equal(t, FormatEnergy(dynamo.State{Step: 5})+"\n", buf.String())
}

func TestTrajectory(t *testing.T) {
	var buf bytes.Buffer
	traj := NewTrajectory(&buf)
	f := dynamo.Frame{
		State: dynamo.State{Step: 7, Ekin: 1, Epot: -3},
		Rx:    []float64{0, 4}, Ry: []float64{0, 0}, Rz: []float64{0, 0.5},
	}
	require.NoError(t, traj.OnFrame(f))
	require.NoError(t, traj.Close())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "2", lines[0])
	assert.Equal(t, " nfi=7 etot=         -2.00000000", lines[1])
	assert.Equal(t, "Ar            4.00000000           0.00000000           0.50000000", lines[3])
}

func TestCreateWriters(t *testing.T) {
	dir := t.TempDir()
	erg, err := CreateEnergyLog(filepath.Join(dir, "e.dat"))
	require.NoError(t, err)
	require.NoError(t, erg.OnFrame(dynamo.Frame{}))
	require.NoError(t, erg.Close())

	data, err := os.ReadFile(filepath.Join(dir, "e.dat"))
	require.NoError(t, err)
	assert.Equal(t, FormatEnergy(dynamo.State{})+"\n", string(data))

	_, err = CreateTrajectory(filepath.Join(dir, "no", "such", "dir.xyz"))
	assert.Error(t, err)
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	frames := []dynamo.State{
		{Step: 0, Temp: 120, Ekin: 38.2, Epot: -150},
		{Step: 100, Temp: 119.1, Ekin: 38.0, Epot: -149.8},
	}
	meta := RunMetadata{Name: "argon", Device: "cpu", WorkItems: 16, NumAtoms: 108, NSteps: 100, NPrint: 100,
		Metrics: map[string]float64{"energy_drift": 1e-4}}

	runID, err := st.Save(meta, frames)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "argon_"))

	loaded, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, loaded.ID)
	assert.Equal(t, 108, loaded.NumAtoms)
	assert.Equal(t, 1e-4, loaded.Metrics["energy_drift"])

	got, err := st.LoadEnergies(runID)
	require.NoError(t, err)
	assert.Equal(t, frames, got)

	second, err := st.Save(meta, frames)
	require.NoError(t, err)
	assert.NotEqual(t, runID, second)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestStoreListMissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "none")).List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	frames := []dynamo.State{{Step: 0, Ekin: 1, Epot: -2}}
	require.NoError(t, ExportJSON(&buf, RunMetadata{ID: "r1"}, frames))

	var out ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "r1", out.Run.ID)
	require.Len(t, out.Frames, 1)
	assert.Equal(t, -1.0, out.Frames[0].Etot)
}
