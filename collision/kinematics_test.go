package collision

import (
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JulianSchoen/WallGo/geom"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSolveKinematicsOnShell(t *testing.T) {
	msq := [4]float64{0.1, 0.05, 0.2, 0.15}
	in := newKinematicInput(
		geom.NewVec3(1.3, 0.4, 0.0),
		geom.NewVec3(2.1, -0.3, 1.2),
		geom.NewVec3(1.0, 0.7, 2.5),
	)

	kins, n := solveKinematics(&in, &msq, discardLogger())
	require.Greater(t, n, 0, "expected at least one physical root")

	e1 := math.Sqrt(in.p1*in.p1 + msq[0])
	e2 := math.Sqrt(in.p2*in.p2 + msq[1])

	for i := 0; i < n; i++ {
		k := &kins[i]

		// Each external momentum is on shell.
		for leg := 0; leg < 4; leg++ {
			assert.InDelta(t, msq[leg], k.fv[leg].MSq(), 1e-8,
				"leg %d on shell", leg)
		}

		// Conservation and the constraint residual.
		sp3 := k.fv[2].Spatial()
		p3 := sp3.Norm()
		e3 := k.fv[2].Energy()
		q := msq[0] + msq[1] + msq[2] - msq[3]
		kappa := q + 2*(e1*e2-in.p1p2Dot)
		eps := 2 * (e1 + e2)
		del := 2 * (in.p1p3HatDot + in.p2p3HatDot)
		assert.InDelta(t, 0.0, kappa+del*p3-eps*e3, 1e-8, "residual g(p3)")

		var sum, out geom.Vec4
		k.fv[0].AddAt(&k.fv[1], &sum)
		k.fv[2].AddAt(&k.fv[3], &out)
		for c := 0; c < 4; c++ {
			assert.InDelta(t, sum[c], out[c], 1e-10, "conservation")
		}

		assert.GreaterOrEqual(t, k.fv[3].Energy(), 0.0)
		assert.Greater(t, k.prefactor, 0.0)
	}
}

func TestUltrarelativisticAgreesWithGeneral(t *testing.T) {
	msq := [4]float64{0, 0, 0, 0}
	in := newKinematicInput(
		geom.NewVec3(0.8, 0.1, 1.0),
		geom.NewVec3(5.0, -0.6, 2.2),
		geom.NewVec3(1.0, 0.4, 0.3),
	)

	kins, n := solveKinematics(&in, &msq, discardLogger())
	require.Equal(t, 1, n, "massless kinematics has a single physical root")

	ur, ok := solveKinematicsUltrarelativistic(&in)
	require.True(t, ok)

	assert.InDelta(t, kins[0].prefactor, ur.prefactor, 1e-10)
	for leg := 0; leg < 4; leg++ {
		for c := 0; c < 4; c++ {
			assert.InDelta(t, kins[0].fv[leg][c], ur.fv[leg][c], 1e-9)
		}
	}
}

func TestNoRootAboveEnergyBudget(t *testing.T) {
	// A heavy outgoing particle that cannot be produced from the
	// available energy leaves no physical root.
	msq := [4]float64{0, 0, 400, 0}
	in := newKinematicInput(
		geom.NewVec3(0.5, 0.2, 0.0),
		geom.NewVec3(0.5, -0.1, 1.0),
		geom.NewVec3(1.0, 0.9, 0.4),
	)

	_, n := solveKinematics(&in, &msq, discardLogger())
	assert.Equal(t, 0, n)
}

func BenchmarkSolveKinematics(b *testing.B) {
	msq := [4]float64{0.25, 0.0, 0.25, 3.0}
	in := newKinematicInput(
		geom.NewVec3(1.3, 0.4, 0.0),
		geom.NewVec3(2.1, -0.3, 1.2),
		geom.NewVec3(1.0, 0.7, 2.5),
	)
	log := discardLogger()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		solveKinematics(&in, &msq, log)
	}
}
