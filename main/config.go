package main

import (
	"fmt"
	"strings"

	"github.com/JulianSchoen/WallGo/collision"
)

const exampleConfigText = `[collision]

#######################
# Required Parameters #
#######################

# Number of polynomial basis functions and momentum grid points per
# dimension.
BasisSize = 11

# File containing the matrix elements, one record per line:
# M[a,b,c,d] -> expression
# Indices refer to particles in the order they are listed below.
MatrixElementFile = MatrixElements.txt

# Particle content, in index order. Each name needs a matching
# [particle "name"] section.
Particles = top
Particles = gluon

#######################
# Optional Parameters #
#######################

# OutputDirectory = results

# Monte Carlo configuration. Energies and momenta are in units of the
# temperature.
# MaxIntegrationMomentum = 20
# Calls = 50000
# RelativeErrorGoal = 0.1
# AbsoluteErrorGoal = 1e-8
# MaxTries = 50
# OptimizeUltrarelativistic = true
# Seed = 0
# Workers = 0

# Log a progress line after this many finished grid points. 0 disables.
# ProgressInterval = 0

# Must be "debug", "info", "warn" or "error".
# LogLevel = info

[particle "top"]
Statistics = fermion
InEquilibrium = false
Ultrarelativistic = true
MsqVacuum = 0.0
MsqThermal = 0.251

[particle "gluon"]
Statistics = boson
InEquilibrium = true
Ultrarelativistic = true
MsqVacuum = 0.0
MsqThermal = 0.402

[variable "gs"]
Value = 1.2279920495357861
`

type ConfigWrapper struct {
	Collision CollisionConfig
	Particle  map[string]*ParticleConfig
	Variable  map[string]*VariableConfig
}

type CollisionConfig struct {
	// Required
	BasisSize         int
	MatrixElementFile string
	Particles         []string

	// Optional
	OutputDirectory           string
	MaxIntegrationMomentum    float64
	Calls                     int
	RelativeErrorGoal         float64
	AbsoluteErrorGoal         float64
	MaxTries                  int
	OptimizeUltrarelativistic bool
	Seed                      int64
	Workers                   int
	ProgressInterval          int
	LogLevel                  string
}

type ParticleConfig struct {
	Statistics        string
	InEquilibrium     bool
	Ultrarelativistic bool
	MsqVacuum         float64
	MsqThermal        float64
}

type VariableConfig struct {
	Value float64
}

func DefaultConfigWrapper() *ConfigWrapper {
	con := CollisionConfig{}
	def := collision.DefaultOptions()
	con.OutputDirectory = "."
	con.MaxIntegrationMomentum = def.MaxIntegrationMomentum
	con.Calls = def.Calls
	con.RelativeErrorGoal = def.RelativeErrorGoal
	con.AbsoluteErrorGoal = def.AbsoluteErrorGoal
	con.MaxTries = def.MaxTries
	con.OptimizeUltrarelativistic = def.OptimizeUltrarelativistic
	con.LogLevel = "info"
	return &ConfigWrapper{Collision: con}
}

func (con *CollisionConfig) ValidBasisSize() bool {
	return con.BasisSize >= 1
}
func (con *CollisionConfig) ValidMatrixElementFile() bool {
	return con.MatrixElementFile != ""
}
func (con *CollisionConfig) ValidParticles() bool {
	return len(con.Particles) > 0
}
func (con *CollisionConfig) ValidMaxIntegrationMomentum() bool {
	return con.MaxIntegrationMomentum > 0
}
func (con *CollisionConfig) ValidCalls() bool {
	return con.Calls > 0
}
func (con *CollisionConfig) ValidMaxTries() bool {
	return con.MaxTries > 0
}
func (con *CollisionConfig) ValidLogLevel() bool {
	switch strings.ToLower(con.LogLevel) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Options translates the config into the integration options used by the
// manager.
func (con *CollisionConfig) Options() collision.Options {
	return collision.Options{
		MaxIntegrationMomentum:    con.MaxIntegrationMomentum,
		Calls:                     con.Calls,
		RelativeErrorGoal:         con.RelativeErrorGoal,
		AbsoluteErrorGoal:         con.AbsoluteErrorGoal,
		MaxTries:                  con.MaxTries,
		OptimizeUltrarelativistic: con.OptimizeUltrarelativistic,
		Seed:                      con.Seed,
		Workers:                   con.Workers,
	}
}

func (p *ParticleConfig) ValidStatistics() bool {
	_, err := p.ParsedStatistics()
	return err == nil
}

func (p *ParticleConfig) ParsedStatistics() (collision.Statistics, error) {
	switch strings.ToLower(p.Statistics) {
	case "boson":
		return collision.Boson, nil
	case "fermion":
		return collision.Fermion, nil
	}
	return 0, fmt.Errorf("unrecognized statistics %q, "+
		"must be \"boson\" or \"fermion\"", p.Statistics)
}

// Species builds the particle registry entry for one config section.
func (p *ParticleConfig) Species(name string) (collision.ParticleSpecies, error) {
	stats, err := p.ParsedStatistics()
	if err != nil {
		return collision.ParticleSpecies{}, err
	}
	return collision.ParticleSpecies{
		Name:              name,
		Stats:             stats,
		InEquilibrium:     p.InEquilibrium,
		MsqVacuum:         p.MsqVacuum,
		MsqThermal:        p.MsqThermal,
		Ultrarelativistic: p.Ultrarelativistic,
	}, nil
}

func validateConfig(wrap *ConfigWrapper) error {
	con := &wrap.Collision
	switch {
	case !con.ValidBasisSize():
		return fmt.Errorf("BasisSize must be at least 1, got %d", con.BasisSize)
	case !con.ValidMatrixElementFile():
		return fmt.Errorf("MatrixElementFile must be set")
	case !con.ValidParticles():
		return fmt.Errorf("at least one Particles entry is required")
	case !con.ValidMaxIntegrationMomentum():
		return fmt.Errorf("MaxIntegrationMomentum must be positive, got %g",
			con.MaxIntegrationMomentum)
	case !con.ValidCalls():
		return fmt.Errorf("Calls must be positive, got %d", con.Calls)
	case !con.ValidMaxTries():
		return fmt.Errorf("MaxTries must be positive, got %d", con.MaxTries)
	case !con.ValidLogLevel():
		return fmt.Errorf("unrecognized LogLevel %q", con.LogLevel)
	}

	for _, name := range con.Particles {
		p, ok := wrap.Particle[name]
		if !ok {
			return fmt.Errorf("particle %q listed but has no "+
				"[particle %q] section", name, name)
		}
		if !p.ValidStatistics() {
			_, err := p.ParsedStatistics()
			return fmt.Errorf("particle %q: %w", name, err)
		}
	}
	for name := range wrap.Particle {
		found := false
		for _, listed := range con.Particles {
			found = found || listed == name
		}
		if !found {
			return fmt.Errorf("[particle %q] section is not listed under "+
				"Particles; particle indices would be ambiguous", name)
		}
	}
	return nil
}
