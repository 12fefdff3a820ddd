// Package config loads hospicon's three textual inputs: the
// key=value properties file (spec §6), the YAML run configuration,
// and the hospital/patient JSON documents (see hospital.go for the
// JSON schemas themselves).
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Properties holds the required keys of spec §6's properties file.
type Properties struct {
	StopAt                uint64 `validate:"required"`
	SecondsPerTick        uint64 `validate:"required"`
	XProcess              int    `validate:"gte=1"`
	YProcess              int    `validate:"gte=1"`
	ChairManagerRank      int    `validate:"gte=0"`
	ReceptionManagerRank  int    `validate:"gte=0"`
	TriageManagerRank     int    `validate:"gte=0"`
	DoctorsManagerRank    int    `validate:"gte=0"`
	ICUManagerRank        int    `validate:"gte=0"`
	PatientsPath          string `validate:"required"`
	PlanPath              string `validate:"required"`
	PatientInfectedChance float64 `validate:"gte=0,lte=1"`

	// Extra holds any key not covered by the required set above, so
	// deployment-specific properties still round-trip through Get.
	Extra map[string]string
}

var validate = validator.New()

// ParseProperties reads a key=value properties file in the style of
// Java .properties / the original repast_hpc::Properties loader.
// Blank lines and lines starting with '#' are ignored.
func ParseProperties(r io.Reader) (*Properties, error) {
	raw := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, fmt.Errorf("malformed properties line: %q", line)
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		raw[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading properties: %w", err)
	}

	p := &Properties{Extra: make(map[string]string)}
	required := map[string]bool{
		"stop.at": true, "seconds.per.tick": true, "x.process": true, "y.process": true,
		"chair.manager.rank": true, "reception.manager.rank": true, "triage.manager.rank": true,
		"doctors.manager.rank": true, "icu.manager.rank": true, "patients.path": true,
		"plan.path": true, "patient.infected.chance": true,
	}

	var err error
	if p.StopAt, err = parseUint(raw, "stop.at"); err != nil {
		return nil, err
	}
	if p.SecondsPerTick, err = parseUint(raw, "seconds.per.tick"); err != nil {
		return nil, err
	}
	if p.XProcess, err = parseInt(raw, "x.process"); err != nil {
		return nil, err
	}
	if p.YProcess, err = parseInt(raw, "y.process"); err != nil {
		return nil, err
	}
	if p.ChairManagerRank, err = parseInt(raw, "chair.manager.rank"); err != nil {
		return nil, err
	}
	if p.ReceptionManagerRank, err = parseInt(raw, "reception.manager.rank"); err != nil {
		return nil, err
	}
	if p.TriageManagerRank, err = parseInt(raw, "triage.manager.rank"); err != nil {
		return nil, err
	}
	if p.DoctorsManagerRank, err = parseInt(raw, "doctors.manager.rank"); err != nil {
		return nil, err
	}
	if p.ICUManagerRank, err = parseInt(raw, "icu.manager.rank"); err != nil {
		return nil, err
	}
	p.PatientsPath = raw["patients.path"]
	p.PlanPath = raw["plan.path"]
	if p.PatientInfectedChance, err = parseFloat(raw, "patient.infected.chance"); err != nil {
		return nil, err
	}

	for k, v := range raw {
		if !required[k] {
			p.Extra[k] = v
		}
	}

	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid properties: %w", err)
	}
	return p, nil
}

// LoadProperties opens and parses a properties file by path.
func LoadProperties(path string) (*Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening properties file: %w", err)
	}
	defer f.Close()
	return ParseProperties(f)
}

func parseUint(raw map[string]string, key string) (uint64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("missing required property %q", key)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("property %q: %w", key, err)
	}
	return n, nil
}

func parseInt(raw map[string]string, key string) (int, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("missing required property %q", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("property %q: %w", key, err)
	}
	return n, nil
}

func parseFloat(raw map[string]string, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("missing required property %q", key)
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("property %q: %w", key, err)
	}
	return n, nil
}

// Get returns an extra (non-required) property, if present.
func (p *Properties) Get(key string) (string, bool) {
	v, ok := p.Extra[key]
	return v, ok
}
