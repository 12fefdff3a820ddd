package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimeField decodes spec §6's two time encodings: either a bare
// integer count of seconds, or a {day,hours,minutes,seconds} object.
type TimeField struct {
	Seconds uint64
}

// timeObject mirrors the object encoding of TimeField.
type timeObject struct {
	Day     uint64 `json:"day"`
	Hours   uint64 `json:"hours"`
	Minutes uint64 `json:"minutes"`
	Seconds uint64 `json:"seconds"`
}

const secondsPerDay = 24 * 60 * 60

func (t *TimeField) UnmarshalJSON(data []byte) error {
	var asNumber uint64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		t.Seconds = asNumber
		return nil
	}
	var obj timeObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("time field must be a number of seconds or a {day,hours,minutes,seconds} object: %w", err)
	}
	t.Seconds = obj.Day*secondsPerDay + obj.Hours*3600 + obj.Minutes*60 + obj.Seconds
	return nil
}

func (t TimeField) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Seconds)
}

// Coord is the wire representation of a grid coordinate.
type Coord struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// TriageSpec is the wire representation of a triage fixture.
type TriageSpec struct {
	PatientLocation Coord `json:"patient_location"`
}

// ReceptionistSpec is the wire representation of a reception desk.
type ReceptionistSpec struct {
	ReceptionistLocation Coord `json:"receptionist_location"`
	PatientLocation      Coord `json:"patient_location"`
}

// DoctorSpec is the wire representation of a doctor's office.
type DoctorSpec struct {
	DoctorLocation  Coord  `json:"doctor_location"`
	PatientLocation Coord  `json:"patient_location"`
	Specialty       string `json:"specialty"`
}

// ICUSpec is the wire representation of the ICU transition tiles.
type ICUSpec struct {
	EntryLocation Coord `json:"entry_location"`
	ExitLocation  Coord `json:"exit_location"`
}

// BuildingSpec is the `building` object of the hospital JSON document.
type BuildingSpec struct {
	Width         int                `json:"width"`
	Height        int                `json:"height"`
	Walls         []Coord            `json:"walls"`
	Chairs        []Coord            `json:"chairs"`
	Entry         Coord              `json:"entry"`
	Exit          Coord              `json:"exit"`
	Triages       []TriageSpec       `json:"triages"`
	Receptionists []ReceptionistSpec `json:"receptionists"`
	Doctors       []DoctorSpec       `json:"doctors"`
	ICU           ICUSpec            `json:"icu"`
}

// IncubationSpec is the human incubation-time range.
type IncubationSpec struct {
	Min TimeField `json:"min"`
	Max TimeField `json:"max"`
}

// HumanParamsSpec is the `parameters.human` object.
type HumanParamsSpec struct {
	InfectProbability        float64        `json:"infect_probability"`
	InfectDistance           float64        `json:"infect_distance"`
	ContaminationProbability float64        `json:"contamination_probability"`
	IncubationTime           IncubationSpec `json:"incubation_time"`
}

// ObjectParamsSpec is one entry of the `parameters.objects` map.
type ObjectParamsSpec struct {
	InfectProbability float64   `json:"infect_probability"`
	Radius            float64   `json:"radius"`
	CleaningInterval  TimeField `json:"cleaning_interval"`
}

// PatientParamsSpec is the `parameters.patient` object.
type PatientParamsSpec struct {
	WalkSpeed float64 `json:"walk_speed"`
}

// AttentionParamsSpec models `parameters.reception` / `parameters.triage`.
// DiagnosisWindow is only meaningful on the triage entry: it is the
// horizon added to "now" to produce a doctor queue deadline at the
// moment of triage dispatch (spec §4.6 "Dispatch").
type AttentionParamsSpec struct {
	AttentionTime   TimeField `json:"attention_time"`
	DiagnosisWindow TimeField `json:"diagnosis_window"`
}

// DoctorParamsSpec is one entry of the `parameters.doctors` map.
type DoctorParamsSpec struct {
	AttentionDuration TimeField `json:"attention_duration"`
}

// SleepTimeEntry is one (duration,probability) pair of the ICU sleep
// time discrete distribution.
type SleepTimeEntry struct {
	Time        TimeField `json:"time"`
	Probability float64   `json:"probability"`
}

// ICUEnvironmentSpec is the `parameters.icu.environment` object.
type ICUEnvironmentSpec struct {
	InfectionChance float64 `json:"infection_chance"`
}

// ICUParamsSpec is the `parameters.icu` object. ReferralProbability is
// the chance triage sends a patient to the ICU instead of a doctor
// specialty (spec §4.6 "Dispatch").
type ICUParamsSpec struct {
	Beds                uint32             `json:"beds"`
	DeathProbability    float64            `json:"death_probability"`
	ReferralProbability float64            `json:"referral_probability"`
	Environment         ICUEnvironmentSpec `json:"environment"`
	SleepTime           []SleepTimeEntry   `json:"sleep_time"`
}

// PersonnelParamsSpec is the `parameters.personnel` object.
type PersonnelParamsSpec struct {
	Immunity float64 `json:"immunity"`
}

// ParametersSpec is the `parameters` object of the hospital JSON document.
type ParametersSpec struct {
	Human     HumanParamsSpec             `json:"human"`
	Objects   map[string]ObjectParamsSpec `json:"objects"`
	Patient   PatientParamsSpec           `json:"patient"`
	Reception AttentionParamsSpec         `json:"reception"`
	Triage    AttentionParamsSpec         `json:"triage"`
	Doctors   map[string]DoctorParamsSpec `json:"doctors"`
	ICU       ICUParamsSpec               `json:"icu"`
	Personnel PersonnelParamsSpec         `json:"personnel"`
}

// HospitalSpec is the root hospital JSON document (spec §6).
type HospitalSpec struct {
	Building   BuildingSpec   `json:"building"`
	Parameters ParametersSpec `json:"parameters"`
}

// LoadHospitalSpec reads and decodes the hospital JSON document.
func LoadHospitalSpec(path string) (*HospitalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hospital plan: %w", err)
	}
	var spec HospitalSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing hospital plan: %w", err)
	}
	return &spec, nil
}

// PatientDistributionSpec is the patient distribution JSON document.
type PatientDistributionSpec struct {
	Daily          [][]uint32 `json:"daily"`
	InfectedChance []float64  `json:"infected_chance"`
}

// LoadPatientDistribution reads and decodes the patient admission
// histogram JSON document.
func LoadPatientDistribution(path string) (*PatientDistributionSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patient distribution: %w", err)
	}
	var spec PatientDistributionSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing patient distribution: %w", err)
	}
	return &spec, nil
}
