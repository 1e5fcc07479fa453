// Package command validates and issues the commands sent to the simulation engine.
package command

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sherine-k/schedtrace/pkg/model"
	"gopkg.in/yaml.v3"
)

// Name identifies an engine command.
type Name string

const (
	RunSimulationCommand     Name = "run_simulation"
	RunWithParametersCommand Name = "run_with_parameters"
)

// Parameter bounds accepted by the engine.
const (
	MinATLambda  = 0.01
	MaxATLambda  = 1000.0
	MinCBTLambda = 0.00001
	MaxCBTLambda = 1000.0

	MinProcesses = 1
	MaxProcesses = 100

	MinContextSwitch = 1
	MaxContextSwitch = 100000
	MinTimeQuantum   = 1
	MaxTimeQuantum   = 100000

	MaxArrival = 200000
	MinBurst   = 1
	MaxBurst   = 200000
)

// Command is a validated-before-send engine command.
type Command interface {
	Name() Name
	Algorithm() model.Algorithm
	Validate() error
}

// RunSimulation asks the engine to generate and schedule a random workload.
type RunSimulation struct {
	ATLambda       float64  `json:"atLambda" yaml:"atLambda"`
	CBTLambda      float64  `json:"cbtLambda" yaml:"cbtLambda"`
	NumOfProcesses int      `json:"numOfProcesses" yaml:"numOfProcesses"`
	ContextSwitch  int      `json:"contextSwitch" yaml:"contextSwitch"`
	Queue          string   `json:"queue" yaml:"queue"`
	TimeQuantum    *int     `json:"timeQuantum,omitempty" yaml:"timeQuantum,omitempty"`
	DisciplineList []string `json:"disciplineList,omitempty" yaml:"disciplineList,omitempty"`
}

func (c *RunSimulation) Name() Name { return RunSimulationCommand }

// Algorithm returns the parsed queue, or "" when it is unknown.
func (c *RunSimulation) Algorithm() model.Algorithm {
	a, _ := model.ParseAlgorithm(c.Queue)
	return a
}

// Validate checks every parameter and reports all failures at once.
func (c *RunSimulation) Validate() error {
	var chk checker
	chk.floatRange("atLambda", c.ATLambda, MinATLambda, MaxATLambda)
	chk.floatRange("cbtLambda", c.CBTLambda, MinCBTLambda, MaxCBTLambda)
	chk.intRange("numOfProcesses", c.NumOfProcesses, MinProcesses, MaxProcesses)
	validateScheduling(&chk, c.Queue, c.ContextSwitch, c.TimeQuantum, c.DisciplineList)
	return chk.err(c.Name())
}

// RunWithParameters asks the engine to schedule a user-defined workload.
type RunWithParameters struct {
	Processes           []ManualProcess   `json:"processes" yaml:"processes"`
	Queue               string            `json:"queue" yaml:"queue"`
	ContextSwitch       int               `json:"contextSwitch" yaml:"contextSwitch"`
	TimeQuantum         *int              `json:"timeQuantum,omitempty" yaml:"timeQuantum,omitempty"`
	DisciplineList      []string          `json:"disciplineList,omitempty" yaml:"disciplineList,omitempty"`
	SelectedProcessType model.ProcessType `json:"selectedProcessType,omitempty" yaml:"selectedProcessType,omitempty"`
}

func (c *RunWithParameters) Name() Name { return RunWithParametersCommand }

// Algorithm returns the parsed queue, or "" when it is unknown.
func (c *RunWithParameters) Algorithm() model.Algorithm {
	a, _ := model.ParseAlgorithm(c.Queue)
	return a
}

// Validate checks every parameter and reports all failures at once.
func (c *RunWithParameters) Validate() error {
	var chk checker
	if len(c.Processes) == 0 {
		chk.add("processes", "no process specified")
	}
	for i, p := range c.Processes {
		field := fmt.Sprintf("processes[%d]", i)
		chk.intRange(field+".arrival", p.Arrival, 0, MaxArrival)
		chk.intRange(field+".burst", p.Burst, MinBurst, MaxBurst)
		if p.Type != "" && !p.Type.IsValid() {
			chk.add(field+".type", "unknown process type %q", p.Type)
		}
	}
	if c.SelectedProcessType != "" && !c.SelectedProcessType.IsValid() {
		chk.add("selectedProcessType", "unknown process type %q", c.SelectedProcessType)
	}
	validateScheduling(&chk, c.Queue, c.ContextSwitch, c.TimeQuantum, c.DisciplineList)
	return chk.err(c.Name())
}

// validateScheduling checks the parameters shared by both commands.
func validateScheduling(chk *checker, queue string, contextSwitch int, quantum *int, disciplines []string) {
	algorithm, ok := model.ParseAlgorithm(queue)
	if !ok {
		chk.add("queue", "unknown algorithm %q", queue)
	}
	chk.intRange("contextSwitch", contextSwitch, MinContextSwitch, MaxContextSwitch)

	if ok && algorithm.IsPreemptive() {
		if quantum == nil {
			chk.add("timeQuantum", "timeQuantum is required for %s", algorithm)
		} else {
			chk.intRange("timeQuantum", *quantum, MinTimeQuantum, MaxTimeQuantum)
		}
	}

	if disciplines == nil {
		return
	}
	if ok && !algorithm.IsMultiLevel() {
		chk.add("disciplineList", "disciplineList only applies to multi-level algorithms")
		return
	}
	if len(disciplines) != model.MultiLevelLanes {
		chk.add("disciplineList", "disciplineList must have %d entries, got %d", model.MultiLevelLanes, len(disciplines))
		return
	}
	for i, d := range disciplines {
		allowed := model.UpperLaneDisciplines
		if i == model.MultiLevelLanes-1 {
			allowed = model.LowestLaneDisciplines
		}
		a, _ := model.ParseAlgorithm(d)
		if !slices.Contains(allowed, a) {
			chk.add(fmt.Sprintf("disciplineList[%d]", i), "lane %d accepts %v, got %q", i+1, allowed, d)
		}
	}
}

// ManualProcess is one user-defined process. On the wire it is the tuple
// [arrival, burst, type]; the type may be null.
type ManualProcess struct {
	Arrival int               `json:"arrival" yaml:"arrival"`
	Burst   int               `json:"burst" yaml:"burst"`
	Type    model.ProcessType `json:"type,omitempty" yaml:"type,omitempty"`
}

func (p ManualProcess) MarshalJSON() ([]byte, error) {
	var typ *model.ProcessType
	if p.Type != "" {
		typ = &p.Type
	}
	return json.Marshal([]any{p.Arrival, p.Burst, typ})
}

// UnmarshalJSON accepts the tuple form as well as an object.
func (p *ManualProcess) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		type plain ManualProcess
		var obj plain
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("process must be [arrival, burst, type] or an object: %w", err)
		}
		*p = ManualProcess(obj)
		return nil
	}
	if len(tuple) < 2 || len(tuple) > 3 {
		return fmt.Errorf("process tuple must have 2 or 3 elements, got %d", len(tuple))
	}
	*p = ManualProcess{}
	if err := json.Unmarshal(tuple[0], &p.Arrival); err != nil {
		return fmt.Errorf("arrival: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &p.Burst); err != nil {
		return fmt.Errorf("burst: %w", err)
	}
	if len(tuple) == 3 {
		var typ *model.ProcessType
		if err := json.Unmarshal(tuple[2], &typ); err != nil {
			return fmt.Errorf("type: %w", err)
		}
		if typ != nil {
			p.Type = *typ
		}
	}
	return nil
}

// UnmarshalYAML accepts a [arrival, burst, type] sequence as well as a mapping.
func (p *ManualProcess) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		type plain ManualProcess
		var obj plain
		if err := value.Decode(&obj); err != nil {
			return err
		}
		*p = ManualProcess(obj)
		return nil
	}
	if n := len(value.Content); n < 2 || n > 3 {
		return fmt.Errorf("line %d: process sequence must have 2 or 3 elements, got %d", value.Line, n)
	}
	*p = ManualProcess{}
	if err := value.Content[0].Decode(&p.Arrival); err != nil {
		return err
	}
	if err := value.Content[1].Decode(&p.Burst); err != nil {
		return err
	}
	if len(value.Content) == 3 {
		return value.Content[2].Decode(&p.Type)
	}
	return nil
}
