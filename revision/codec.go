package revision

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/simulation"
)

// envelope is the stored form of every state. Fields not valid in a state stay empty.
type envelope struct {
	Status      Status                `json:"status"`
	Core        Core                  `json:"core"`
	Schedule    *calculation.Schedule `json:"schedule,omitempty"`
	Outcome     *Outcome              `json:"outcome,omitempty"`
	Simulation  *simulation.Preview   `json:"simulation,omitempty"`
	Attestation *Attestation          `json:"attestation,omitempty"`
	Execution   *ExecutionRecord      `json:"execution,omitempty"`
	SideEffects *SideEffects          `json:"side_effects,omitempty"`
	From        Status                `json:"from,omitempty"`
	Termination *TerminationRecord    `json:"termination,omitempty"`
}

// Marshal encodes a revision for storage.
func Marshal(r Revision) ([]byte, error) {
	env := envelope{Status: r.Status(), Core: r.Base(), Schedule: ScheduleOf(r), Simulation: SimulationOf(r), Attestation: AttestationOf(r)}
	if o, ok := OutcomeOf(r); ok {
		env.Outcome = &o
	}
	switch v := r.(type) {
	case *Executed:
		env.Execution = &v.Execution
		env.SideEffects = &v.SideEffects
	case *Terminated:
		env.From = v.From
		env.Termination = &v.Termination
	}
	return json.Marshal(env)
}

// Unmarshal decodes a stored revision into its state type.
func Unmarshal(data []byte) (Revision, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode revision: %w", err)
	}

	var outcome Outcome
	if env.Outcome != nil {
		outcome = *env.Outcome
	}
	var att Attestation
	if env.Attestation != nil {
		att = *env.Attestation
	}

	needs := func(ok bool, what string) error {
		if !ok {
			return fmt.Errorf("decode revision %s: %s state without %s", env.Core.ID, env.Status, what)
		}
		return nil
	}

	switch env.Status {
	case StatusCreated:
		return &Created{Core: env.Core}, nil
	case StatusCalculated:
		if err := needs(env.Schedule != nil, "schedule"); err != nil {
			return nil, err
		}
		return &Calculated{Core: env.Core, Schedule: env.Schedule, Outcome: outcome}, nil
	case StatusSimulated, StatusPendingAttestation:
		if err := needs(env.Schedule != nil && env.Simulation != nil, "schedule and simulation"); err != nil {
			return nil, err
		}
		if env.Status == StatusSimulated {
			return &Simulated{Core: env.Core, Schedule: env.Schedule, Outcome: outcome, Simulation: env.Simulation}, nil
		}
		return &PendingAttestation{Core: env.Core, Schedule: env.Schedule, Outcome: outcome, Simulation: env.Simulation}, nil
	case StatusApproved:
		if err := needs(env.Schedule != nil && env.Attestation != nil, "schedule and attestation"); err != nil {
			return nil, err
		}
		return &Approved{Core: env.Core, Schedule: env.Schedule, Outcome: outcome, Simulation: env.Simulation, Attestation: att}, nil
	case StatusRejected:
		if err := needs(env.Attestation != nil, "attestation"); err != nil {
			return nil, err
		}
		return &Rejected{Core: env.Core, Schedule: env.Schedule, Outcome: outcome, Simulation: env.Simulation, Attestation: att}, nil
	case StatusExecuted:
		if err := needs(env.Execution != nil, "execution record"); err != nil {
			return nil, err
		}
		e := &Executed{
			Core:        env.Core,
			Schedule:    env.Schedule,
			Outcome:     outcome,
			Simulation:  env.Simulation,
			Attestation: att,
			Execution:   *env.Execution,
		}
		if env.SideEffects != nil {
			e.SideEffects = *env.SideEffects
		}
		return e, nil
	case StatusTerminated:
		if err := needs(env.Termination != nil, "termination record"); err != nil {
			return nil, err
		}
		return &Terminated{Core: env.Core, From: env.From, Termination: *env.Termination}, nil
	}
	return nil, fmt.Errorf("decode revision %s: unknown status %q", env.Core.ID, env.Status)
}
