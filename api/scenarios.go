/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that put a case and a revision into a
	known workflow state, so the frontend and manual testers can start from
	the interesting part. Every scenario runs through service.Service, so it
	produces the same audit trail as real use.

AVAILABLE SCENARIOS:

	income-change:            Granted case, income revision calculated
	pending-attestation:      Income revision simulated and waiting for attestation
	advance-notice-sent:      Income revision simulated, beneficiary warned in advance
	approved:                 Income revision approved and ready to execute
	stop-abroad:              Stay abroad from March, stop outcome simulated
	unsupported-partial-stop: Stay abroad in April only, outcome cannot be decided
	bootstrap:                Case without decisions, first revision opened

HOW SCENARIOS WORK:
 1. Compute a full-year granted decision for the current year with the
    configured rates
 2. Create the case with that decision and seed the ledger as if it had
    been paid
 3. Open a revision for March through May and drive it forward

Scenarios are additive: each load creates a new case.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "approved"}

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
	"github.com/navikt/su-se-bakover-sub005/service"
)

var ErrUnknownScenario = errors.New("unknown scenario")

// Demo actors.
const (
	ScenarioCaseworker generic.NavIdent = "Z990001"
	ScenarioAttestant  generic.NavIdent = "Z990002"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "income-change",
		Name:        "Income Change",
		Description: "Work income from March lowers the monthly amount; revision calculated",
	},
	{
		ID:          "pending-attestation",
		Name:        "Pending Attestation",
		Description: "Income revision simulated against the ledger and sent to attestation",
	},
	{
		ID:          "advance-notice-sent",
		Name:        "Advance Notice Sent",
		Description: "Income revision simulated and the beneficiary warned; waiting for the answer",
	},
	{
		ID:          "approved",
		Name:        "Approved",
		Description: "Income revision approved by a second caseworker, ready to execute",
	},
	{
		ID:          "stop-abroad",
		Name:        "Stop: Stay Abroad",
		Description: "Beneficiary abroad from March; stop outcome simulated",
	},
	{
		ID:          "unsupported-partial-stop",
		Name:        "Unsupported Partial Stop",
		Description: "Beneficiary abroad in April only; the outcome cannot be decided as one act",
	},
	{
		ID:          "bootstrap",
		Name:        "Bootstrap",
		Description: "Case without decisions; first revision opened for the whole year",
	},
}

// ListScenarios returns available scenarios.
func ListScenarios() []ScenarioDTO {
	return scenarios
}

// LedgerSeeder is implemented by ledgers that can pretend past payments happened.
type LedgerSeeder interface {
	Seed(caseID generic.CaseID, month generic.Period, amount generic.Money)
}

type Scenarios struct {
	Service *service.Service
	Engine  *calculation.Engine
	Ledger  LedgerSeeder // optional
	Clock   generic.Clock
}

// NewScenarios wires scenario loading. ledger is used for seeding only if it
// implements LedgerSeeder.
func NewScenarios(svc *service.Service, rates calculation.RateTable, ledger generic.Ledger, clock generic.Clock) *Scenarios {
	s := &Scenarios{Service: svc, Engine: calculation.NewEngine(rates), Clock: clock}
	if seeder, ok := ledger.(LedgerSeeder); ok {
		s.Ledger = seeder
	}
	if s.Clock == nil {
		s.Clock = generic.SystemClock{}
	}
	return s
}

// Load creates the scenario's case and drives its revision to the scenario's state.
func (s *Scenarios) Load(ctx context.Context, id string) (*LoadScenarioResponse, error) {
	var def *ScenarioDTO
	for i := range scenarios {
		if scenarios[i].ID == id {
			def = &scenarios[i]
		}
	}
	if def == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	year := s.Clock.Now().Year()
	if id == "bootstrap" {
		return s.loadBootstrap(ctx, *def, year)
	}

	c, err := s.grantedCase(ctx, year)
	if err != nil {
		return nil, err
	}
	marToMay := generic.Months(generic.StartOfMonth(year, time.March), 3)

	p := service.CreateParams{
		CaseID:     c.ID,
		Period:     marToMay,
		Caseworker: ScenarioCaseworker,
		Cause:      revision.CauseInformationFromBeneficiary,
	}
	switch id {
	case "stop-abroad":
		p.Justification = "beneficiary moved abroad"
		p.Aspects = benefit.AspectSet{benefit.AspectStayAbroad}
		p.Grounds = benefit.Grounds{StayAbroad: []benefit.StayAbroadGround{{Period: marToMay, Abroad: true}}}
	case "unsupported-partial-stop":
		p.Justification = "beneficiary abroad in April"
		p.Aspects = benefit.AspectSet{benefit.AspectStayAbroad}
		p.Grounds = benefit.Grounds{StayAbroad: []benefit.StayAbroadGround{
			{Period: generic.Months(marToMay.Start, 1), Abroad: false},
			{Period: generic.Months(marToMay.Start.AddMonths(1), 1), Abroad: true},
			{Period: generic.Months(marToMay.Start.AddMonths(2), 1), Abroad: false},
		}}
	default:
		p.Justification = "new employment from March"
		p.Aspects = benefit.AspectSet{benefit.AspectIncome}
		p.Grounds = benefit.Grounds{Income: []benefit.IncomeGround{
			{Period: marToMay, Kind: benefit.IncomeWork, Monthly: generic.NOK(5000)},
		}}
	}

	created, err := s.Service.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	rid := created.ID
	steps := s.stepsFor(id)
	for _, step := range steps {
		if err := step(ctx, rid); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", id, err)
		}
	}
	return &LoadScenarioResponse{Scenario: *def, CaseID: string(c.ID), Revisions: []string{string(rid)}}, nil
}

type scenarioStep func(ctx context.Context, id generic.RevisionID) error

func (s *Scenarios) stepsFor(id string) []scenarioStep {
	calculate := func(ctx context.Context, rid generic.RevisionID) error {
		_, err := s.Service.Recalculate(ctx, rid, ScenarioCaseworker)
		return err
	}
	simulate := func(ctx context.Context, rid generic.RevisionID) error {
		_, err := s.Service.Simulate(ctx, rid, ScenarioCaseworker)
		return err
	}
	skipNotice := func(ctx context.Context, rid generic.RevisionID) error {
		_, err := s.Service.SkipAdvanceNotice(ctx, rid, ScenarioCaseworker)
		return err
	}
	notify := func(ctx context.Context, rid generic.RevisionID) error {
		_, err := s.Service.SendAdvanceNotice(ctx, rid, ScenarioCaseworker, "We have been told you started working in March.")
		return err
	}
	send := func(ctx context.Context, rid generic.RevisionID) error {
		_, err := s.Service.SendToAttestation(ctx, rid, ScenarioCaseworker)
		return err
	}
	approve := func(ctx context.Context, rid generic.RevisionID) error {
		_, err := s.Service.SubmitForApproval(ctx, rid, ScenarioAttestant, revision.DecisionApproved, nil)
		return err
	}

	switch id {
	case "pending-attestation":
		return []scenarioStep{calculate, simulate, skipNotice, send}
	case "advance-notice-sent":
		return []scenarioStep{calculate, simulate, notify}
	case "approved":
		return []scenarioStep{calculate, simulate, skipNotice, send, approve}
	case "stop-abroad", "unsupported-partial-stop":
		return []scenarioStep{calculate, simulate}
	default:
		return []scenarioStep{calculate}
	}
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

func baseGrounds(p generic.Period) benefit.Grounds {
	return benefit.Grounds{
		Household:  []benefit.HouseholdGround{{Period: p, Composition: benefit.HouseholdAlone}},
		Disability: []benefit.DisabilityGround{{Period: p, Fulfilled: true}},
	}
}

// grantedCase creates a case granted for the whole year with the rates in
// force, and seeds the ledger with those payments.
func (s *Scenarios) grantedCase(ctx context.Context, year int) (*benefit.Case, error) {
	yearPeriod := generic.Months(generic.StartOfMonth(year, time.January), 12)
	grounds := baseGrounds(yearPeriod)

	sched, err := s.Engine.Calculate(calculation.Input{
		Case:     benefit.NewCase("scenario", "", s.Clock.Now()),
		Period:   yearPeriod,
		Aspects:  benefit.AspectSet{benefit.AspectDisability, benefit.AspectHousehold},
		Supplied: grounds,
		AsOf:     s.Clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	c, err := s.Service.CreateCase(ctx, beneficiaryFor(s.Clock.Now()), &benefit.Decision{
		Period:  yearPeriod,
		Outcome: benefit.OutcomeGranted,
		Lines:   sched.Lines(),
		Grounds: grounds,
	})
	if err != nil {
		return nil, err
	}
	if s.Ledger != nil {
		for _, l := range sched.Lines() {
			s.Ledger.Seed(c.ID, l.Month, l.Amount)
		}
	}
	return c, nil
}

func (s *Scenarios) loadBootstrap(ctx context.Context, def ScenarioDTO, year int) (*LoadScenarioResponse, error) {
	c, err := s.Service.CreateCase(ctx, beneficiaryFor(s.Clock.Now()), nil)
	if err != nil {
		return nil, err
	}
	yearPeriod := generic.Months(generic.StartOfMonth(year, time.January), 12)
	created, err := s.Service.Create(ctx, service.CreateParams{
		CaseID:        c.ID,
		Period:        yearPeriod,
		Caseworker:    ScenarioCaseworker,
		Cause:         revision.CauseNewInformation,
		Justification: "decision migrated from the previous system",
		Aspects:       benefit.AspectSet{benefit.AspectDisability, benefit.AspectHousehold},
		Grounds:       baseGrounds(yearPeriod),
		Bootstrap:     true,
	})
	if err != nil {
		return nil, err
	}
	return &LoadScenarioResponse{Scenario: def, CaseID: string(c.ID), Revisions: []string{string(created.ID)}}, nil
}

// beneficiaryFor makes an 11-digit demo identifier that differs per load.
func beneficiaryFor(t time.Time) generic.BeneficiaryID {
	return generic.BeneficiaryID(fmt.Sprintf("%011d", t.UnixNano()%100000000000))
}
