package calculation

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goccy/go-json"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

// StopReason explains why a month pays nothing.
type StopReason string

const (
	StopDisability    StopReason = "disability_not_fulfilled"
	StopWealth        StopReason = "wealth_above_limit"
	StopStayAbroad    StopReason = "stay_abroad"
	StopIncomeTooHigh StopReason = "income_too_high"
	StopBelowMinimum  StopReason = "below_minimum"
)

// Aspect maps a stop reason to the aspect that caused it.
func (r StopReason) Aspect() benefit.Aspect {
	switch r {
	case StopDisability:
		return benefit.AspectDisability
	case StopWealth:
		return benefit.AspectWealth
	case StopStayAbroad:
		return benefit.AspectStayAbroad
	default:
		return benefit.AspectIncome
	}
}

// Inputs records what produced a sub-period's amount.
type Inputs struct {
	Composition benefit.HouseholdComposition `json:"composition"`
	BaseAmount  generic.Money                `json:"base_amount"`
	AnnualRate  generic.Money                `json:"annual_rate"`
	Deductions  generic.Money                `json:"deductions"`
	Wealth      generic.Money                `json:"wealth"`
}

type SubPeriod struct {
	Period      generic.Period `json:"period"`
	Amount      generic.Money  `json:"amount"`
	StopReasons []StopReason   `json:"stop_reasons,omitempty"`
	Inputs      Inputs         `json:"inputs"`
}

func (s SubPeriod) Stopped() bool { return len(s.StopReasons) > 0 }

// Schedule is the projected benefit for a target period.
// It is immutable; recomputation produces a new Schedule.
type Schedule struct {
	CaseID     generic.CaseID       `json:"case_id"`
	Period     generic.Period       `json:"period"`
	Sources    []generic.DecisionID `json:"sources"`
	SubPeriods []SubPeriod          `json:"sub_periods"`
	AsOf       time.Time            `json:"as_of"`
	Checksum   string               `json:"checksum"`
}

// checksumBody is everything the checksum covers. AsOf is left out so that a
// recomputation at a later instant matches unless an input actually changed.
type checksumBody struct {
	CaseID     generic.CaseID       `json:"case_id"`
	Period     generic.Period       `json:"period"`
	Sources    []generic.DecisionID `json:"sources"`
	SubPeriods []SubPeriod          `json:"sub_periods"`
}

// ComputeChecksum returns the hex SHA-256 of the schedule's canonical encoding.
func ComputeChecksum(s *Schedule) string {
	body, err := json.Marshal(checksumBody{
		CaseID:     s.CaseID,
		Period:     s.Period,
		Sources:    s.Sources,
		SubPeriods: s.SubPeriods,
	})
	if err != nil {
		// Only plain structs are encoded here.
		panic(err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// MonthResult is one month of the schedule.
type MonthResult struct {
	Month       generic.Period
	Amount      generic.Money
	StopReasons []StopReason
}

func (m MonthResult) Stopped() bool { return len(m.StopReasons) > 0 }

// Months expands the schedule to one entry per calendar month.
func (s *Schedule) Months() []MonthResult {
	var out []MonthResult
	for _, sp := range s.SubPeriods {
		for _, m := range sp.Period.MonthList() {
			out = append(out, MonthResult{Month: m, Amount: sp.Amount, StopReasons: sp.StopReasons})
		}
	}
	return out
}

// Lines converts the schedule to the monthly lines a decision stores.
func (s *Schedule) Lines() []benefit.MonthlyLine {
	var out []benefit.MonthlyLine
	for _, m := range s.Months() {
		out = append(out, benefit.MonthlyLine{Month: m.Month, Amount: m.Amount, Stopped: m.Stopped()})
	}
	return out
}

// PaymentLines converts the schedule to ledger order lines.
func (s *Schedule) PaymentLines() []generic.PaymentLine {
	var out []generic.PaymentLine
	for _, m := range s.Months() {
		kind := generic.LinePayment
		if m.Stopped() {
			kind = generic.LineStop
		}
		out = append(out, generic.PaymentLine{Month: m.Month, Amount: m.Amount, Kind: kind})
	}
	return out
}

// Total sums the payable amount over the whole period.
func (s *Schedule) Total() generic.Money {
	total := generic.NOK(0)
	for _, m := range s.Months() {
		total = total.Add(m.Amount)
	}
	return total
}
