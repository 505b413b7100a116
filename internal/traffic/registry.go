// Package traffic defines the recurring tasks that make up the generated
// load against the pet clinic.
package traffic

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/trafficgen/internal/http"
	"github.com/wesleyorama2/trafficgen/internal/petclinic"
	"github.com/wesleyorama2/trafficgen/internal/scheduler"
)

// Task names.
const (
	LowTrafficVisits   = "low-traffic-visits"
	HighTrafficBurst   = "high-traffic-burst"
	InvalidRequests    = "invalid-requests"
	DiagnosticCalls    = "diagnostic-calls"
	CreateOwnerLow     = "create-owner-low"
	CreateOwnerHigh    = "create-owner-high"
	AddPetLow          = "add-pet-low"
	AddPetHigh         = "add-pet-high"
	LowTrafficPayments = "low-traffic-payments"
	PaymentCleanup     = "payment-cleanup"
)

// Request names, used as the low-cardinality label in logs and metrics.
const (
	RequestCreateVisit   = "create-visit"
	RequestGetOwner      = "get-owner"
	RequestInvalidOwner  = "get-invalid-owner"
	RequestDiagnose      = "diagnose-pet"
	RequestCreateOwner   = "create-owner"
	RequestCreatePet     = "create-pet"
	RequestCreatePayment = "create-payment"
	RequestGetPayments   = "get-payments"
	RequestCleanPayments = "clean-payments"
)

// Pacing between iterations of a task body.
const (
	LowTrafficPacing = 2 * time.Second
	InvalidPacing    = 2 * time.Second
	DiagnosticPacing = 5 * time.Second
	OwnerLowPacing   = 2 * time.Second
	OwnerHighPacing  = 3 * time.Second
)

// Payment amounts are drawn from this range.
const (
	PaymentAmountMin = 1
	PaymentAmountMax = 111
)

const (
	lowVisitDate    = "2023-08-01"
	highVisitDate   = "2023-08-08"
	lowPaymentNotes = "low-traffic-payment"

	ownerLowWorkload   = 2
	petHighWorkload    = 2
	cleanupWorkload    = 1
	invalidWorkloadMin = 2
	invalidWorkloadMax = 5
	diagWorkloadMin    = 1
	diagWorkloadMax    = 2
	ownerHighMin       = 50
	ownerHighMax       = 80
)

// Range is an inclusive (min, max) pair.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}

// Load holds the configurable intensities.
type Load struct {
	// Low bounds the workload of the steady tasks.
	Low Range `json:"low" yaml:"low"`
	// High bounds the workload of one burst.
	High Range `json:"high" yaml:"high"`
	// BurstDelay bounds the quiet period between bursts, in BurstUnit.
	BurstDelay Range `json:"burstDelay" yaml:"burstDelay"`
	// BurstUnit scales BurstDelay. Zero means a minute.
	BurstUnit time.Duration `json:"-" yaml:"-"`
}

// DefaultLoad returns the intensities used when nothing is configured.
func DefaultLoad() Load {
	return Load{
		Low:        Range{Min: 20, Max: 40},
		High:       Range{Min: 600, Max: 1200},
		BurstDelay: Range{Min: 100, Max: 200},
		BurstUnit:  time.Minute,
	}
}

// Definitions returns every traffic task configured with load.
func Definitions(load Load) []scheduler.Definition {
	return []scheduler.Definition{
		{
			Name:        LowTrafficVisits,
			Description: "visit creation followed by an owner read, paced",
			Cadence:     scheduler.Cron{Spec: "* * * * *"},
			Body:        lowTrafficVisits(load.Low),
		},
		{
			Name:        HighTrafficBurst,
			Description: "unpaced burst of visit creations",
			Cadence: scheduler.Burst{
				MinDelay: load.BurstDelay.Min,
				MaxDelay: load.BurstDelay.Max,
				Unit:     load.BurstUnit,
			},
			Body: highTrafficBurst(load.High),
		},
		{
			Name:        InvalidRequests,
			Description: "reads of an owner that does not exist",
			Cadence:     scheduler.Cron{Spec: "*/5 * * * *"},
			Body:        invalidRequests,
		},
		{
			Name:        DiagnosticCalls,
			Description: "slow diagnostics calls",
			Cadence:     scheduler.Cron{Spec: "* * * * *"},
			Body:        diagnosticCalls,
		},
		{
			Name:        CreateOwnerLow,
			Description: "two owner creations",
			Cadence:     scheduler.Cron{Spec: "*/2 * * * *"},
			Body:        createOwnerLow,
		},
		{
			Name:        CreateOwnerHigh,
			Description: "owner creations after a random delay",
			Cadence:     scheduler.Cron{Spec: "*/2 * * * *"},
			Serialize:   true,
			Body:        createOwnerHigh,
		},
		{
			Name:        AddPetLow,
			Description: "cat creations under a fixed owner",
			Cadence:     scheduler.Cron{Spec: "*/2 * * * *"},
			Body:        addPetLow(load.Low),
		},
		{
			Name:        AddPetHigh,
			Description: "two sequential dog creations after a random delay",
			Cadence:     scheduler.Cron{Spec: "0 * * * *"},
			Body:        addPetHigh,
		},
		{
			Name:        LowTrafficPayments,
			Description: "payment creation followed by a payments read",
			Cadence:     scheduler.Cron{Spec: "* * * * *"},
			Body:        lowTrafficPayments(load.Low),
		},
		{
			Name:        PaymentCleanup,
			Description: "empties the payments table",
			Cadence:     scheduler.Cron{Spec: "0 * * * *"},
			Body:        paymentCleanup,
		},
	}
}

// paced runs n iterations of step, pausing for pacing between them. Only
// an interrupted pause stops the loop early.
func paced(inv *scheduler.Invocation, n int, pacing time.Duration, step func(i int)) error {
	for i := 1; i <= n; i++ {
		if i > 1 && pacing > 0 {
			if err := inv.Pause(pacing); err != nil {
				return err
			}
		}
		step(i)
	}
	return nil
}

// preDelay waits a random number of minutes before the body starts.
func preDelay(inv *scheduler.Invocation, min, max int) error {
	minutes := inv.Int(min, max)
	inv.Logger().WithField("delay", fmt.Sprintf("%dm", minutes)).Info("delaying task body")
	return inv.Pause(time.Duration(minutes) * time.Minute)
}

func workload(inv *scheduler.Invocation, r Range) int {
	n := inv.Int(r.Min, r.Max)
	inv.Logger().WithFields(logrus.Fields{
		"workload": n,
		"range":    r.String(),
	}).Debug("workload drawn")
	return n
}

func lowTrafficVisits(low Range) scheduler.Body {
	return func(inv *scheduler.Invocation) error {
		n := workload(inv, low)
		return paced(inv, n, LowTrafficPacing, func(i int) {
			pet, owner := petclinic.RandomPet(inv)
			inv.Fire(http.Post(RequestCreateVisit, petclinic.VisitsPath(owner, pet), petclinic.Visit{
				Date:        lowVisitDate,
				Description: fmt.Sprintf("low-traffic-visit-%d", i),
			}).WithTimeout(http.DefaultTimeout))
			inv.Fire(http.Get(RequestGetOwner, petclinic.GatewayOwnerPath(petclinic.GatewayOwnerID)).
				WithTimeout(http.DefaultTimeout))
		})
	}
}

func highTrafficBurst(high Range) scheduler.Body {
	return func(inv *scheduler.Invocation) error {
		n := workload(inv, high)
		inv.Logger().WithField("workload", n).Info("sending burst")
		return paced(inv, n, 0, func(i int) {
			pet, owner := petclinic.RandomPet(inv)
			inv.Fire(http.Post(RequestCreateVisit, petclinic.VisitsPath(owner, pet), petclinic.Visit{
				Date:        highVisitDate,
				Description: fmt.Sprintf("high-traffic-visit-%d", i),
			}).WithTimeout(http.DefaultTimeout))
		})
	}
}

func invalidRequests(inv *scheduler.Invocation) error {
	n := workload(inv, Range{Min: invalidWorkloadMin, Max: invalidWorkloadMax})
	return paced(inv, n, InvalidPacing, func(int) {
		inv.Fire(http.Get(RequestInvalidOwner, petclinic.GatewayOwnerPath(petclinic.InvalidOwnerID)).
			WithTimeout(http.DefaultTimeout))
	})
}

func diagnosticCalls(inv *scheduler.Invocation) error {
	n := workload(inv, Range{Min: diagWorkloadMin, Max: diagWorkloadMax})
	return paced(inv, n, DiagnosticPacing, func(int) {
		inv.Fire(http.Get(RequestDiagnose, petclinic.DiagnosePath(petclinic.DiagnoseOwnerID, petclinic.DiagnosePetID)).
			WithTimeout(http.DiagnosticsTimeout))
	})
}

func createOwner(inv *scheduler.Invocation) {
	inv.Fire(http.Post(RequestCreateOwner, petclinic.OwnersPath, petclinic.NewTrafficOwner()).
		WithTimeout(http.DefaultTimeout))
}

func createOwnerLow(inv *scheduler.Invocation) error {
	return paced(inv, ownerLowWorkload, OwnerLowPacing, func(int) {
		createOwner(inv)
	})
}

func createOwnerHigh(inv *scheduler.Invocation) error {
	n := workload(inv, Range{Min: ownerHighMin, Max: ownerHighMax})
	if err := preDelay(inv, 1, 2); err != nil {
		return err
	}
	return paced(inv, n, OwnerHighPacing, func(int) {
		createOwner(inv)
	})
}

func addPetLow(low Range) scheduler.Body {
	return func(inv *scheduler.Invocation) error {
		n := workload(inv, low)
		return paced(inv, n, 0, func(int) {
			pet := petclinic.NewTrafficPet(inv.Now(), petclinic.PetTypeCat)
			inv.Fire(http.Post(RequestCreatePet, petclinic.OwnerPetsPath(petclinic.PetOwnerID), pet).
				WithTimeout(http.DefaultTimeout))
		})
	}
}

func addPetHigh(inv *scheduler.Invocation) error {
	if err := preDelay(inv, 1, 10); err != nil {
		return err
	}
	return paced(inv, petHighWorkload, 0, func(int) {
		pet := petclinic.NewTrafficPet(inv.Now(), petclinic.PetTypeDog)
		inv.Call(http.Post(RequestCreatePet, petclinic.OwnerPetsPath(petclinic.PetOwnerID), pet).
			WithTimeout(http.DefaultTimeout))
	})
}

func lowTrafficPayments(low Range) scheduler.Body {
	return func(inv *scheduler.Invocation) error {
		n := workload(inv, low)
		return paced(inv, n, 0, func(int) {
			amount := inv.Int(PaymentAmountMin, PaymentAmountMax)
			pet, owner := petclinic.RandomPet(inv)
			path := petclinic.PaymentsPath(owner, pet)
			inv.Fire(http.Post(RequestCreatePayment, path, petclinic.Payment{
				Amount: amount,
				Notes:  lowPaymentNotes,
			}).WithTimeout(http.DefaultTimeout))
			inv.Fire(http.Get(RequestGetPayments, path).WithTimeout(http.DefaultTimeout))
		})
	}
}

func paymentCleanup(inv *scheduler.Invocation) error {
	return paced(inv, cleanupWorkload, 0, func(int) {
		inv.Fire(http.Delete(RequestCleanPayments, petclinic.PaymentsCleanPath).WithTimeout(http.DefaultTimeout))
	})
}
