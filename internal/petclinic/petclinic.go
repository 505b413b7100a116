// Package petclinic describes the parts of the pet clinic API that the
// traffic generator calls: reference data, endpoint paths and payloads.
package petclinic

import (
	"fmt"
	"sort"
	"time"
)

// MinPetID and MaxPetID bound the pets seeded in the sample database.
const (
	MinPetID = 1
	MaxPetID = 13
)

// petOwners maps every seeded pet to its owner. Several pets share an owner.
var petOwners = map[int]int{
	1:  1,
	2:  2,
	3:  3,
	4:  3,
	5:  4,
	6:  5,
	7:  6,
	8:  6,
	9:  7,
	10: 8,
	11: 9,
	12: 10,
	13: 10,
}

// OwnerOf returns the owner of pet, and false if pet is not seeded.
func OwnerOf(pet int) (int, bool) {
	owner, ok := petOwners[pet]
	return owner, ok
}

// PetIDs returns the seeded pet ids in ascending order.
func PetIDs() []int {
	ids := make([]int, 0, len(petOwners))
	for id := range petOwners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Intn draws an integer from an inclusive range.
type Intn interface {
	Int(min, max int) int
}

// RandomPet picks a seeded pet uniformly and returns it with its owner.
func RandomPet(r Intn) (pet, owner int) {
	pet = r.Int(MinPetID, MaxPetID)
	owner = petOwners[pet]
	return pet, owner
}

// Fixed ids used by the tasks that do not pick a random pet.
const (
	// GatewayOwnerID is read back after every low-traffic visit.
	GatewayOwnerID = 1
	// InvalidOwnerID never exists and always produces an error response.
	InvalidOwnerID = -1
	// PetOwnerID receives every pet created by the generator.
	PetOwnerID = 7
	// DiagnoseOwnerID and DiagnosePetID are the diagnostics target.
	DiagnoseOwnerID = 1
	DiagnosePetID   = 1
)

// VisitsPath is the visits collection of a pet.
func VisitsPath(owner, pet int) string {
	return fmt.Sprintf("/api/visit/owners/%d/pets/%d/visits", owner, pet)
}

// GatewayOwnerPath reads an owner through the API gateway.
func GatewayOwnerPath(owner int) string {
	return fmt.Sprintf("/api/gateway/owners/%d", owner)
}

// DiagnosePath triggers the customers service diagnostics for a pet.
func DiagnosePath(owner, pet int) string {
	return fmt.Sprintf("/api/customer/diagnose/owners/%d/pets/%d", owner, pet)
}

// OwnersPath is the owners collection.
const OwnersPath = "/api/customer/owners"

// OwnerPetsPath is the pets collection of an owner.
func OwnerPetsPath(owner int) string {
	return fmt.Sprintf("/api/customer/owners/%d/pets", owner)
}

// PaymentsPath is the payments collection of a pet.
func PaymentsPath(owner, pet int) string {
	return fmt.Sprintf("/api/payments/owners/%d/pets/%d", owner, pet)
}

// PaymentsCleanPath empties the payments table.
const PaymentsCleanPath = "/api/payments/clean-db"

// Visit is the body of a visit creation.
type Visit struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// Owner is the body of an owner creation.
type Owner struct {
	FirstName string `json:"firstName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Telephone string `json:"telephone"`
	LastName  string `json:"lastName"`
}

// Pet is the body of a pet creation. TypeID is sent as a string.
type Pet struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	BirthDate string `json:"birthDate"`
	TypeID    string `json:"typeId"`
}

// Payment is the body of a payment creation.
type Payment struct {
	Amount int    `json:"amount"`
	Notes  string `json:"notes"`
}

// Pet type ids.
const (
	PetTypeCat = "1"
	PetTypeDog = "2"
)

// NewTrafficOwner returns the owner created by the owner tasks.
func NewTrafficOwner() Owner {
	return Owner{
		FirstName: "random-traffic",
		Address:   "A",
		City:      "B",
		Telephone: "123489067542",
		LastName:  "NA",
	}
}

// NewTrafficPet returns a pet named after the wall clock time at now.
func NewTrafficPet(now time.Time, typeID string) Pet {
	return Pet{
		ID:        0,
		Name:      "lastName" + now.Format("15:04:05"),
		BirthDate: "2023-11-20T08:00:00.000Z",
		TypeID:    typeID,
	}
}
