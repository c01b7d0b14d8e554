package metrics

import (
	"fmt"

	"github.com/san-kum/ljmd/internal/compute"
)

// KineticKernel writes, per work item, the sum of squared speeds of the
// particles that item owns. Mass and unit prefactors are applied on the host.
type KineticKernel struct {
	Vx, Vy, Vz *compute.Buffer
	Ekin       *compute.Buffer
	N          int
}

func (k *KineticKernel) Name() string { return "ekin" }

func (k *KineticKernel) Exec(item, size int) error {
	ek := k.Ekin.View()
	if item >= len(ek) {
		return fmt.Errorf("ekin partials hold %d slots, item %d out of range", len(ek), item)
	}
	vx, vy, vz := k.Vx.View(), k.Vy.View(), k.Vz.View()

	sum := 0.0
	for i := item; i < k.N; i += size {
		sum += vx[i]*vx[i] + vy[i]*vy[i] + vz[i]*vz[i]
	}
	ek[item] = sum
	return nil
}
