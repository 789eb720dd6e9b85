// internal/ecrt/igh/igh.go
//go:build igh && linux && cgo

package igh

/*
#cgo LDFLAGS: -lethercat

#include <stdlib.h>
#include <ecrt.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/tamzrod/ecat-drive/internal/ecrt"
)

// Binding to the IgH EtherCAT master userspace library (libethercat).
//
// Everything handed to the library lives in C memory: the PDO tables and
// the registration list carry pointers, which cgo does not allow for Go
// memory. All of it is freed on Release.

// Open requests the master at index. Matches ecrt.Opener.
func Open(index uint) (ecrt.Master, error) {
	m := C.ecrt_request_master(C.uint(index))
	if m == nil {
		return nil, fmt.Errorf("igh: ecrt_request_master(%d) failed", index)
	}
	return &master{m: m}, nil
}

type master struct {
	m        *C.ec_master_t
	domains  []*domain
	allocs   []unsafe.Pointer
	released bool
}

func (ms *master) calloc(n int, size C.size_t) unsafe.Pointer {
	p := C.calloc(C.size_t(n), size)
	ms.allocs = append(ms.allocs, p)
	return p
}

func (ms *master) CreateDomain() (ecrt.Domain, error) {
	d := C.ecrt_master_create_domain(ms.m)
	if d == nil {
		return nil, errors.New("igh: ecrt_master_create_domain failed")
	}
	dom := &domain{owner: ms, d: d}
	ms.domains = append(ms.domains, dom)
	return dom, nil
}

func (ms *master) SlaveConfig(alias, position uint16, vendorID, productCode uint32) (ecrt.SlaveConfig, error) {
	sc := C.ecrt_master_slave_config(ms.m,
		C.uint16_t(alias), C.uint16_t(position),
		C.uint32_t(vendorID), C.uint32_t(productCode))
	if sc == nil {
		return nil, fmt.Errorf("igh: ecrt_master_slave_config(%d:%d) failed", alias, position)
	}
	return &slaveConfig{owner: ms, sc: sc}, nil
}

func (ms *master) Activate() error {
	if rc := C.ecrt_master_activate(ms.m); rc != 0 {
		return fmt.Errorf("igh: ecrt_master_activate: %d", int(rc))
	}
	for _, d := range ms.domains {
		d.bind()
	}
	return nil
}

// ---- PER-CYCLE ----

func (ms *master) ApplicationTime(ns uint64) {
	C.ecrt_master_application_time(ms.m, C.uint64_t(ns))
}

func (ms *master) SyncReferenceClock() { C.ecrt_master_sync_reference_clock(ms.m) }
func (ms *master) SyncSlaveClocks()    { C.ecrt_master_sync_slave_clocks(ms.m) }
func (ms *master) Receive()            { C.ecrt_master_receive(ms.m) }
func (ms *master) Send()               { C.ecrt_master_send(ms.m) }

// Release gives the master back to the kernel module. Domains and slave
// configs die with it.
func (ms *master) Release() {
	if ms.released {
		return
	}
	ms.released = true

	C.ecrt_release_master(ms.m)
	for _, d := range ms.domains {
		d.data = nil
	}
	for _, p := range ms.allocs {
		C.free(p)
	}
	ms.allocs = nil
}

// ---- DOMAIN ----

type domain struct {
	owner *master
	d     *C.ec_domain_t
	data  []byte
}

func (dm *domain) bind() {
	p := C.ecrt_domain_data(dm.d)
	n := int(C.ecrt_domain_size(dm.d))
	if p == nil || n <= 0 {
		return
	}
	dm.data = unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

func (dm *domain) RegisterPDOEntryList(regs []ecrt.PDOEntryReg) ([]uint32, error) {
	if len(regs) == 0 {
		return nil, errors.New("igh: empty registration list")
	}

	// +1 for the zeroed terminator
	list := unsafe.Slice((*C.ec_pdo_entry_reg_t)(dm.owner.calloc(len(regs)+1, C.sizeof_ec_pdo_entry_reg_t)), len(regs)+1)
	offs := unsafe.Slice((*C.uint)(dm.owner.calloc(len(regs), C.sizeof_uint)), len(regs))

	for i, r := range regs {
		list[i].alias = C.uint16_t(r.Alias)
		list[i].position = C.uint16_t(r.Position)
		list[i].vendor_id = C.uint32_t(r.VendorID)
		list[i].product_code = C.uint32_t(r.ProductCode)
		list[i].index = C.uint16_t(r.Index)
		list[i].subindex = C.uint8_t(r.Subindex)
		list[i].offset = &offs[i]
	}

	if rc := C.ecrt_domain_reg_pdo_entry_list(dm.d, &list[0]); rc != 0 {
		return nil, fmt.Errorf("igh: ecrt_domain_reg_pdo_entry_list: %d", int(rc))
	}

	out := make([]uint32, len(regs))
	for i := range offs {
		out[i] = uint32(offs[i])
	}
	return out, nil
}

func (dm *domain) Data() []byte { return dm.data }
func (dm *domain) Process()     { C.ecrt_domain_process(dm.d) }
func (dm *domain) Queue()       { C.ecrt_domain_queue(dm.d) }

// ---- SLAVE CONFIG ----

type slaveConfig struct {
	owner *master
	sc    *C.ec_slave_config_t
}

func cDirection(d ecrt.Direction) C.ec_direction_t {
	switch d {
	case ecrt.DirOutput:
		return C.EC_DIR_OUTPUT
	case ecrt.DirInput:
		return C.EC_DIR_INPUT
	default:
		return C.EC_DIR_INVALID
	}
}

func cWatchdog(w ecrt.Watchdog) C.ec_watchdog_mode_t {
	switch w {
	case ecrt.WatchdogEnable:
		return C.EC_WD_ENABLE
	case ecrt.WatchdogDisable:
		return C.EC_WD_DISABLE
	default:
		return C.EC_WD_DEFAULT
	}
}

func (s *slaveConfig) ConfigPDOs(syncs []ecrt.SyncInfo) error {
	if len(syncs) == 0 {
		return errors.New("igh: no sync managers")
	}

	// 0xff index terminates the list
	cs := unsafe.Slice((*C.ec_sync_info_t)(s.owner.calloc(len(syncs)+1, C.sizeof_ec_sync_info_t)), len(syncs)+1)

	for i, sm := range syncs {
		cs[i].index = C.uint8_t(sm.Index)
		cs[i].dir = cDirection(sm.Dir)
		cs[i].watchdog_mode = cWatchdog(sm.Watchdog)

		if len(sm.PDOs) == 0 {
			continue
		}
		pdos := unsafe.Slice((*C.ec_pdo_info_t)(s.owner.calloc(len(sm.PDOs), C.sizeof_ec_pdo_info_t)), len(sm.PDOs))
		for j, p := range sm.PDOs {
			pdos[j].index = C.uint16_t(p.Index)
			if len(p.Entries) == 0 {
				continue
			}
			ents := unsafe.Slice((*C.ec_pdo_entry_info_t)(s.owner.calloc(len(p.Entries), C.sizeof_ec_pdo_entry_info_t)), len(p.Entries))
			for k, e := range p.Entries {
				ents[k].index = C.uint16_t(e.Index)
				ents[k].subindex = C.uint8_t(e.Subindex)
				ents[k].bit_length = C.uint8_t(e.BitLen)
			}
			pdos[j].n_entries = C.uint(len(p.Entries))
			pdos[j].entries = &ents[0]
		}
		cs[i].n_pdos = C.uint(len(sm.PDOs))
		cs[i].pdos = &pdos[0]
	}
	cs[len(syncs)].index = 0xff

	if rc := C.ecrt_slave_config_pdos(s.sc, C.EC_END, &cs[0]); rc != 0 {
		return fmt.Errorf("igh: ecrt_slave_config_pdos: %d", int(rc))
	}
	return nil
}

// ConfigDC never fails on libethercat 1.5; the call is void there.
func (s *slaveConfig) ConfigDC(assignActivate uint16, sync0Cycle uint32, sync0Shift int32, sync1Cycle uint32, sync1Shift int32) error {
	C.ecrt_slave_config_dc(s.sc,
		C.uint16_t(assignActivate),
		C.uint32_t(sync0Cycle), C.int32_t(sync0Shift),
		C.uint32_t(sync1Cycle), C.int32_t(sync1Shift))
	return nil
}
