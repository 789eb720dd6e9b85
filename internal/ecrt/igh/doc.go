// internal/ecrt/igh/doc.go

// Package igh binds ecrt to the IgH EtherCAT master (libethercat).
// Built only with the igh tag on linux with cgo enabled.
package igh
