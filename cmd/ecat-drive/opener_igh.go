// cmd/ecat-drive/opener_igh.go
//go:build igh && linux && cgo

package main

import (
	"github.com/tamzrod/ecat-drive/internal/ecrt"
	"github.com/tamzrod/ecat-drive/internal/ecrt/igh"
)

func hardwareOpener() (ecrt.Opener, bool) { return igh.Open, true }
