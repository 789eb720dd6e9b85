// cmd/ecat-drive/opener_nohw.go
//go:build !(igh && linux && cgo)

package main

import "github.com/tamzrod/ecat-drive/internal/ecrt"

func hardwareOpener() (ecrt.Opener, bool) { return nil, false }
