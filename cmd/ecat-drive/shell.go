// cmd/ecat-drive/shell.go
package main

import (
	"strconv"

	"github.com/abiosoft/ishell/v2"

	"github.com/tamzrod/ecat-drive/internal/drive"
)

// newShell builds the operator shell. Each command maps onto one
// controller call; the loop keeps running between commands.
func newShell(ctrl *drive.Controller) *ishell.Shell {
	shell := ishell.New()
	shell.Println("ecat-drive operator shell")

	shell.AddCmd(&ishell.Cmd{
		Name: "move",
		Help: "move <position> <velocity>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Println("usage: move <position> <velocity>")
				return
			}
			pos, err := strconv.ParseInt(c.Args[0], 10, 32)
			if err != nil {
				c.Err(err)
				return
			}
			vel, err := strconv.ParseInt(c.Args[1], 10, 32)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ctrl.MoveToPosition(int32(pos), int32(vel)); err != nil {
				c.Err(err)
				return
			}
			ctrl.Publisher().Drain()
			c.Println(ctrl.State().StatusMessage)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show drive state",
		Func: func(c *ishell.Context) {
			ctrl.Publisher().Drain()
			s := ctrl.State()
			f := ctrl.Flags()
			st := ctrl.Stats()
			c.Printf("connected:       %v\n", s.Connected)
			c.Printf("status word:     %s\n", s.StatusWord)
			c.Printf("position:        %d\n", s.ActualPosition)
			c.Printf("error code:      0x%04X\n", s.ErrorCode)
			c.Printf("ready:           %v (pending=%v moving=%v)\n", s.ReadyForCommand, f.CommandPending, f.MotionInProgress)
			c.Printf("message:         %s\n", s.StatusMessage)
			c.Printf("loop:            %s cycles=%d max_latency=%dns\n", st.State, st.Cycles, st.MaxLatencyNs)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "init",
		Help: "initialize EtherCAT and start the loop",
		Func: func(c *ishell.Context) {
			if err := ctrl.Initialize(); err != nil {
				c.Err(err)
				return
			}
			c.Println("EtherCAT initialized")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "shutdown",
		Help: "stop the loop and release the master",
		Func: func(c *ishell.Context) {
			ctrl.Shutdown()
			c.Println("EtherCAT disconnected")
		},
	})

	return shell
}
