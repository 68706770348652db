// Package resetcmd implements smpctl's "reset" subcommand: requests an
// immediate controlled reboot of the bootloader.
package resetcmd

import (
	"fmt"
	"time"

	"github.com/openenterprise/smpboot/cmd/smpctl/commands"
	"github.com/openenterprise/smpboot/cmd/smpctl/transport"
	"github.com/openenterprise/smpboot/smp"
)

var _ commands.Command = (*Command)(nil)

// Command is the "reset" verb.
type Command struct {
	commands.ConnOptions
	commands.AuthOptions
}

func (*Command) ShortDescription() string { return "reboot the device" }
func (*Command) LongDescription() string {
	return "Sends the os_group reset request and waits for the device's acknowledgement, matching spec's ack-then-reboot sequence."
}

// Execute runs the command.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("reset: unexpected arguments: %v", args)
	}
	if err := commands.Authorize(cmd.AuthOptions); err != nil {
		return err
	}

	client, err := transport.Dial(cmd.Addr, time.Duration(cmd.Timeout)*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, _, err := client.Call(smp.OpWrite, smp.GroupOS, smp.IDReset, nil); err != nil {
		return err
	}

	fmt.Println("reset: device acknowledged, rebooting")
	return nil
}
