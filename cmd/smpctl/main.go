// smpctl is a portable, non-tinygo CLI client for the SMP-over-UDP
// dispatch loop: it lists and mutates image slot state, uploads firmware,
// and requests a reboot, the same way a fleet operator's laptop would
// talk to a device under test.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/openenterprise/smpboot/cmd/smpctl/commands"
	"github.com/openenterprise/smpboot/cmd/smpctl/commands/confirmcmd"
	"github.com/openenterprise/smpboot/cmd/smpctl/commands/listcmd"
	"github.com/openenterprise/smpboot/cmd/smpctl/commands/resetcmd"
	"github.com/openenterprise/smpboot/cmd/smpctl/commands/slotinfocmd"
	"github.com/openenterprise/smpboot/cmd/smpctl/commands/uploadcmd"
	"github.com/openenterprise/smpboot/version"
)

var knownCommands = map[string]commands.Command{
	"list":     &listcmd.Command{},
	"upload":   &uploadcmd.Command{},
	"confirm":  &confirmcmd.Command{},
	"slotinfo": &slotinfocmd.Command{},
	"reset":    &resetcmd.Command{},
}

func main() {
	if len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Println(version.String())
		return
	}

	parser := flags.NewParser(nil, flags.Default)
	for name, cmd := range knownCommands {
		if _, err := parser.AddCommand(name, cmd.ShortDescription(), cmd.LongDescription(), cmd); err != nil {
			log.Fatalf("smpctl: register command %q: %v", name, err)
		}
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
