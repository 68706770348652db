// Package listcmd implements smpctl's "list" subcommand: a read of the
// image_state group rendered as a table.
package listcmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/openenterprise/smpboot/cmd/smpctl/commands"
	"github.com/openenterprise/smpboot/cmd/smpctl/transport"
	"github.com/openenterprise/smpboot/image"
	"github.com/openenterprise/smpboot/rc"
	"github.com/openenterprise/smpboot/smp"
	wirecbor "github.com/openenterprise/smpboot/wire/cbor"
)

var _ commands.Command = (*Command)(nil)

// Command is the "list" verb: reads and prints every slot's boot state.
type Command struct {
	commands.ConnOptions
}

func (*Command) ShortDescription() string { return "list image slot states" }
func (*Command) LongDescription() string {
	return "Reads the bootloader's image_state group and prints each slot's bootable/confirmed/active/pending/permanent flags."
}

// Execute runs the command.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("list: unexpected arguments: %v", args)
	}

	client, err := transport.Dial(cmd.Addr, time.Duration(cmd.Timeout)*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	_, payload, err := client.Call(smp.OpRead, smp.GroupImage, smp.IDImageState, nil)
	if err != nil {
		return err
	}

	var resp image.ListResponse
	if err := wirecbor.Decode(payload, &resp); err != nil {
		var failure struct {
			RC int `cbor:"rc"`
		}
		if err2 := wirecbor.Decode(payload, &failure); err2 == nil && failure.RC != rc.OK {
			return fmt.Errorf("list: bootloader returned %s", rc.String(failure.RC))
		}
		return fmt.Errorf("list: decode response: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Image", "Slot", "Bootable", "Confirmed", "Active", "Pending", "Permanent", "Version", "Hash"})
	for _, s := range resp.Images {
		img := 0
		if s.Image != nil {
			img = *s.Image
		}
		hash := "-"
		if len(s.Hash) > 0 {
			hash = fmt.Sprintf("%x", s.Hash)
		}
		t.AppendRow(table.Row{img, s.Slot, s.Bootable, s.Confirmed, s.Active, s.Pending, s.Permanent, s.Version, hash})
	}
	t.Render()

	return nil
}
