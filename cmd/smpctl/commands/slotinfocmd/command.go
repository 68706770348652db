// Package slotinfocmd implements smpctl's "slotinfo" subcommand: a
// read-only report of slot geometry and upload buffer parameters.
package slotinfocmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/openenterprise/smpboot/cmd/smpctl/commands"
	"github.com/openenterprise/smpboot/cmd/smpctl/transport"
	"github.com/openenterprise/smpboot/rc"
	"github.com/openenterprise/smpboot/slotinfo"
	"github.com/openenterprise/smpboot/smp"
	wirecbor "github.com/openenterprise/smpboot/wire/cbor"
)

var _ commands.Command = (*Command)(nil)

// Command is the "slotinfo" verb.
type Command struct {
	commands.ConnOptions
}

func (*Command) ShortDescription() string { return "print slot geometry and upload buffer size" }
func (*Command) LongDescription() string {
	return "Reads the bootloader's slot_info and params groups and prints each slot's size alongside the negotiated upload buffer geometry."
}

// Execute runs the command.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("slotinfo: unexpected arguments: %v", args)
	}

	client, err := transport.Dial(cmd.Addr, time.Duration(cmd.Timeout)*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	_, slotPayload, err := client.Call(smp.OpRead, smp.GroupImage, smp.IDImageSlotInfo, nil)
	if err != nil {
		return err
	}
	var slots slotinfo.Response
	if err := wirecbor.Decode(slotPayload, &slots); err != nil {
		return fmt.Errorf("slotinfo: decode slot_info response: %w", err)
	}

	_, paramsPayload, err := client.Call(smp.OpRead, smp.GroupOS, smp.IDParams, nil)
	if err != nil {
		return err
	}
	var params slotinfo.ParamsResponse
	if err := wirecbor.Decode(paramsPayload, &params); err != nil {
		return fmt.Errorf("slotinfo: decode params response: %w", err)
	}

	fmt.Printf("upload buffer: %s x%d\n\n", humanize.Bytes(uint64(params.BufSize)), params.BufCount)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Image", "Slot", "Size", "Upload Image ID", "RC"})
	for _, img := range slots.Images {
		for _, s := range img.Slots {
			size := "-"
			if s.Size != nil {
				size = humanize.Bytes(uint64(*s.Size))
			}
			uploadID := "-"
			if s.UploadImageID != nil {
				uploadID = fmt.Sprint(*s.UploadImageID)
			}
			code := "-"
			if s.RC != nil {
				code = rc.String(*s.RC)
			}
			t.AppendRow(table.Row{img.Image, s.Slot, size, uploadID, code})
		}
	}
	t.Render()

	return nil
}
