// Package confirmcmd implements smpctl's "confirm" subcommand: the
// hash-addressed pending/confirm write against the image_state group.
package confirmcmd

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/openenterprise/smpboot/cmd/smpctl/commands"
	"github.com/openenterprise/smpboot/cmd/smpctl/transport"
	"github.com/openenterprise/smpboot/image"
	"github.com/openenterprise/smpboot/rc"
	"github.com/openenterprise/smpboot/smp"
	wirecbor "github.com/openenterprise/smpboot/wire/cbor"
)

var _ commands.Command = (*Command)(nil)

// Command is the "confirm" verb: marks a pending image permanent, or
// commits a test boot of the image matching a given hash.
type Command struct {
	commands.ConnOptions
	commands.AuthOptions

	Hash    string `long:"hash" description:"hex-encoded image hash to select (omit to act on the single configured image)"`
	Confirm bool   `long:"confirm" description:"make the selection permanent rather than test-boot-once"`
}

func (*Command) ShortDescription() string { return "mark an image pending or confirmed" }
func (*Command) LongDescription() string {
	return "Writes the image_state group to select a secondary-slot image by hash for test boot, or confirm it permanently."
}

// Execute runs the command.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("confirm: unexpected arguments: %v", args)
	}
	if err := commands.Authorize(cmd.AuthOptions); err != nil {
		return err
	}

	req := image.SetRequest{Confirm: &cmd.Confirm}
	if cmd.Hash != "" {
		h, err := hex.DecodeString(cmd.Hash)
		if err != nil {
			return fmt.Errorf("confirm: --hash is not valid hex: %w", err)
		}
		req.Hash = h
	}

	enc := wirecbor.NewEncoder(1024)
	if err := enc.Encode(req); err != nil {
		return fmt.Errorf("confirm: encode request: %w", err)
	}

	client, err := transport.Dial(cmd.Addr, time.Duration(cmd.Timeout)*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	_, payload, err := client.Call(smp.OpWrite, smp.GroupImage, smp.IDImageState, enc.Bytes())
	if err != nil {
		return err
	}

	var failure struct {
		RC int `cbor:"rc"`
	}
	if err := wirecbor.Decode(payload, &failure); err == nil && failure.RC != rc.OK {
		return fmt.Errorf("confirm: bootloader returned %s", rc.String(failure.RC))
	}

	fmt.Println("confirm: ok")
	return nil
}
