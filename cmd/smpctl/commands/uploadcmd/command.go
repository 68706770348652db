// Package uploadcmd implements smpctl's "upload" subcommand: streams a
// firmware image to the bootloader's secondary slot in chunks of
// --chunk-size bytes, starting each chunk at the offset the device last
// acknowledged and failing if the device does not advance past it.
package uploadcmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/openenterprise/smpboot/cmd/smpctl/commands"
	"github.com/openenterprise/smpboot/cmd/smpctl/transport"
	"github.com/openenterprise/smpboot/rc"
	"github.com/openenterprise/smpboot/smp"
	"github.com/openenterprise/smpboot/upload"
	wirecbor "github.com/openenterprise/smpboot/wire/cbor"
)

var _ commands.Command = (*Command)(nil)

// Command is the "upload" verb.
type Command struct {
	commands.ConnOptions
	commands.AuthOptions

	File      string `short:"f" long:"file" description:"path to the firmware image to upload" required:"true"`
	Image     uint32 `long:"image" description:"target image index" default:"0"`
	ChunkSize int    `long:"chunk-size" description:"bytes per chunk" default:"512"`
}

func (*Command) ShortDescription() string { return "upload a firmware image" }
func (*Command) LongDescription() string {
	return "Streams a firmware image to the bootloader's secondary slot in chunks, resuming from the offset the device last acknowledged."
}

// Execute runs the command.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("upload: unexpected arguments: %v", args)
	}
	if err := commands.Authorize(cmd.AuthOptions); err != nil {
		return err
	}

	data, err := os.ReadFile(cmd.File)
	if err != nil {
		return fmt.Errorf("upload: read %s: %w", cmd.File, err)
	}
	size := uint32(len(data))
	if size == 0 {
		return fmt.Errorf("upload: %s is empty", cmd.File)
	}

	client, err := transport.Dial(cmd.Addr, time.Duration(cmd.Timeout)*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Printf("upload: sending %s (%s) to image %d\n", cmd.File, humanize.Bytes(uint64(size)), cmd.Image)

	var off uint32
	first := true
	for off < size {
		end := off + uint32(cmd.ChunkSize)
		if end > size {
			end = size
		}

		req := upload.Request{
			Data: data[off:end],
			Off:  &off,
		}
		if first {
			img := cmd.Image
			length := size
			req.Image = &img
			req.Len = &length
		}

		nextOff, err := sendChunk(client, req)
		if err != nil {
			return err
		}

		if nextOff == off && !first {
			return fmt.Errorf("upload: device did not advance past offset %d", off)
		}
		off = nextOff
		first = false

		fmt.Printf("\rupload: %s / %s", humanize.Bytes(uint64(off)), humanize.Bytes(uint64(size)))
	}
	fmt.Println()
	fmt.Println("upload: complete")

	return nil
}

func sendChunk(client *transport.Client, req upload.Request) (uint32, error) {
	enc := wirecbor.NewEncoder(2048)
	if err := enc.Encode(req); err != nil {
		return 0, fmt.Errorf("upload: encode chunk: %w", err)
	}

	_, payload, err := client.Call(smp.OpWrite, smp.GroupImage, smp.IDImageUpload, enc.Bytes())
	if err != nil {
		return 0, err
	}

	var resp struct {
		RC  int     `cbor:"rc"`
		Off *uint32 `cbor:"off"`
	}
	if err := wirecbor.Decode(payload, &resp); err != nil {
		return 0, fmt.Errorf("upload: decode chunk response: %w", err)
	}
	if resp.RC != rc.OK {
		return 0, fmt.Errorf("upload: bootloader returned %s", rc.String(resp.RC))
	}
	if resp.Off == nil {
		return 0, fmt.Errorf("upload: response missing offset")
	}
	return *resp.Off, nil
}
