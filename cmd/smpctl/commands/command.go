// Package commands defines the verb interface every smpctl subcommand
// implements, plus the connection and authorization option groups
// subcommands embed into their own flag structs.
package commands

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/openenterprise/smpboot/credentials"
)

// Command is the verb interface registered with the go-flags parser, one
// per smpctl subcommand (list, upload, confirm, slotinfo, reset).
type Command interface {
	flags.Commander

	// ShortDescription explains what this command does in one line.
	ShortDescription() string

	// LongDescription explains the verb in full; may be empty.
	LongDescription() string
}

// ConnOptions is the connection option group every subcommand embeds.
type ConnOptions struct {
	Addr    string `short:"a" long:"addr" description:"bootloader UDP address" default:"127.0.0.1:1337"`
	Timeout int    `long:"timeout" description:"request timeout in seconds" default:"5"`
}

// AuthOptions is embedded by subcommands that perform a destructive
// operation (upload, confirm, reset): it prompts for the admin
// passphrase before proceeding when one is configured, so an operator
// can't fat-finger a flash session against a live device.
type AuthOptions struct {
	Password string `long:"password" description:"admin passphrase (prompted if omitted and one is configured)"`
}

// Authorize checks opts.Password (or prompts for one if empty and a
// passphrase is configured) against the credentials gate, returning an
// error that aborts the command on mismatch.
func Authorize(opts AuthOptions) error {
	if !credentials.AdminPasswordConfigured() {
		return nil
	}
	candidate := opts.Password
	if candidate == "" {
		p, err := PromptPassword()
		if err != nil {
			return fmt.Errorf("commands: read password: %w", err)
		}
		candidate = p
	}
	if !credentials.CheckAdminPassword(candidate) {
		return fmt.Errorf("commands: admin passphrase rejected")
	}
	return nil
}

// PromptPassword reads a passphrase from the controlling terminal
// without echoing it, mirroring the teacher's console-password prompt.
func PromptPassword() (string, error) {
	fmt.Print("admin passphrase: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	return string(b), err
}
