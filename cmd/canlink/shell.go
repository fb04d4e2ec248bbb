package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell/v2"

	"github.com/notnil/canlink"
)

// parseFrame parses candump's compact notation: "123#DEADBEEF",
// "12345678#00", "123#R" for a remote request.
func parseFrame(s string) (canlink.Frame, error) {
	id, data, ok := strings.Cut(s, "#")
	if !ok {
		return canlink.Frame{}, fmt.Errorf("missing '#' in %q", s)
	}
	n, err := strconv.ParseUint(id, 16, 32)
	if err != nil {
		return canlink.Frame{}, fmt.Errorf("bad id %q: %w", id, err)
	}
	var f canlink.Frame
	f.ID = uint32(n)
	f.Extended = len(id) > 3
	if strings.EqualFold(data, "R") {
		f.RTR = true
		return f, f.Validate()
	}
	b, err := hex.DecodeString(strings.ReplaceAll(data, ".", ""))
	if err != nil {
		return canlink.Frame{}, fmt.Errorf("bad data %q: %w", data, err)
	}
	if len(b) > 8 {
		return canlink.Frame{}, canlink.ErrInvalidLen
	}
	f.Len = uint8(len(b))
	copy(f.Data[:], b)
	return f, f.Validate()
}

func runShell(ctx context.Context, d canlink.Driver) error {
	shell := ishell.New()
	shell.Println("canlink shell")

	var listener *canlink.Listener
	defer func() { listener.Close() }()

	shell.AddCmd(&ishell.Cmd{
		Name: "send",
		Help: "send <id>#<hex data> ...",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Println("usage: send 123#DEADBEEF")
				return
			}
			for _, arg := range c.Args {
				f, err := parseFrame(arg)
				if err != nil {
					c.Err(err)
					return
				}
				if !d.Send(f) {
					c.Printf("not sent: %s (%s)\n", f, d.State().Status)
				}
			}
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "show the link state",
		Func: func(c *ishell.Context) {
			s := d.State()
			c.Printf("status=%s transport_err=%v internal_err=%#x\n", s.Status, s.TransportErr, s.InternalErr)
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "recover",
		Help: "bring an open link back to ready",
		Func: func(c *ishell.Context) {
			if !d.Recover() {
				c.Printf("not recovered: %s\n", d.State().Status)
				return
			}
			c.Println("ready")
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "listen",
		Help: "listen [id ...] prints matching frames; listen off stops",
		Func: func(c *ishell.Context) {
			listener.Close()
			listener = nil
			if len(c.Args) == 1 && c.Args[0] == "off" {
				return
			}
			var filter canlink.FrameFilter
			if len(c.Args) > 0 {
				ids := make([]uint32, 0, len(c.Args))
				for _, a := range c.Args {
					n, err := strconv.ParseUint(a, 16, 32)
					if err != nil {
						c.Err(err)
						return
					}
					ids = append(ids, uint32(n))
				}
				filter = canlink.ByIDs(ids...)
			}
			listener = d.CreateFilterListener(filter, func(f canlink.Frame) {
				shell.Println(f.String())
			})
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "quit",
		Help: "leave the shell",
		Func: func(c *ishell.Context) { c.Stop() },
	})

	stop := context.AfterFunc(ctx, shell.Stop)
	defer stop()
	shell.Run()
	return nil
}
