package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dougsko/cwbeacon/pkg/client"
	"github.com/dougsko/cwbeacon/pkg/protocol"
)

var (
	socketPath = flag.String("socket", "/tmp/beacond.sock", "Unix socket path")
	command    = flag.String("cmd", "", "Command to send (e.g., 'STATUS', 'SEND:CQ TEST')")
	raw        = flag.Bool("raw", false, "Print the raw JSON response")
)

func main() {
	flag.Parse()

	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	if *command == "" {
		if len(flag.Args()) > 0 {
			*command = strings.Join(flag.Args(), " ")
		} else {
			showHelp()
			return
		}
	}

	c := client.NewSocketClient(*socketPath)

	if !*raw {
		handled, err := printFriendly(c, *command)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if handled {
			return
		}
	}

	response, err := c.SendCommand(*command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", response.String())
	if !response.Success {
		os.Exit(1)
	}
}

// printFriendly renders STATUS and LOG for people; other commands are
// printed as JSON
func printFriendly(c *client.SocketClient, cmd string) (bool, error) {
	parsed, err := protocol.ParseCommand(cmd)
	if err != nil {
		return false, nil
	}

	switch parsed.Type {
	case protocol.CmdStatus:
		status, err := c.GetStatus()
		if err != nil {
			return true, err
		}
		printStatus(status)
		return true, nil

	case protocol.CmdLog:
		limit, _ := parsed.Args["limit"].(int)
		entries, err := c.GetLog(limit)
		if err != nil {
			return true, err
		}
		printLog(entries)
		return true, nil
	}
	return false, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printStatus(s *protocol.Status) {
	tick := time.Duration(s.TickMs) * time.Millisecond
	countdown := func(ticks uint32) string {
		return (time.Duration(ticks) * tick).Truncate(time.Second).String()
	}

	fmt.Printf("Station:       %s (%s)\n", s.Callsign, s.Grid)
	fmt.Printf("Beacon:        %s, %d WPM, %d Hz\n", onOff(s.Enabled), s.WPM, s.ToneHz)
	fmt.Printf("Fox hunt:      %s (next pips %s, next ID %s)\n",
		onOff(s.FoxHunt), countdown(s.Countdowns.Pip), countdown(s.Countdowns.ID))
	fmt.Printf("SOS:           %s (next %s)\n", onOff(s.SOSMode), countdown(s.Countdowns.SOS))
	fmt.Printf("Transmitting:  %t (PTT %s)\n", s.Transmitting, onOff(s.PTT))
	fmt.Printf("Radio:         %s\n", map[bool]string{true: "connected", false: "not connected"}[s.RadioConnected])
	fmt.Printf("Transmissions: %s\n", humanize.Comma(int64(s.Transmissions)))
	fmt.Printf("Started:       %s (up %s)\n", humanize.Time(s.StartTime), s.Uptime)
	fmt.Printf("Version:       %s\n", s.Version)
}

func printLog(entries []protocol.LogEntry) {
	if len(entries) == 0 {
		fmt.Println("No transmissions logged")
		return
	}
	for _, e := range entries {
		fmt.Printf("%6d  %-14s  %-6s  %2d WPM  %8s  %s\n",
			e.ID,
			humanize.Time(e.StartedAt),
			e.Kind,
			e.WPM,
			(time.Duration(e.DurationMs) * time.Millisecond).String(),
			e.Payload)
	}
}

func showHelp() {
	fmt.Println("beaconctl - CW Beacon Daemon Control Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options] <command>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -socket <path>    Unix socket path (default: /tmp/beacond.sock)")
	fmt.Println("  -cmd <command>    Command to send")
	fmt.Println("  -raw              Print JSON for STATUS and LOG too")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  STATUS                    Get beacon status")
	fmt.Println("  CONFIG                    Get all beacon settings")
	fmt.Println("  CONFIG:get:<key>          Get one setting")
	fmt.Println("  CONFIG:set:<key>:<value>  Change one setting")
	fmt.Println("  SEND:<text>               Key text at the configured speed")
	fmt.Println("  SENDMSG:<slot>            Key stored message 1 or 2")
	fmt.Println("  PIPS[:<count>]            Key a run of pips")
	fmt.Println("  LOG[:<n>]                 Show the newest transmissions")
	fmt.Println("  PING                      Test connection")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s STATUS\n", os.Args[0])
	fmt.Printf("  %s CONFIG:set:fox_hunt_enabled:true\n", os.Args[0])
	fmt.Printf("  %s 'SEND:CQ CQ DE N0CALL'\n", os.Args[0])
	fmt.Printf("  echo 'LOG:5' | nc -U /tmp/beacond.sock\n")
}
