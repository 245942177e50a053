// Package shell provides the interactive command-line interface of
// blescan.
package shell

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/oblakr24/blescanner/pkg/connection"
	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/scan"
	"github.com/oblakr24/blescanner/pkg/service"
	"github.com/oblakr24/blescanner/pkg/session"
)

// Shell handles interactive mode for blescan.
type Shell struct {
	explorer *service.Explorer
	rl       *readline.Instance

	outMu sync.Mutex
	out   io.Writer

	// devices is the numbered list printed by the last "devices" command.
	mu      sync.Mutex
	devices []string
	scanned int
}

// New creates a shell over explorer and registers its event handler.
func New(explorer *service.Explorer) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "blescan> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s := newShell(explorer, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(explorer *service.Explorer, out io.Writer) *Shell {
	s := &Shell{explorer: explorer, out: out}
	explorer.OnEvent(s.handleEvent)
	return s
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("scan"),
		readline.PcItem("stop"),
		readline.PcItem("devices"),
		readline.PcItem("connect"),
		readline.PcItem("disconnect"),
		readline.PcItem("discover"),
		readline.PcItem("read"),
		readline.PcItem("write"),
		readline.PcItem("notify"),
		readline.PcItem("session"),
		readline.PcItem("sessions"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop. It calls cancel when the user
// quits or closes the input.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()
	go func() {
		<-ctx.Done()
		s.rl.Close()
	}()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			s.printf("Exiting...\n")
			cancel()
			return
		}

		if !s.Execute(line) {
			s.printf("Exiting...\n")
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the user asked to
// quit.
func (s *Shell) Execute(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "scan":
		s.explorer.StartScan()
		s.printf("Scanning...\n")
	case "stop":
		s.explorer.StopScan()
	case "devices", "ls":
		s.cmdDevices()
	case "connect", "c":
		s.withDevice(args, 1, "connect <device>", func(addr string, _ []string) {
			s.explorer.Connect(addr)
		})
	case "disconnect", "dc":
		s.withDevice(args, 1, "disconnect <device>", func(addr string, _ []string) {
			s.explorer.Disconnect(addr)
		})
	case "discover":
		s.withDevice(args, 1, "discover <device>", func(addr string, _ []string) {
			s.explorer.DiscoverAttributes(addr)
		})
	case "read", "r":
		s.withDevice(args, 2, "read <device> <attribute>", func(addr string, rest []string) {
			s.explorer.Read(addr, rest[0])
		})
	case "write", "w":
		s.withDevice(args, 3, "write <device> <attribute> <hex|\"text\">", func(addr string, rest []string) {
			value, err := parseValue(strings.Join(rest[1:], " "))
			if err != nil {
				s.printf("Invalid value: %v\n", err)
				return
			}
			s.explorer.Write(addr, rest[0], value)
		})
	case "notify", "n":
		s.withDevice(args, 3, "notify <device> <attribute> on|off", func(addr string, rest []string) {
			enable, err := parseSwitch(rest[1])
			if err != nil {
				s.printf("%v\n", err)
				return
			}
			s.explorer.SetNotification(addr, rest[0], enable)
		})
	case "session", "s":
		s.withDevice(args, 1, "session <device>", func(addr string, _ []string) {
			s.cmdSession(addr)
		})
	case "sessions":
		s.cmdSessions()
	case "status":
		s.cmdStatus()
	case "quit", "exit", "q":
		return false
	default:
		s.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	s.printf(`
blescan Commands:
  Scanning:
    scan                               - Start a scan
    stop                               - Stop the scan
    devices                            - List scan results

  Sessions:
    connect <device>                   - Open a session
    disconnect <device>                - Close a session
    discover <device>                  - Discover attributes again
    session <device>                   - Show the session snapshot
    sessions                           - List open sessions

  Attributes:
    read <device> <attr>               - Read an attribute
    write <device> <attr> <value>      - Write hex bytes or "text"
    notify <device> <attr> on|off      - Enable or disable notifications

  General:
    status                             - Show radio and scan status
    help                               - Show this help
    quit                               - Exit

  <device> is an address or a number from the devices list.
  <attr> is a short (2a6e) or full attribute UUID.
`)
}

// withDevice checks the argument count, resolves the device argument and
// calls fn with the remaining arguments.
func (s *Shell) withDevice(args []string, n int, usage string, fn func(addr string, rest []string)) {
	if len(args) < n {
		s.printf("Usage: %s\n", usage)
		return
	}
	addr, err := s.resolve(args[0])
	if err != nil {
		s.printf("%v\n", err)
		return
	}
	fn(addr, args[1:])
}

// resolve accepts an address or a 1-based index into the last device list.
func (s *Shell) resolve(arg string) (string, error) {
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 1 || idx > len(s.devices) {
		return "", fmt.Errorf("no device #%d (run 'devices' first)", idx)
	}
	return s.devices[idx-1], nil
}

func (s *Shell) cmdDevices() {
	st := s.explorer.Scan()
	addrs := make([]string, 0, len(st.Devices))
	for _, d := range st.Devices {
		addrs = append(addrs, d.Address)
	}
	s.mu.Lock()
	s.devices = addrs
	s.mu.Unlock()

	if len(st.Devices) == 0 {
		s.printf("No devices found\n")
		return
	}
	s.printf("\nDevices (%d):\n", len(st.Devices))
	for i, d := range st.Devices {
		flags := ""
		if !d.Connectable {
			flags = " [not connectable]"
		}
		s.printf("  %2d. %-20s %s  %4d dBm%s\n", i+1, d.DisplayName(), d.Address, d.RSSI, flags)
	}
}

func (s *Shell) cmdSession(addr string) {
	m, ok := s.lookup(addr)
	if !ok {
		s.printf("No session for %s\n", addr)
		return
	}
	snap := m.Last()
	s.printf("\n%s (%s)\n", m.Name(), m.Address())
	s.printf("  Phase:     %s\n", snap.Phase)
	s.printf("  Connected: %t  Connecting: %t  Discovery failed: %t\n",
		snap.Connected, snap.Connecting, snap.DiscoveryFailed)
	s.printf("  Events:    %d\n", len(snap.Events))
	s.printGroups(snap.Groups)

	logs := snap.Logs
	if len(logs) > 10 {
		logs = logs[len(logs)-10:]
	}
	if len(logs) > 0 {
		s.printf("  Log:\n")
		for _, l := range logs {
			s.printf("    %s %s\n", l.Time.Format("15:04:05.000"), l.Text)
		}
	}
}

func (s *Shell) printGroups(groups []session.Group) {
	for _, g := range groups {
		s.printf("  Service %s\n", gatt.ShortID(g.ID))
		for _, a := range g.Attributes {
			s.printf("    %-8s %s\n", gatt.ShortID(a.ID), capabilities(a))
		}
	}
}

func (s *Shell) cmdSessions() {
	reg := s.explorer.Registry()
	addrs := reg.Addresses()
	if len(addrs) == 0 {
		s.printf("No sessions\n")
		return
	}
	for _, addr := range addrs {
		m, ok := reg.Get(addr)
		if !ok {
			continue
		}
		snap := m.Last()
		s.printf("  %s %-20s %s\n", addr, m.Name(), snap.Phase)
	}
}

func (s *Shell) cmdStatus() {
	st := s.explorer.Scan()
	s.printf("Explorer:   %s\n", s.explorer.State())
	s.printf("Radio:      available=%t enabled=%t permission=%t\n",
		st.RadioAvailable, st.RadioEnabled, st.PermissionGranted)
	s.printf("Scanning:   %t (%d devices)\n", st.Scanning, len(st.Devices))
	s.printf("Sessions:   %d\n", len(s.explorer.Registry().Addresses()))
}

func (s *Shell) lookup(addr string) (*session.Manager, bool) {
	reg := s.explorer.Registry()
	if m, ok := reg.Get(addr); ok {
		return m, true
	}
	for _, a := range reg.Addresses() {
		if strings.EqualFold(a, addr) {
			return reg.Get(a)
		}
	}
	return nil, false
}

// handleEvent prints operation results, errors and session transitions.
func (s *Shell) handleEvent(e service.Event) {
	switch e.Type {
	case service.EventScanUpdated:
		s.scanUpdated(e.Scan)
	case service.EventSessionUpdated:
		last, ok := e.Snapshot.LastEvent()
		if !ok {
			return
		}
		switch last.Kind {
		case connection.KindPhaseChanged:
			s.printf("[%s] %s\n", e.Address, last.Phase)
		case connection.KindAttributeChanged:
			s.printf("[%s] CHANGED %s: %s\n", e.Address, gatt.ShortID(last.AttributeID), formatValue(last.Value))
		}
	case service.EventSessionEnded:
		if e.Error != nil {
			s.printf("[%s] session ended: %v\n", e.Address, e.Error)
		} else {
			s.printf("[%s] session ended\n", e.Address)
		}
	case service.EventOperationCompleted:
		s.operationCompleted(e)
	case service.EventError:
		if e.Address != "" {
			s.printf("[%s] error: %v\n", e.Address, e.Error)
		} else {
			s.printf("error: %v\n", e.Error)
		}
	}
}

func (s *Shell) scanUpdated(st scan.State) {
	s.mu.Lock()
	grew := len(st.Devices) > s.scanned
	s.scanned = len(st.Devices)
	s.mu.Unlock()
	if grew {
		s.printf("%d device(s) found\n", len(st.Devices))
	}
}

func (s *Shell) operationCompleted(e service.Event) {
	status := "ok"
	if !e.Success {
		status = "failed"
	}
	switch e.Op {
	case service.OpDiscover:
		s.printf("[%s] DISCOVER %s: %d service(s)\n", e.Address, status, len(e.Groups))
		s.printGroups(e.Groups)
	case service.OpRead:
		s.printf("[%s] READ %s %s: %s\n", e.Address, gatt.ShortID(e.AttributeID), status, formatValue(e.Value))
	default:
		s.printf("[%s] %s %s %s\n", e.Address, e.Op, gatt.ShortID(e.AttributeID), status)
	}
}

func (s *Shell) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func capabilities(a session.Attribute) string {
	var caps []string
	if a.Readable {
		caps = append(caps, "read")
	}
	if a.Writable {
		caps = append(caps, "write")
	}
	if a.Notifiable {
		caps = append(caps, "notify")
	}
	if a.Indicatable {
		caps = append(caps, "indicate")
	}
	return strings.Join(caps, ",")
}

// parseValue parses hex bytes ("0x0a0b", "0a0b") or a double-quoted string.
func parseValue(s string) ([]byte, error) {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return []byte(s[1 : len(s)-1]), nil
	}
	return hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

// formatValue renders bytes as hex, followed by the text when printable.
func formatValue(v []byte) string {
	if len(v) == 0 {
		return "(empty)"
	}
	out := hex.EncodeToString(v)
	for _, b := range v {
		if b < 0x20 || b > 0x7e {
			return out
		}
	}
	return fmt.Sprintf("%s %q", out, string(v))
}
