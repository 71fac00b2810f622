// Package sh provides an interactive shell talking to a device.
package sh

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/protobuf/jsonpb"

	"github.com/robotalks/bang.go/pkg/bridge"
	"github.com/robotalks/bang.go/pkg/framework"
	"github.com/robotalks/bang.go/pkg/l0/comm"
	"github.com/robotalks/bang.go/pkg/l0/msgs"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration
	DeviceURI   string

	Shell *ishell.Shell
	Conn  *Conn
}

// Conn is an open device.
type Conn struct {
	URI     string
	Channel *comm.Channel
	Runner  *framework.Runner
}

const (
	shellKey       = "$shell"
	closedPrompt   = "[none] > "
	defaultWaitAck = time.Second
)

// ErrNotOpen indicates no device is open.
var ErrNotOpen = errors.New("no device open, use open URI")

var (
	evalOnly   bool
	outputJSON bool
	deviceURI  = os.Getenv("BANG_DEVICE")
	waitAck    = defaultWaitAck

	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&TypesCmd,
		&SendCmd,
		&AckCmd,
	}
)

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print messages in JSON.")
	flag.StringVar(&deviceURI, "device", deviceURI, "Device URI to open at start.")
	flag.DurationVar(&waitAck, "ack-timeout", waitAck, "Time to wait for an ack.")
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     waitAck,
		DeviceURI:   deviceURI,
		Shell:       ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an open device.
func MustBeOpen(fn func(c *ishell.Context, s *Shell)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		s := ShellFrom(c)
		if s.Conn == nil {
			c.Err(ErrNotOpen)
			return
		}
		fn(c, s)
	}
}

// Open opens a device, closing the current one.
func (s *Shell) Open(uri string) error {
	ch, err := comm.Open(uri)
	if err != nil {
		return err
	}
	ch.Handler = &comm.LogHandler{
		Handler: &comm.HandlerFuncs{
			Message: func(_ context.Context, _ *comm.Packet, msg msgs.Message) {
				s.printMessage(ch.Registry, msg)
			},
			Error: func(_ context.Context, err error) {
				s.Shell.Printf("! %v\n", err)
			},
		},
	}
	s.Close()
	s.Conn = &Conn{URI: uri, Channel: ch, Runner: ch.Start(context.Background())}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", uri))
	return nil
}

// Close closes the current device.
func (s *Shell) Close() {
	if s.Conn == nil {
		return
	}
	if err := s.Conn.Channel.Close(); err != nil {
		s.Shell.Printf("! close: %v\n", err)
	}
	s.Conn.Runner.Wait()
	s.Conn = nil
	s.Shell.SetPrompt(closedPrompt)
}

func (s *Shell) printMessage(registry *msgs.Registry, msg msgs.Message) {
	text, err := FormatMessage(registry, msg, s.OutputJSON)
	if err != nil {
		s.Shell.Printf("! %v\n", err)
		return
	}
	s.Shell.Println(text)
}

// FormatMessage renders msg as text, or as a JSON object carrying the
// name and fields.
func FormatMessage(registry *msgs.Registry, msg msgs.Message, asJSON bool) (string, error) {
	if !asJSON {
		return registry.Format(msg), nil
	}
	d, err := registry.DescriptorOf(msg)
	if err != nil {
		return "", err
	}
	fields, err := bridge.ToStruct(registry, msg)
	if err != nil {
		return "", err
	}
	out, err := (&jsonpb.Marshaler{}).MarshalToString(fields)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"type":%q,"fields":%s}`, d.Name, out), nil
}

// FormatTypes lists the messages of registry with their fields.
func FormatTypes(registry *msgs.Registry) []string {
	var lines []string
	for _, d := range registry.Descriptors() {
		fields := make([]string, len(d.Fields))
		for n, f := range d.Fields {
			fields[n] = f.Name + ":" + f.Kind.String()
		}
		lines = append(lines, fmt.Sprintf("%2d %-12s %2dB %s", d.Type, d.Name, d.Size(), strings.Join(fields, " ")))
	}
	return lines
}

func (s *Shell) registry() *msgs.Registry {
	if s.Conn != nil && s.Conn.Channel.Registry != nil {
		return s.Conn.Channel.Registry
	}
	return msgs.V2
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.DeviceURI != "" {
		if err := s.Open(s.DeviceURI); err != nil {
			log.Fatalf("open %q failed: %v", s.DeviceURI, err)
		}
		defer s.Close()
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func completeNames(args []string) []string {
	if len(args) > 0 {
		return nil
	}
	var names []string
	for _, d := range msgs.V2.Descriptors() {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

var (
	// OpenCmd opens a device.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "URI, e.g. serial:/dev/ttyUSB0?baud=115200",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("URI required"))
				return
			}
			if err := ShellFrom(c).Open(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the device.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// TypesCmd lists message types.
	TypesCmd = ishell.Cmd{
		Name:    "types",
		Aliases: []string{"t"},
		Help:    "",
		Func: func(c *ishell.Context) {
			for _, line := range FormatTypes(ShellFrom(c).registry()) {
				c.Println(line)
			}
		},
	}

	// SendCmd sends a message without ack.
	SendCmd = ishell.Cmd{
		Name:      "send",
		Aliases:   []string{"s"},
		Help:      "NAME [field=value...]",
		Completer: completeNames,
		Func: MustBeOpen(func(c *ishell.Context, s *Shell) {
			msg, err := parseArgs(s.registry(), c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err = s.Conn.Channel.SendMsg(msg); err != nil {
				c.Err(err)
			}
		}),
	}

	// AckCmd sends a message and waits for the ack.
	AckCmd = ishell.Cmd{
		Name:      "ack",
		Aliases:   []string{"a"},
		Help:      "NAME [field=value...]",
		Completer: completeNames,
		Func: MustBeOpen(func(c *ishell.Context, s *Shell) {
			msg, err := parseArgs(s.registry(), c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
			defer cancel()
			if err = comm.Do(ctx, s.Conn.Channel, msg); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}
)

func parseArgs(registry *msgs.Registry, args []string) (msgs.Message, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("message NAME required")
	}
	return registry.Parse(args[0], args[1:]...)
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().Run(flag.Args()...)
}
