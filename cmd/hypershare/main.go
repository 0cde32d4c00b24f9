// Command hypershare serves a directory over HTTP with optional multipart
// uploads, driving the single-threaded multiplexer with an interactive
// terminal: request history streams to stdout and single-key commands control
// the running server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/48ca/hypershare/internal/mux"
	"github.com/48ca/hypershare/pkg/hypershare"
)

func main() {
	var (
		addr          = flag.String("addr", ":8080", "listen address")
		uploads       = flag.Bool("uploads", false, "accept multipart uploads")
		uploadLimit   = flag.Int64("upload-limit", 0, "max upload bytes per request (0 = unlimited)")
		noListings    = flag.Bool("no-listings", false, "disable directory listings")
		indexFile     = flag.String("index", "index.html", "index file served for directories")
		noIndex       = flag.Bool("no-index", false, "never substitute an index file")
		noAppendSlash = flag.Bool("no-append-slash", false, "do not redirect directories to slash-suffixed paths")
		disabled      = flag.Bool("disabled", false, "start with request serving disabled")
		verbose       = flag.Bool("v", false, "log operational detail to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [directory]\n\nkeys: t toggle serving, k close connections, p connection table, q quit\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := hypershare.DefaultConfig()
	cfg.Addr = *addr
	cfg.Uploading = *uploads
	cfg.UploadSizeLimit = *uploadLimit
	cfg.DirListings = !*noListings
	cfg.IndexFile = *indexFile
	cfg.NoIndexFile = *noIndex
	cfg.NoAppendSlash = *noAppendSlash
	cfg.StartDisabled = *disabled
	if flag.NArg() > 0 {
		cfg.RootDir = flag.Arg(0)
	}
	if *verbose {
		cfg.Logger = log.New(os.Stderr, "hypershare ", log.LstdFlags)
	}

	srv, err := hypershare.NewServer(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hypershare:", err)
		os.Exit(1)
	}
	fmt.Printf("sharing %s on http://%s\n", cfg.RootDir, srv.Addr())

	table := &statusTable{}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(table) }()

	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for line := range srv.History() {
			colorFor(line).Fprintf(os.Stdout, "%s\r\n", line)
		}
	}()

	stdin := int(os.Stdin.Fd())
	if term.IsTerminal(stdin) {
		old, rawErr := term.MakeRaw(stdin)
		if rawErr == nil {
			defer term.Restore(stdin, old)
			go keyLoop(srv, table)
		}
	}

	err = <-errCh
	<-printerDone
	if err != nil {
		fmt.Fprintf(os.Stderr, "hypershare: %v\r\n", err)
		os.Exit(1)
	}
}

// keyLoop forwards single keystrokes as control bytes until quit.
func keyLoop(srv *hypershare.Server, table *statusTable) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			srv.Shutdown()
			return
		}
		switch buf[0] {
		case 'q', 0x03, 0x04: // q, ctrl-c, ctrl-d
			srv.Shutdown()
			return
		case 't':
			srv.Control('t')
		case 'k':
			srv.Control('k')
		case 'p':
			table.arm()
			srv.Control('p')
		}
	}
}

// statusTable renders one connection-table snapshot per 'p' keypress. The
// snapshot arrives on the server loop goroutine; arming keeps every other
// iteration free of terminal work.
type statusTable struct {
	armed atomic.Bool
}

func (t *statusTable) arm() {
	t.armed.Store(true)
}

func (t *statusTable) OnIteration(conns []*mux.Connection) {
	if !t.armed.Swap(false) {
		return
	}
	var buf strings.Builder
	w := tablewriter.NewWriter(&buf)
	w.Header("FD", "Peer", "State", "Requests", "Last request", "Body sent")
	for _, c := range conns {
		method, path := c.LastRequest()
		sent, requested := c.Progress()
		w.Append([]string{
			strconv.Itoa(c.Fd()),
			c.Peer(),
			c.State(),
			strconv.Itoa(c.Requests()),
			strings.TrimSpace(method + " " + path),
			fmt.Sprintf("%d/%d", sent, requested),
		})
	}
	w.Render()
	// Raw terminal mode needs explicit carriage returns.
	os.Stdout.WriteString(strings.ReplaceAll(buf.String(), "\n", "\r\n"))
}

// colorFor picks a history-line color from its status column.
func colorFor(line string) *color.Color {
	fields := strings.Fields(line)
	if len(fields) >= 2 && len(fields[1]) > 0 {
		switch fields[1][0] {
		case '2':
			return color.New(color.FgGreen)
		case '3':
			return color.New(color.FgCyan)
		case '4':
			return color.New(color.FgYellow)
		case '5':
			return color.New(color.FgRed)
		}
	}
	return color.New(color.Reset)
}
