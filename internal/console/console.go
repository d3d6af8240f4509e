// Package console is the interactive scan loop behind `shelfscan scan`.
//
// Each line is one command:
//
//	scan <code> [symbology]  start a new product (default symbology: auto)
//	add <path>...            attach photos
//	remove <n>               drop photo n
//	list                     show photos and processed results
//	process                  send photos for background removal
//	drop <n>                 drop processed result n
//	save <dir>               download processed results
//	upload                   create the product
//	help
//	exit | quit
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shelfscan/shelfscan/internal/barcode"
	"github.com/shelfscan/shelfscan/internal/capture"
	"github.com/shelfscan/shelfscan/internal/models"
	"github.com/shelfscan/shelfscan/internal/pipeline"
)

// Saver downloads processed results to a local directory.
type Saver interface {
	SaveResults(ctx context.Context, results []models.ProcessedResult, dir, prefix string) ([]string, error)
}

type Console struct {
	p      *pipeline.Pipeline
	saver  Saver
	out    io.Writer
	sym    barcode.Symbology
	newRef func(path string) (capture.ImageRef, error)
}

type Option func(*Console)

// WithSymbology sets the default symbology for `scan` without an explicit type.
func WithSymbology(s barcode.Symbology) Option {
	return func(c *Console) { c.sym = s }
}

func WithSaver(s Saver) Option {
	return func(c *Console) { c.saver = s }
}

func New(p *pipeline.Pipeline, out io.Writer, opts ...Option) *Console {
	c := &Console{p: p, out: out, sym: barcode.Auto, newRef: capture.NewImageRef}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads commands from in until EOF, exit, or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	c.println("Type help for commands.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(c.out, c.prompt())
		if !sc.Scan() {
			fmt.Fprintln(c.out)
			return sc.Err()
		}
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 {
			continue
		}
		if quit := c.dispatch(ctx, parts[0], parts[1:]); quit {
			c.println("Bye!")
			return nil
		}
	}
}

func (c *Console) prompt() string {
	code := c.p.Barcode()
	if code == "" {
		return "shelfscan (no barcode)> "
	}
	return fmt.Sprintf("shelfscan [%s %d/%d photos, %d processed]> ",
		code, len(c.p.Captures()), c.p.Limit(), len(c.p.Results()))
}

func (c *Console) dispatch(ctx context.Context, cmd string, args []string) bool {
	switch cmd {
	case "help", "h", "?":
		c.println("Commands: scan <code> [type], add <path>..., remove <n>, list, process, drop <n>, save <dir>, upload, exit")
	case "scan":
		c.scan(args)
	case "add":
		c.add(args)
	case "remove", "rm":
		if i, ok := c.index(args); ok {
			c.report(c.p.RemoveCapture(i))
		}
	case "drop":
		if i, ok := c.index(args); ok {
			c.report(c.p.RemoveResult(i))
		}
	case "list", "ls", "l":
		c.list()
	case "process":
		c.requireBarcode(func() { c.report(c.p.SubmitForBackgroundRemoval(ctx)) })
	case "save":
		c.save(ctx, args)
	case "upload":
		c.requireBarcode(func() {
			o := c.p.SubmitProduct(ctx)
			c.report(o)
			if o.Next == pipeline.NextScan {
				c.println("Ready for the next product: scan <code>")
			}
		})
	case "exit", "quit", "q":
		return true
	default:
		c.println("Unknown command:", cmd)
	}
	return false
}

func (c *Console) scan(args []string) {
	if len(args) == 0 {
		c.println("usage: scan <code> [auto|qr|pdf417|ean13|code128]")
		return
	}
	sym := c.sym
	if len(args) > 1 {
		s, err := barcode.ParseSymbology(args[1])
		if err != nil {
			c.println("Error:", err)
			return
		}
		sym = s
	}
	b, err := barcode.New(sym, args[0])
	if err != nil {
		c.println("Error:", err)
		return
	}
	c.p.Begin(b.Data)
	c.println("Scanned", b.Data, "("+string(b.Symbology)+")")
}

func (c *Console) add(paths []string) {
	if len(paths) == 0 {
		c.println("usage: add <path>...")
		return
	}
	if c.p.Barcode() == "" {
		c.println("Scan a barcode first")
		return
	}
	for _, path := range paths {
		ref, err := c.newRef(path)
		if err != nil {
			c.println("Error:", err)
			continue
		}
		o := c.p.AddCapture(ref)
		c.report(o)
		if !o.OK() {
			return
		}
	}
}

func (c *Console) list() {
	caps := c.p.Captures()
	res := c.p.Results()
	if len(caps) == 0 && len(res) == 0 {
		c.println("Nothing captured yet")
		return
	}
	for i, r := range caps {
		c.println(fmt.Sprintf("  photo %d: %s (%s)", i+1, r.FileName(), r.ContentType()))
	}
	for i, r := range res {
		if r.Success {
			c.println(fmt.Sprintf("  result %d: %s", i+1, r.OutputURL))
		} else {
			c.println(fmt.Sprintf("  result %d: failed: %s", i+1, r.Error))
		}
	}
}

func (c *Console) save(ctx context.Context, args []string) {
	if c.saver == nil {
		c.println("Saving is not available")
		return
	}
	if len(args) != 1 {
		c.println("usage: save <dir>")
		return
	}
	res := c.p.Results()
	if len(res) == 0 {
		c.println("No processed images to save")
		return
	}
	paths, err := c.saver.SaveResults(ctx, res, args[0], c.p.Barcode())
	if err != nil {
		c.println("Error:", err)
		return
	}
	for _, p := range paths {
		c.println("  saved", p)
	}
}

func (c *Console) requireBarcode(fn func()) {
	if c.p.Barcode() == "" {
		c.println("Scan a barcode first")
		return
	}
	fn()
}

// index parses a 1-based position argument into a 0-based index.
func (c *Console) index(args []string) (int, bool) {
	if len(args) != 1 {
		c.println("usage: <command> <n>")
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		c.println("Error: not a number:", args[0])
		return 0, false
	}
	return n - 1, true
}

func (c *Console) report(o pipeline.Outcome) {
	c.println(o.String())
}

func (c *Console) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}
