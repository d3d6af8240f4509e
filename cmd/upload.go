package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/shelfscan/shelfscan/internal/barcode"
	"github.com/shelfscan/shelfscan/internal/capture"
	"github.com/shelfscan/shelfscan/internal/images"
	"github.com/shelfscan/shelfscan/internal/models"
	"github.com/shelfscan/shelfscan/internal/pipeline"
	"github.com/shelfscan/shelfscan/internal/prompt"
	"github.com/spf13/cobra"
)

func newUploadCmd(a *app) *cobra.Command {
	var code, symbology, saveDir string
	var noUpload, yes bool

	cmd := &cobra.Command{
		Use:   "upload --barcode CODE IMAGE...",
		Short: "Process photos and create a product in one go",
		Example: `  shelfscan upload --barcode 4006381333931 front.jpg back.jpg
  shelfscan upload --yes --barcode 8901234 front.jpg
  shelfscan upload --barcode SKU-42 --symbology code128 --save-dir out/ --no-upload *.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sym, err := barcode.ParseSymbology(symbology)
			if err != nil {
				return err
			}
			b, err := barcode.New(sym, code)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := a.SignedIn(ctx)
			if err != nil {
				return err
			}

			p := a.Pipeline(s)
			p.Begin(b.Data)
			for _, path := range args {
				ref, err := capture.NewImageRef(path)
				if err != nil {
					return err
				}
				if o := p.AddCapture(ref); !o.OK() {
					return outcomeError(o)
				}
			}

			out := cmd.OutOrStdout()
			o := p.SubmitForBackgroundRemoval(ctx)
			if !o.OK() {
				return outcomeError(o)
			}
			printOutcome(out, o)
			for i, r := range p.Results() {
				if !r.Success {
					fmt.Fprintf(out, "  %d: failed: %s\n", i+1, r.Error)
				}
			}

			if saveDir != "" {
				paths, err := images.NewFetcher().SaveResults(ctx, p.Results(), saveDir, b.Data)
				if err != nil {
					return fmt.Errorf("failed to save processed images: %w", err)
				}
				for _, path := range paths {
					fmt.Fprintln(out, "  saved", path)
				}
			}
			if noUpload {
				return nil
			}
			if !yes {
				q := fmt.Sprintf("Create product %s from %d processed images?", b.Data, processedCount(p.Results()))
				ok, err := prompt.Confirm(bufio.NewReader(cmd.InOrStdin()), cmd.ErrOrStderr(), q)
				if err != nil {
					return fmt.Errorf("failed to read confirmation (use --yes to skip it): %w", err)
				}
				if !ok {
					fmt.Fprintln(out, "Product not created")
					return nil
				}
			}

			o = p.SubmitProduct(ctx)
			if !o.OK() {
				return outcomeError(o)
			}
			printOutcome(out, o)
			return nil
		},
	}

	cmd.Flags().StringVarP(&code, "barcode", "b", "", "Scanned product barcode")
	cmd.Flags().StringVar(&symbology, "symbology", string(barcode.Auto), "Barcode type: auto, qr, pdf417, ean13, code128")
	cmd.Flags().StringVar(&saveDir, "save-dir", "", "Download processed images into this directory")
	cmd.Flags().BoolVar(&noUpload, "no-upload", false, "Stop after background removal")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Create the product without asking")
	_ = cmd.MarkFlagRequired("barcode")

	return cmd
}

func processedCount(results []models.ProcessedResult) int {
	n := 0
	for _, r := range results {
		if r.Success && r.OutputURL != "" {
			n++
		}
	}
	return n
}

func printOutcome(w io.Writer, o pipeline.Outcome) {
	fmt.Fprintln(w, o.String())
}

func outcomeError(o pipeline.Outcome) error {
	if o.Err == nil {
		return errors.New(o.String())
	}
	return fmt.Errorf("%s: %w", o.String(), o.Err)
}
