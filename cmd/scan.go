package cmd

import (
	"github.com/shelfscan/shelfscan/internal/barcode"
	"github.com/shelfscan/shelfscan/internal/console"
	"github.com/shelfscan/shelfscan/internal/images"
	"github.com/spf13/cobra"
)

func newScanCmd(a *app) *cobra.Command {
	var symbology string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Interactive capture session",
		Long: `Starts an interactive session: scan a barcode, add photos, process them
and upload the product, then move straight on to the next one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sym, err := barcode.ParseSymbology(symbology)
			if err != nil {
				return err
			}
			s, err := a.SignedIn(cmd.Context())
			if err != nil {
				return err
			}

			c := console.New(a.Pipeline(s), cmd.OutOrStdout(),
				console.WithSymbology(sym),
				console.WithSaver(images.NewFetcher()))
			return c.Run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&symbology, "symbology", string(barcode.Auto), "Default barcode type: auto, qr, pdf417, ean13, code128")

	return cmd
}
