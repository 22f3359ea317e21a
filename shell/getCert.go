package shell

import (
	"context"
	"flag"
	"os"

	"github.com/abiosoft/ishell"

	"github.com/certmason/certmason/acme"
)

type getCertCmd struct {
	cmd *ishell.Cmd
}

var getCert = getCertCmd{
	cmd: &ishell.Cmd{
		Name:    "getCert",
		Aliases: []string{"cert", "certificate"},
		Func:    getCertHandler,
		Help:    "Download an order's certificate chain",
	},
}

func getCertHandler(c *ishell.Context) {
	getCertFlags := flag.NewFlagSet("getCert", flag.ContinueOnError)
	orderIndex := getCertFlags.Int("order", -1, "index of existing order (default: most recent)")
	printPEM := getCertFlags.Bool("pem", true, "print PEM certificate chain output")
	pemPath := getCertFlags.String("path", "", "file path to save PEM certificate chain output to")

	err := getCertFlags.Parse(c.Args)
	if err != nil && err != flag.ErrHelp {
		c.Printf("getCert: error parsing input flags: %s\n", err.Error())
		return
	} else if err == flag.ErrHelp {
		return
	}

	order, err := orderFromIndex(c, *orderIndex)
	if err != nil {
		c.Printf("getCert: %s\n", err.Error())
		return
	}
	if order.Status != acme.STATUS_VALID || order.Certificate == "" {
		c.Printf("getCert: order %q has status %q and no certificate yet\n",
			order.URL, order.Status)
		return
	}

	chain, err := getClient(c).DownloadCertificate(context.Background(), order.Certificate)
	if err != nil {
		c.Printf("getCert: error downloading certificate: %s\n", err.Error())
		return
	}

	if *printPEM {
		c.Printf("%s", chain)
	}
	if *pemPath != "" {
		if err := os.WriteFile(*pemPath, chain, 0644); err != nil {
			c.Printf("getCert: error saving certificate to %q: %s\n", *pemPath, err.Error())
			return
		}
		c.Printf("getCert: saved certificate chain to %q\n", *pemPath)
	}
}
