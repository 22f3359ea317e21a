package shell

import (
	"context"
	"flag"
	"os"

	"github.com/abiosoft/ishell"

	"github.com/certmason/certmason/acme/keys"
)

type finalizeCmd struct {
	cmd *ishell.Cmd
}

var finalize = finalizeCmd{
	cmd: &ishell.Cmd{
		Name: "finalize",
		Func: finalizeHandler,
		Help: "Generate a certificate key and CSR for an order and submit it for issuance",
	},
}

func finalizeHandler(c *ishell.Context) {
	finalizeFlags := flag.NewFlagSet("finalize", flag.ContinueOnError)
	orderIndex := finalizeFlags.Int("order", -1, "index of existing order (default: most recent)")
	commonName := finalizeFlags.String("cn", "", "subject common name for the CSR (default: first identifier)")
	keyPath := finalizeFlags.String("keyOut", "", "file path to save the certificate key PEM to")

	err := finalizeFlags.Parse(c.Args)
	if err != nil && err != flag.ErrHelp {
		c.Printf("finalize: error parsing input flags: %s\n", err.Error())
		return
	} else if err == flag.ErrHelp {
		return
	}

	order, err := orderFromIndex(c, *orderIndex)
	if err != nil {
		c.Printf("finalize: %s\n", err.Error())
		return
	}

	var domains []string
	for _, ident := range order.Identifiers {
		domains = append(domains, ident.Value)
	}

	// The certificate key must not be the account key, generate a fresh one.
	certKey, err := keys.NewSigner("ecdsa")
	if err != nil {
		c.Printf("finalize: error generating certificate key: %s\n", err.Error())
		return
	}
	csr, err := keys.CSR(*commonName, domains, certKey)
	if err != nil {
		c.Printf("finalize: error creating CSR: %s\n", err.Error())
		return
	}

	if *keyPath != "" {
		keyPEM, err := keys.SignerToPEM(certKey)
		if err != nil {
			c.Printf("finalize: error encoding certificate key: %s\n", err.Error())
			return
		}
		if err := os.WriteFile(*keyPath, []byte(keyPEM), 0600); err != nil {
			c.Printf("finalize: error saving certificate key: %s\n", err.Error())
			return
		}
		c.Printf("finalize: saved certificate key to %q\n", *keyPath)
	}

	updated, err := getClient(c).FinalizeOrder(context.Background(), order.Finalize, csr.DER)
	if err != nil {
		c.Printf("finalize: error finalizing order: %s\n", err.Error())
		return
	}

	orderJSON, err := printJSON(updated)
	if err != nil {
		c.Printf("finalize: error marshaling order: %s\n", err.Error())
		return
	}
	c.Printf("Finalized order:\n%s\n", orderJSON)
}
