package shell

import (
	"context"

	"github.com/abiosoft/ishell"
)

type nonceCmd struct {
	cmd *ishell.Cmd
}

var nonce = nonceCmd{
	cmd: &ishell.Cmd{
		Name: "nonce",
		Func: nonceHandler,
		Help: "Fetch a fresh anti-replay nonce from the ACME server",
	},
}

func nonceHandler(c *ishell.Context) {
	client := getClient(c)

	n, err := client.Nonce(context.Background())
	if err != nil {
		c.Printf("nonce: error fetching nonce: %s\n", err.Error())
		return
	}
	if n == "" {
		c.Printf("nonce: server response had no Replay-Nonce header\n")
		return
	}
	c.Printf("%s\n", n)
}
