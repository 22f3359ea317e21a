package shell

import (
	"context"
	"flag"

	"github.com/abiosoft/ishell"

	"github.com/certmason/certmason/acme"
	"github.com/certmason/certmason/acme/keys"
)

type solveCmd struct {
	cmd *ishell.Cmd
}

var solve = solveCmd{
	cmd: &ishell.Cmd{
		Name:    "solve",
		Aliases: []string{"challenge"},
		Func:    solveHandler,
		Help:    "Install challenge responses for an order's pending authorizations and trigger validation",
		LongHelp: "Responses are installed into the embedded challenge response server " +
			"and stay installed until the shell exits",
	},
}

func solveHandler(c *ishell.Context) {
	solveFlags := flag.NewFlagSet("solve", flag.ContinueOnError)
	orderIndex := solveFlags.Int("order", -1, "index of existing order (default: most recent)")
	challType := solveFlags.String("type", acme.CHALLENGE_HTTP_01, "challenge type to solve")

	err := solveFlags.Parse(c.Args)
	if err != nil && err != flag.ErrHelp {
		c.Printf("solve: error parsing input flags: %s\n", err.Error())
		return
	} else if err == flag.ErrHelp {
		return
	}

	order, err := orderFromIndex(c, *orderIndex)
	if err != nil {
		c.Printf("solve: %s\n", err.Error())
		return
	}

	challSolver, err := getChallengeServer(c).SolverFor(*challType)
	if err != nil {
		c.Printf("solve: %s\n", err.Error())
		return
	}

	client := getClient(c)
	ctx := context.Background()
	for _, authzURL := range order.Authorizations {
		authz, err := client.FetchAuthorization(ctx, authzURL)
		if err != nil {
			c.Printf("solve: error fetching authorization %q: %s\n", authzURL, err.Error())
			return
		}
		domain := authz.Identifier.Value

		if authz.Status != acme.STATUS_PENDING {
			c.Printf("solve: authorization for %q has status %q, skipping\n",
				domain, authz.Status)
			continue
		}

		var solved bool
		for _, chall := range authz.Challenges {
			if chall.Type != *challType {
				continue
			}

			keyAuth := keys.KeyAuth(client.Account().Signer, chall.Token)
			if err := challSolver.Present(ctx, domain, chall.Token, keyAuth); err != nil {
				c.Printf("solve: error installing %s response for %q: %s\n",
					*challType, domain, err.Error())
				return
			}

			updated, err := client.TriggerChallenge(ctx, domain, chall.URL)
			if err != nil {
				c.Printf("solve: error triggering challenge for %q: %s\n", domain, err.Error())
				return
			}
			c.Printf("solve: triggered %s challenge for %q, status %q\n",
				*challType, domain, updated.Status)
			solved = true
			break
		}
		if !solved {
			c.Printf("solve: authorization for %q offers no %q challenge\n",
				domain, *challType)
			return
		}
	}
}
