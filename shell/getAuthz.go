package shell

import (
	"context"
	"flag"

	"github.com/abiosoft/ishell"
)

type getAuthzCmd struct {
	cmd *ishell.Cmd
}

var getAuthz = getAuthzCmd{
	cmd: &ishell.Cmd{
		Name:    "getAuthz",
		Aliases: []string{"authz"},
		Func:    getAuthzHandler,
		Help:    "Fetch an order's authorizations and print their status",
	},
}

func getAuthzHandler(c *ishell.Context) {
	getAuthzFlags := flag.NewFlagSet("getAuthz", flag.ContinueOnError)
	orderIndex := getAuthzFlags.Int("order", -1, "index of existing order (default: most recent)")
	identifier := getAuthzFlags.String("identifier", "", "only print the authorization for this identifier")

	err := getAuthzFlags.Parse(c.Args)
	if err != nil && err != flag.ErrHelp {
		c.Printf("getAuthz: error parsing input flags: %s\n", err.Error())
		return
	} else if err == flag.ErrHelp {
		return
	}

	order, err := orderFromIndex(c, *orderIndex)
	if err != nil {
		c.Printf("getAuthz: %s\n", err.Error())
		return
	}

	client := getClient(c)
	for _, authzURL := range order.Authorizations {
		authz, err := client.FetchAuthorization(context.Background(), authzURL)
		if err != nil {
			c.Printf("getAuthz: error fetching authorization %q: %s\n", authzURL, err.Error())
			return
		}
		if *identifier != "" && authz.Identifier.Value != *identifier {
			continue
		}

		authzJSON, err := printJSON(authz)
		if err != nil {
			c.Printf("getAuthz: error marshaling authorization: %s\n", err.Error())
			return
		}
		c.Printf("%s:\n%s\n", authzURL, authzJSON)
	}
}
