package shell

import (
	"flag"

	"github.com/abiosoft/ishell"
)

type getOrderCmd struct {
	cmd *ishell.Cmd
}

var getOrder = getOrderCmd{
	cmd: &ishell.Cmd{
		Name:    "getOrder",
		Aliases: []string{"orders"},
		Func:    getOrderHandler,
		Help:    "Fetch an order created in this session and print its status",
	},
}

func getOrderHandler(c *ishell.Context) {
	getOrderFlags := flag.NewFlagSet("getOrder", flag.ContinueOnError)
	orderIndex := getOrderFlags.Int("order", -1, "index of existing order (default: most recent)")

	err := getOrderFlags.Parse(c.Args)
	if err != nil && err != flag.ErrHelp {
		c.Printf("getOrder: error parsing input flags: %s\n", err.Error())
		return
	} else if err == flag.ErrHelp {
		return
	}

	order, err := orderFromIndex(c, *orderIndex)
	if err != nil {
		c.Printf("getOrder: %s\n", err.Error())
		return
	}

	orderJSON, err := printJSON(order)
	if err != nil {
		c.Printf("getOrder: error marshaling order: %s\n", err.Error())
		return
	}
	c.Printf("%s\n", orderJSON)
}
