package shell

import (
	"github.com/abiosoft/ishell"
)

type statusCmd struct {
	cmd *ishell.Cmd
}

var status = statusCmd{
	cmd: &ishell.Cmd{
		Name:    "status",
		Aliases: []string{"state"},
		Func:    statusHandler,
		Help:    "Show the session's directory, account and orders",
	},
}

func statusHandler(c *ishell.Context) {
	client := getClient(c)

	dirJSON, err := printJSON(client.Directory())
	if err != nil {
		c.Printf("status: error marshaling directory: %s\n", err.Error())
		return
	}

	c.Printf("Directory:\n%s\n", dirJSON)
	c.Printf("Account: %s\n", client.Account())
	c.Printf("Contact: %v\n", client.Account().Contact)

	orders := client.Orders()
	if len(orders) == 0 {
		c.Printf("Orders: none\n")
		return
	}
	c.Printf("Orders:\n")
	for i, orderURL := range orders {
		c.Printf("  %d: %s\n", i, orderURL)
	}
}
