package shell

import (
	"context"
	"flag"
	"strings"

	"github.com/abiosoft/ishell"
)

type newOrderCmd struct {
	cmd *ishell.Cmd
}

var newOrder = newOrderCmd{
	cmd: &ishell.Cmd{
		Name:     "newOrder",
		Aliases:  []string{"order"},
		Func:     newOrderHandler,
		Help:     "Create a new ACME order",
		LongHelp: "Create a new order for one or more comma separated DNS identifiers",
	},
}

func newOrderHandler(c *ishell.Context) {
	newOrderFlags := flag.NewFlagSet("newOrder", flag.ContinueOnError)
	identifiersArg := newOrderFlags.String("identifiers", "", "Comma separated list of DNS identifiers")

	err := newOrderFlags.Parse(c.Args)
	if err != nil && err != flag.ErrHelp {
		c.Printf("newOrder: error parsing input flags: %s\n", err.Error())
		return
	} else if err == flag.ErrHelp {
		return
	}

	raw := *identifiersArg
	if raw == "" {
		raw = readIdentifiers(c)
	}

	var domains []string
	for _, domain := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	}) {
		if domain := strings.TrimSpace(domain); domain != "" {
			domains = append(domains, domain)
		}
	}
	if len(domains) == 0 {
		c.Printf("newOrder: no identifiers provided\n")
		return
	}

	order, err := getClient(c).NewOrder(context.Background(), domains)
	if err != nil {
		c.Printf("newOrder: error creating new order with ACME server: %s\n", err.Error())
		return
	}

	orderJSON, err := printJSON(order)
	if err != nil {
		c.Printf("newOrder: error marshaling order: %s\n", err.Error())
		return
	}
	c.Printf("Created order %q:\n%s\n", order.URL, orderJSON)
}

func readIdentifiers(c *ishell.Context) string {
	c.SetPrompt(BasePrompt + "FQDN > ")
	defer c.SetPrompt(BasePrompt)
	terminator := "."
	c.Printf("Input fully qualified domain name identifiers for your order. "+
		"End by sending '%s'\n", terminator)
	return strings.TrimSuffix(c.ReadMultiLines(terminator), terminator)
}
