package shell

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abiosoft/ishell"

	acmeclient "github.com/certmason/certmason/acme/client"
	"github.com/certmason/certmason/acme/resources"
	"github.com/certmason/certmason/solver"
)

const (
	clientKey   = "client"
	challSrvKey = "challsrv"
	// The base prompt used for shell commands
	BasePrompt = "[ ACME ] > "
)

var commands = []*ishell.Cmd{
	status.cmd,
	nonce.cmd,
	newOrder.cmd,
	getOrder.cmd,
	getAuthz.cmd,
	solve.cmd,
	finalize.cmd,
	getCert.cmd,
}

// shellContext is a common interface used to retrieve objects from an
// ishell.Shell or an ishell.Context.
type shellContext interface {
	Get(string) interface{}
}

// getClient reads the *acmeclient.Client from the shellContext or panics.
func getClient(c shellContext) *acmeclient.Client {
	rawClient := c.Get(clientKey)
	if rawClient == nil {
		panic(fmt.Sprintf("nil %q value in shellContext", clientKey))
	}
	client, ok := rawClient.(*acmeclient.Client)
	if !ok {
		panic(fmt.Sprintf(
			"%q value in shellContext was not an *acmeclient.Client", clientKey))
	}
	return client
}

// getChallengeServer reads the *solver.ChallengeServer from the
// shellContext or panics.
func getChallengeServer(c shellContext) *solver.ChallengeServer {
	rawSrv := c.Get(challSrvKey)
	if rawSrv == nil {
		panic(fmt.Sprintf("nil %q value in shellContext", challSrvKey))
	}
	srv, ok := rawSrv.(*solver.ChallengeServer)
	if !ok {
		panic(fmt.Sprintf(
			"%q value in shellContext was not a *solver.ChallengeServer", challSrvKey))
	}
	return srv
}

func printJSON(ob interface{}) (string, error) {
	bytes, err := json.MarshalIndent(ob, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// orderFromIndex fetches the order at the given index of the session's
// order list. A negative index selects the most recently created order.
func orderFromIndex(c *ishell.Context, index int) (*resources.Order, error) {
	client := getClient(c)

	orders := client.Orders()
	if len(orders) == 0 {
		return nil, fmt.Errorf("no orders created in this session yet")
	}
	if index < 0 {
		index = len(orders) - 1
	}

	orderURL, err := client.OrderURL(index)
	if err != nil {
		return nil, err
	}
	return client.FetchOrder(context.Background(), orderURL)
}
